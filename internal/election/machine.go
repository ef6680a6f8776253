// Package election owns the election lifecycle: the SETUP -> ACTIVE ->
// CLOSED state machine and the position list, both admin-only.
package election

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

var (
	ErrInvalidTransition = errors.New("invalid election status transition")
	ErrElectionLocked    = errors.New("election is no longer in setup")
	ErrPositionInUse     = errors.New("position is referenced by a ballot")
	ErrPositionExists    = errors.New("position already exists")
	ErrPositionNotFound  = errors.New("position not found")
)

// Machine serializes every status transition and position change behind a
// single mutex; there is one election per deployment. The machine never
// self-advances on timers; every transition is an explicit admin action.
type Machine struct {
	mu        sync.Mutex
	elections *store.ElectionStore
	ballots   *store.BallotStore
	votes     *store.VoteStore
	logger    *slog.Logger
}

func NewMachine(elections *store.ElectionStore, ballots *store.BallotStore, votes *store.VoteStore, logger *slog.Logger) *Machine {
	return &Machine{elections: elections, ballots: ballots, votes: votes, logger: logger}
}

// Get returns the election with its position list.
func (m *Machine) Get() (*model.Election, error) {
	return m.elections.Get()
}

// Status returns the current lifecycle state.
func (m *Machine) Status() (model.Status, error) {
	e, err := m.elections.Get()
	if err != nil {
		return "", err
	}
	return e.Status, nil
}

// Transition moves the election to the target status. Allowed moves are
// SETUP -> ACTIVE (stamps start), ACTIVE -> CLOSED (stamps end), and the
// re-entrant SETUP -> SETUP, which is a configuration no-op permitted only
// while no votes exist. CLOSED is terminal.
func (m *Machine) Transition(actor string, target model.Status) (*model.Election, error) {
	if !model.ValidStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.elections.Get()
	if err != nil {
		return nil, err
	}

	switch {
	case cur.Status == model.StatusSetup && target == model.StatusActive,
		cur.Status == model.StatusActive && target == model.StatusClosed:
		// fall through to the swap

	case cur.Status == model.StatusSetup && target == model.StatusSetup:
		voted, err := m.votes.Any()
		if err != nil {
			return nil, err
		}
		if voted {
			return nil, fmt.Errorf("%w: votes already cast", ErrInvalidTransition)
		}
		return cur, nil

	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}

	entry := model.AuditEntry{
		Actor:  actor,
		Action: model.ActionAdminAction,
		Metadata: map[string]string{
			"change":        "election_status",
			"status_before": string(cur.Status),
			"status_after":  string(target),
		},
	}

	swapped, err := m.elections.SetStatus(cur.Status, target, entry)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost a race with another transition; the mutex makes this rare
		// but the store-level compare-and-swap is the real guard.
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}

	m.logger.Info("election status changed", "actor", actor, "from", cur.Status, "to", target)
	return m.elections.Get()
}

// AddPosition appends a position name. Permitted only in SETUP.
func (m *Machine) AddPosition(actor, name string) (*model.Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("position name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireSetup(); err != nil {
		return nil, err
	}

	existing, err := m.elections.GetPosition(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPositionExists
	}

	entry := model.AuditEntry{
		Actor:    actor,
		Action:   model.ActionAdminAction,
		Position: &name,
		Metadata: map[string]string{
			"change":   "position_added",
			"position": name,
		},
	}

	p, err := m.elections.AddPosition(name, entry)
	if err != nil {
		return nil, err
	}
	m.logger.Info("position added", "actor", actor, "position", name)
	return p, nil
}

// RemovePosition deletes a position name. Permitted only in SETUP, and
// only while no ballot references the position.
func (m *Machine) RemovePosition(actor, name string) error {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireSetup(); err != nil {
		return err
	}

	inUse, err := m.ballots.ExistsForPosition(name)
	if err != nil {
		return err
	}
	if inUse {
		return ErrPositionInUse
	}

	entry := model.AuditEntry{
		Actor:    actor,
		Action:   model.ActionAdminAction,
		Position: &name,
		Metadata: map[string]string{
			"change":   "position_removed",
			"position": name,
		},
	}

	removed, err := m.elections.RemovePosition(name, entry)
	if err != nil {
		return err
	}
	if !removed {
		return ErrPositionNotFound
	}
	m.logger.Info("position removed", "actor", actor, "position", name)
	return nil
}

func (m *Machine) requireSetup() error {
	cur, err := m.elections.Get()
	if err != nil {
		return err
	}
	if cur.Status != model.StatusSetup {
		return ErrElectionLocked
	}
	return nil
}
