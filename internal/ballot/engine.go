// Package ballot enforces the vote-casting rules: election active, ballot
// window open, known option, per-member cap, no duplicate option votes.
package ballot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

var (
	ErrElectionNotActive = errors.New("election is not active")
	ErrBallotNotFound    = errors.New("ballot not found")
	ErrBallotNotOpen     = errors.New("ballot voting window is not open")
	ErrUnknownOption     = errors.New("option does not belong to this ballot")
)

// Engine accepts vote-cast requests. Rule checks that need atomicity with
// the insert (duplicate and limit) live inside VoteStore.Cast's
// transaction; the engine handles everything that can be checked up front.
type Engine struct {
	ballots   *store.BallotStore
	votes     *store.VoteStore
	elections *store.ElectionStore
	logger    *slog.Logger
}

func NewEngine(ballots *store.BallotStore, votes *store.VoteStore, elections *store.ElectionStore, logger *slog.Logger) *Engine {
	return &Engine{ballots: ballots, votes: votes, elections: elections, logger: logger}
}

// Cast records one vote for the voter. Returns the vote and how many casts
// the voter has left on this ballot.
func (e *Engine) Cast(voterID, ballotID, optionID int64) (*model.Vote, int, error) {
	election, err := e.elections.Get()
	if err != nil {
		return nil, 0, err
	}
	if election.Status != model.StatusActive {
		return nil, 0, ErrElectionNotActive
	}

	b, err := e.ballots.GetByID(ballotID)
	if err != nil {
		return nil, 0, err
	}
	if b == nil {
		return nil, 0, ErrBallotNotFound
	}
	if !b.Open(time.Now().UTC()) {
		return nil, 0, ErrBallotNotOpen
	}

	opt, err := e.ballots.GetOption(optionID)
	if err != nil {
		return nil, 0, err
	}
	if opt == nil || opt.BallotID != ballotID {
		return nil, 0, ErrUnknownOption
	}

	v, remaining, err := e.votes.Cast(ballotID, voterID, optionID, b.MaxVotesPerMember)
	if err != nil {
		return nil, 0, err
	}

	e.logger.Info("vote cast", "voter_id", voterID, "ballot_id", ballotID, "remaining", remaining)
	return v, remaining, nil
}

// RemainingVotes reports how many casts the voter has left on the ballot:
// max_votes_per_member minus existing votes, floored at 0.
func (e *Engine) RemainingVotes(ballotID, voterID int64) (int, error) {
	b, err := e.ballots.GetByID(ballotID)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, ErrBallotNotFound
	}

	count, err := e.votes.CountForVoter(ballotID, voterID)
	if err != nil {
		return 0, err
	}

	remaining := b.MaxVotesPerMember - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CanVote reports whether the voter has at least one cast left.
func (e *Engine) CanVote(ballotID, voterID int64) (bool, error) {
	remaining, err := e.RemainingVotes(ballotID, voterID)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// Results holds a ballot's tallies. Provisional is true until the election
// is CLOSED: in-progress totals are for admin eyes only and must not be
// shown to voters.
type Results struct {
	BallotID    int64         `json:"ballot_id"`
	Provisional bool          `json:"provisional"`
	Tallies     []model.Tally `json:"tallies"`
}

// Results aggregates vote counts per option for the ballot.
func (e *Engine) Results(ballotID int64) (*Results, error) {
	b, err := e.ballots.GetByID(ballotID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBallotNotFound
	}

	election, err := e.elections.Get()
	if err != nil {
		return nil, err
	}

	tallies, err := e.votes.Results(ballotID)
	if err != nil {
		return nil, fmt.Errorf("tally ballot %d: %w", ballotID, err)
	}

	return &Results{
		BallotID:    ballotID,
		Provisional: election.Status != model.StatusClosed,
		Tallies:     tallies,
	}, nil
}
