package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/quorum/internal/model"
)

// ElectionStore persists the singleton election row plus its position list.
// Status changes are guarded compare-and-swaps committed together with
// their ADMIN_ACTION audit entry.
type ElectionStore struct {
	db    *sql.DB
	audit *AuditStore
}

func NewElectionStore(db *sql.DB, audit *AuditStore) *ElectionStore {
	return &ElectionStore{db: db, audit: audit}
}

func scanElection(scanner interface{ Scan(...any) error }) (*model.Election, error) {
	var e model.Election
	var startedAt, endedAt sql.NullTime

	err := scanner.Scan(&e.ID, &e.Name, &e.Description, &e.Status, &startedAt, &endedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		e.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		e.EndedAt = &endedAt.Time
	}
	return &e, nil
}

const electionCols = `id, name, description, status, started_at, ended_at, updated_at`

// Get returns the election with its ordered position list.
func (s *ElectionStore) Get() (*model.Election, error) {
	row := s.db.QueryRow(`SELECT ` + electionCols + ` FROM election WHERE id = 1`)
	e, err := scanElection(row)
	if err != nil {
		return nil, fmt.Errorf("get election: %w", err)
	}

	positions, err := s.Positions()
	if err != nil {
		return nil, err
	}
	e.Positions = positions
	return e, nil
}

// SetStatus swaps the status from `from` to `to` and stamps started_at or
// ended_at as the transition requires, appending the audit entry in the
// same transaction. Returns false without error when the row no longer has
// status `from` (a concurrent transition won the swap).
func (s *ElectionStore) SetStatus(from, to model.Status, entry model.AuditEntry) (bool, error) {
	var stamp string
	switch {
	case from == model.StatusSetup && to == model.StatusActive:
		stamp = `, started_at = datetime('now')`
	case from == model.StatusActive && to == model.StatusClosed:
		stamp = `, ended_at = datetime('now')`
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE election SET status = ?, updated_at = datetime('now')`+stamp+` WHERE id = 1 AND status = ?`,
		to, from,
	)
	if err != nil {
		return false, fmt.Errorf("set election status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := s.audit.AppendTx(tx, entry); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status change: %w", err)
	}
	return true, nil
}

// UpdateDetails sets the election name and description.
func (s *ElectionStore) UpdateDetails(name, description string) error {
	_, err := s.db.Exec(
		`UPDATE election SET name = ?, description = ?, updated_at = datetime('now') WHERE id = 1`,
		name, description,
	)
	if err != nil {
		return fmt.Errorf("update election details: %w", err)
	}
	return nil
}

func scanPosition(scanner interface{ Scan(...any) error }) (*model.Position, error) {
	var p model.Position
	err := scanner.Scan(&p.ID, &p.Name, &p.SortOrder, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const positionCols = `id, name, sort_order, created_at`

// Positions returns the position list in display order.
func (s *ElectionStore) Positions() ([]model.Position, error) {
	rows, err := s.db.Query(`SELECT ` + positionCols + ` FROM positions ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func (s *ElectionStore) GetPosition(name string) (*model.Position, error) {
	row := s.db.QueryRow(`SELECT `+positionCols+` FROM positions WHERE name = ?`, name)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// AddPosition appends a position at the end of the order, with its audit
// entry in the same transaction.
func (s *ElectionStore) AddPosition(name string, entry model.AuditEntry) (*model.Position, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin add position: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO positions (name, sort_order)
		 VALUES (?, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM positions))`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert position: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := s.audit.AppendTx(tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add position: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+positionCols+` FROM positions WHERE id = ?`, id)
	return scanPosition(row)
}

// RemovePosition deletes a position by name, with its audit entry in the
// same transaction. Returns false when no such position exists.
func (s *ElectionStore) RemovePosition(name string, entry model.AuditEntry) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin remove position: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM positions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete position: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := s.audit.AppendTx(tx, entry); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove position: %w", err)
	}
	return true, nil
}
