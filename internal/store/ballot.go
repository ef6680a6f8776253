package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/quorum/internal/model"
)

// ErrBallotFrozen is returned for structural changes to a ballot that has
// already received votes.
var ErrBallotFrozen = errors.New("ballot has votes and can no longer be changed")

// BallotStore persists ballots and their options. The election core only
// consumes this read-side; authoring happens through admin endpoints.
type BallotStore struct {
	db *sql.DB
}

func NewBallotStore(db *sql.DB) *BallotStore {
	return &BallotStore{db: db}
}

func scanBallot(scanner interface{ Scan(...any) error }) (*model.Ballot, error) {
	var b model.Ballot
	var position sql.NullString

	err := scanner.Scan(
		&b.ID, &b.Title, &b.Description, &position,
		&b.StartsAt, &b.EndsAt, &b.MaxVotesPerMember, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if position.Valid {
		b.Position = &position.String
	}
	return &b, nil
}

const ballotCols = `id, title, description, position, starts_at, ends_at, max_votes_per_member, created_at`

func scanOption(scanner interface{ Scan(...any) error }) (*model.Option, error) {
	var o model.Option
	err := scanner.Scan(&o.ID, &o.BallotID, &o.Title, &o.Description, &o.SortOrder, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const optionCols = `id, ballot_id, title, description, sort_order, created_at`

// OptionInput is an option definition for ballot creation.
type OptionInput struct {
	Title       string
	Description string
}

// Create inserts a ballot and its options in one transaction.
func (s *BallotStore) Create(title, description string, position *string, startsAt, endsAt time.Time, maxVotes int, options []OptionInput) (*model.Ballot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin create ballot: %w", err)
	}
	defer tx.Rollback()

	var pos sql.NullString
	if position != nil {
		pos = sql.NullString{String: *position, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO ballots (title, description, position, starts_at, ends_at, max_votes_per_member)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		title, description, pos, startsAt.UTC(), endsAt.UTC(), maxVotes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ballot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for i, opt := range options {
		_, err := tx.Exec(
			`INSERT INTO ballot_options (ballot_id, title, description, sort_order) VALUES (?, ?, ?, ?)`,
			id, opt.Title, opt.Description, i,
		)
		if err != nil {
			return nil, fmt.Errorf("insert ballot option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create ballot: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the ballot with its ordered options, or nil.
func (s *BallotStore) GetByID(id int64) (*model.Ballot, error) {
	row := s.db.QueryRow(`SELECT `+ballotCols+` FROM ballots WHERE id = ?`, id)
	b, err := scanBallot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ballot: %w", err)
	}

	options, err := s.options(id)
	if err != nil {
		return nil, err
	}
	b.Options = options
	return b, nil
}

// List returns all ballots with their options, oldest first.
func (s *BallotStore) List() ([]model.Ballot, error) {
	rows, err := s.db.Query(`SELECT ` + ballotCols + ` FROM ballots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}
	defer rows.Close()

	var ballots []model.Ballot
	for rows.Next() {
		b, err := scanBallot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		ballots = append(ballots, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}

	for i := range ballots {
		options, err := s.options(ballots[i].ID)
		if err != nil {
			return nil, err
		}
		ballots[i].Options = options
	}
	return ballots, nil
}

func (s *BallotStore) options(ballotID int64) ([]model.Option, error) {
	rows, err := s.db.Query(
		`SELECT `+optionCols+` FROM ballot_options WHERE ballot_id = ? ORDER BY sort_order, id`,
		ballotID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ballot options: %w", err)
	}
	defer rows.Close()

	var options []model.Option
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ballot option: %w", err)
		}
		options = append(options, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballot options: %w", err)
	}
	return options, nil
}

// GetOption returns the option by id, or nil.
func (s *BallotStore) GetOption(id int64) (*model.Option, error) {
	row := s.db.QueryRow(`SELECT `+optionCols+` FROM ballot_options WHERE id = ?`, id)
	o, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ballot option: %w", err)
	}
	return o, nil
}

// Update rewrites ballot fields. Fails with ErrBallotFrozen once any vote
// has been cast against the ballot.
func (s *BallotStore) Update(id int64, title, description string, position *string, startsAt, endsAt time.Time, maxVotes int) (*model.Ballot, error) {
	frozen, err := s.HasVotes(id)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, ErrBallotFrozen
	}

	var pos sql.NullString
	if position != nil {
		pos = sql.NullString{String: *position, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE ballots SET title = ?, description = ?, position = ?, starts_at = ?, ends_at = ?, max_votes_per_member = ?
		 WHERE id = ?`,
		title, description, pos, startsAt.UTC(), endsAt.UTC(), maxVotes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update ballot: %w", err)
	}
	return s.GetByID(id)
}

// AddOption appends an option. Fails with ErrBallotFrozen once any vote
// has been cast against the ballot.
func (s *BallotStore) AddOption(ballotID int64, title, description string) (*model.Option, error) {
	frozen, err := s.HasVotes(ballotID)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, ErrBallotFrozen
	}

	result, err := s.db.Exec(
		`INSERT INTO ballot_options (ballot_id, title, description, sort_order)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM ballot_options WHERE ballot_id = ?))`,
		ballotID, title, description, ballotID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ballot option: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetOption(id)
}

// HasVotes reports whether any vote exists for the ballot.
func (s *BallotStore) HasVotes(ballotID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM votes WHERE ballot_id = ?`, ballotID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count ballot votes: %w", err)
	}
	return n > 0, nil
}

// ExistsForPosition reports whether any ballot references the position name.
func (s *BallotStore) ExistsForPosition(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ballots WHERE position = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count ballots for position: %w", err)
	}
	return n > 0, nil
}
