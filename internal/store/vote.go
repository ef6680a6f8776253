package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/quorum/internal/model"
)

var (
	ErrDuplicateVote     = errors.New("option already voted for")
	ErrVoteLimitExceeded = errors.New("vote limit reached for this ballot")
)

// VoteStore persists votes. Votes are only ever inserted; there are no
// update or delete methods because the vote set is the system of record.
type VoteStore struct {
	db    *sql.DB
	audit *AuditStore
}

func NewVoteStore(db *sql.DB, audit *AuditStore) *VoteStore {
	return &VoteStore{db: db, audit: audit}
}

func scanVote(scanner interface{ Scan(...any) error }) (*model.Vote, error) {
	var v model.Vote
	err := scanner.Scan(&v.ID, &v.BallotID, &v.VoterID, &v.OptionID, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

const voteCols = `id, ballot_id, voter_id, option_id, created_at`

// Cast inserts a vote after re-checking the duplicate and limit rules
// inside a single write transaction. The transaction is what keeps
// concurrent casts from the same voter from jointly exceeding maxVotes;
// the UNIQUE(ballot_id, voter_id, option_id) index is the backstop for
// the duplicate rule. The VOTE_CAST audit entry commits with the vote or
// not at all.
func (s *VoteStore) Cast(ballotID, voterID, optionID int64, maxVotes int) (*model.Vote, int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("begin cast: %w", err)
	}
	defer tx.Rollback()

	var dup int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM votes WHERE ballot_id = ? AND voter_id = ? AND option_id = ?`,
		ballotID, voterID, optionID,
	).Scan(&dup)
	if err != nil {
		return nil, 0, fmt.Errorf("check duplicate vote: %w", err)
	}
	if dup > 0 {
		return nil, 0, ErrDuplicateVote
	}

	var count int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM votes WHERE ballot_id = ? AND voter_id = ?`,
		ballotID, voterID,
	).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("count votes: %w", err)
	}
	if count >= maxVotes {
		return nil, 0, ErrVoteLimitExceeded
	}

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO votes (id, ballot_id, voter_id, option_id) VALUES (?, ?, ?, ?)`,
		id, ballotID, voterID, optionID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, 0, ErrDuplicateVote
		}
		return nil, 0, fmt.Errorf("insert vote: %w", err)
	}

	err = s.audit.AppendTx(tx, model.AuditEntry{
		Actor:    strconv.FormatInt(voterID, 10),
		Action:   model.ActionVoteCast,
		BallotID: &ballotID,
		Metadata: map[string]string{
			"vote_id":   id,
			"option_id": strconv.FormatInt(optionID, 10),
		},
	})
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit cast: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+voteCols+` FROM votes WHERE id = ?`, id)
	v, err := scanVote(row)
	if err != nil {
		return nil, 0, fmt.Errorf("get cast vote: %w", err)
	}
	return v, maxVotes - count - 1, nil
}

// CountForVoter returns how many votes the voter has cast on the ballot.
func (s *VoteStore) CountForVoter(ballotID, voterID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM votes WHERE ballot_id = ? AND voter_id = ?`,
		ballotID, voterID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count votes for voter: %w", err)
	}
	return n, nil
}

// Any reports whether any vote exists at all. The state machine uses this
// to decide whether SETUP reconfiguration is still allowed.
func (s *VoteStore) Any() (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM votes`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count votes: %w", err)
	}
	return n > 0, nil
}

// Results returns per-option tallies for the ballot, including options
// with zero votes, in option display order.
func (s *VoteStore) Results(ballotID int64) ([]model.Tally, error) {
	rows, err := s.db.Query(
		`SELECT o.id, o.title, COUNT(v.id)
		 FROM ballot_options o
		 LEFT JOIN votes v ON v.option_id = o.id
		 WHERE o.ballot_id = ?
		 GROUP BY o.id, o.title
		 ORDER BY o.sort_order, o.id`,
		ballotID,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var tallies []model.Tally
	for rows.Next() {
		var t model.Tally
		if err := rows.Scan(&t.OptionID, &t.OptionTitle, &t.Votes); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tallies: %w", err)
	}
	return tallies, nil
}
