package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/quorum/internal/model"
)

type VoterStore struct {
	db *sql.DB
}

func NewVoterStore(db *sql.DB) *VoterStore {
	return &VoterStore{db: db}
}

func scanVoter(scanner interface{ Scan(...any) error }) (*model.Voter, error) {
	var v model.Voter
	err := scanner.Scan(&v.ID, &v.Email, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

const voterCols = `id, email, created_at`

// GetOrCreateByEmail returns the voter for the email, creating the record
// on first successful verification. Emails are stored lower-cased and the
// column collates case-insensitively, so AliCE@b.com and alice@b.com are
// the same voter.
func (s *VoterStore) GetOrCreateByEmail(email string) (*model.Voter, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.db.Exec(`INSERT INTO voters (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email)
	if err != nil {
		return nil, fmt.Errorf("upsert voter: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *VoterStore) GetByID(id int64) (*model.Voter, error) {
	row := s.db.QueryRow(`SELECT `+voterCols+` FROM voters WHERE id = ?`, id)
	v, err := scanVoter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get voter: %w", err)
	}
	return v, nil
}

func (s *VoterStore) GetByEmail(email string) (*model.Voter, error) {
	row := s.db.QueryRow(`SELECT `+voterCols+` FROM voters WHERE email = ?`, email)
	v, err := scanVoter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get voter by email: %w", err)
	}
	return v, nil
}
