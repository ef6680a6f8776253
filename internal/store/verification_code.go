package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dukerupert/quorum/internal/model"
)

var (
	// ErrInvalidCode covers unknown, already-used, and burned codes.
	// Callers must not be able to tell those apart.
	ErrInvalidCode = errors.New("invalid verification code")
	ErrCodeExpired = errors.New("verification code expired")
)

const codeTTL = 15 * time.Minute

// VerificationCodeStore issues and consumes one-time 6-digit email codes.
// Issue and Consume each run in a single transaction together with their
// audit entry, so a code can be consumed exactly once and no code action
// commits without its audit record.
type VerificationCodeStore struct {
	db    *sql.DB
	audit *AuditStore
}

func NewVerificationCodeStore(db *sql.DB, audit *AuditStore) *VerificationCodeStore {
	return &VerificationCodeStore{db: db, audit: audit}
}

func scanVerificationCode(scanner interface{ Scan(...any) error }) (*model.VerificationCode, error) {
	var vc model.VerificationCode
	var usedAt sql.NullTime

	err := scanner.Scan(&vc.ID, &vc.Email, &vc.Code, &vc.ExpiresAt, &usedAt, &vc.Attempts, &vc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		vc.UsedAt = &usedAt.Time
	}
	return &vc, nil
}

const verificationCodeCols = `id, email, code, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000-999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue creates a new code with a 15-minute expiry. Any outstanding unused
// code for the same email is invalidated in the same transaction, keeping
// the invariant of at most one live code per voter.
func (s *VerificationCodeStore) Issue(email string) (*model.VerificationCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(codeTTL)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin issue: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE verification_codes SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO verification_codes (email, code, expires_at) VALUES (?, ?, ?)`,
		email, code, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	err = s.audit.AppendTx(tx, model.AuditEntry{
		Actor:  email,
		Action: model.ActionCodeRequested,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issue: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+verificationCodeCols+` FROM verification_codes WHERE id = ?`, id)
	vc, err := scanVerificationCode(row)
	if err != nil {
		return nil, fmt.Errorf("get issued code: %w", err)
	}
	return vc, nil
}

// Consume marks the matching code used and returns it. The guarded UPDATE
// is the atomicity point: under concurrent verification attempts exactly
// one caller flips used_at, everyone else gets ErrInvalidCode.
func (s *VerificationCodeStore) Consume(email, code string) (*model.VerificationCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE verification_codes SET used_at = datetime('now')
		 WHERE email = ? AND code = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		email, code,
	)
	if err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		// Distinguish expired from invalid: a matching unused code that
		// is past expiry gets the more helpful error.
		var n int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM verification_codes
			 WHERE email = ? AND code = ? AND used_at IS NULL AND expires_at <= datetime('now')`,
			email, code,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("check expired code: %w", err)
		}
		if n > 0 {
			return nil, ErrCodeExpired
		}
		return nil, ErrInvalidCode
	}

	err = s.audit.AppendTx(tx, model.AuditEntry{
		Actor:  email,
		Action: model.ActionCodeUsed,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+verificationCodeCols+` FROM verification_codes
		 WHERE email = ? AND code = ? AND used_at IS NOT NULL ORDER BY id DESC LIMIT 1`,
		email, code,
	)
	vc, err := scanVerificationCode(row)
	if err != nil {
		return nil, fmt.Errorf("get consumed code: %w", err)
	}
	return vc, nil
}

// GetLatestByEmail returns the most recent live (unexpired, unused) code
// for an email, or nil. Used for attempt tracking.
func (s *VerificationCodeStore) GetLatestByEmail(email string) (*model.VerificationCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRow(
		`SELECT `+verificationCodeCols+` FROM verification_codes
		 WHERE email = ? AND expires_at > datetime('now') AND used_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`,
		email,
	)
	vc, err := scanVerificationCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest code by email: %w", err)
	}
	return vc, nil
}

// IncrementAttempts increments the wrong-guess counter and returns the new value.
func (s *VerificationCodeStore) IncrementAttempts(id int64) (int, error) {
	_, err := s.db.Exec(`UPDATE verification_codes SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}

	var attempts int
	err = s.db.QueryRow(`SELECT attempts FROM verification_codes WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

// Burn invalidates a code after too many wrong guesses.
func (s *VerificationCodeStore) Burn(id int64) error {
	_, err := s.db.Exec(`UPDATE verification_codes SET used_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("burn verification code: %w", err)
	}
	return nil
}

// DeleteExpired prunes long-dead codes; used codes are kept until expiry
// passes so Consume can keep answering "invalid" rather than "unknown".
func (s *VerificationCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_codes WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
