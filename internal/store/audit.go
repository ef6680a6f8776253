package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/quorum/internal/model"
)

// AuditStore is append-only: there are deliberately no update or delete
// methods. Entries are ordered by the autoincrement id, which acts as the
// tie-breaking sequence for rows sharing a wall-clock second.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx, so callers can append
// an entry inside the same transaction as the action it records.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func scanAuditEntry(scanner interface{ Scan(...any) error }) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var ballotID sql.NullInt64
	var position sql.NullString
	var metadata string

	err := scanner.Scan(&e.ID, &e.Actor, &e.Action, &ballotID, &position, &metadata, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if ballotID.Valid {
		e.BallotID = &ballotID.Int64
	}
	if position.Valid {
		e.Position = &position.String
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode audit metadata: %w", err)
	}
	return &e, nil
}

const auditCols = `id, actor, action, ballot_id, position, metadata, created_at`

// Append persists an entry. Callers whose action must commit atomically
// with its audit record use AppendTx with their own transaction instead.
func (s *AuditStore) Append(e model.AuditEntry) error {
	return s.AppendTx(s.db, e)
}

// AppendTx persists an entry using the given *sql.DB or *sql.Tx. When the
// executor is a transaction, a failed append rolls back the whole action:
// nothing is committed without its audit record.
func (s *AuditStore) AppendTx(exec execer, e model.AuditEntry) error {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	var ballotID sql.NullInt64
	if e.BallotID != nil {
		ballotID = sql.NullInt64{Int64: *e.BallotID, Valid: true}
	}
	var position sql.NullString
	if e.Position != nil {
		position = sql.NullString{String: *e.Position, Valid: true}
	}

	_, err = exec.Exec(
		`INSERT INTO audit_entries (actor, action, ballot_id, position, metadata) VALUES (?, ?, ?, ?, ?)`,
		e.Actor, e.Action, ballotID, position, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditFilter narrows a Query. Zero values match everything.
type AuditFilter struct {
	Action model.Action
	Actor  string
}

// Query returns entries newest-first, paginated, plus the filtered total.
func (s *AuditStore) Query(f AuditFilter, limit, offset int) ([]model.AuditEntry, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if f.Action != "" {
		where += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.Actor != "" {
		where += ` AND actor = ?`
		args = append(args, f.Actor)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+auditCols+` FROM audit_entries `+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, total, nil
}
