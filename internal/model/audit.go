package model

import "time"

// Action enumerates the security-relevant events the audit log records.
type Action string

const (
	ActionLogin         Action = "LOGIN"
	ActionVoteCast      Action = "VOTE_CAST"
	ActionAdminAction   Action = "ADMIN_ACTION"
	ActionCodeRequested Action = "VERIFICATION_CODE_REQUESTED"
	ActionCodeUsed      Action = "VERIFICATION_CODE_USED"
)

// ValidAction reports whether a names a known audit action.
func ValidAction(a Action) bool {
	switch a {
	case ActionLogin, ActionVoteCast, ActionAdminAction, ActionCodeRequested, ActionCodeUsed:
		return true
	}
	return false
}

// AuditEntry is append-only: entries are never mutated or deleted.
type AuditEntry struct {
	ID        int64             `json:"id"`
	Actor     string            `json:"actor"`
	Action    Action            `json:"action"`
	BallotID  *int64            `json:"ballot_id,omitempty"`
	Position  *string           `json:"position,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
