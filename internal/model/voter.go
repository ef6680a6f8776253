package model

import "time"

// Voter is created on first successful code verification and never deleted.
// Voters carry no password; possession of the email inbox is the credential.
type Voter struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type VerificationCode struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}
