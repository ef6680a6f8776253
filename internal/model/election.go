package model

import "time"

// Status is the election lifecycle state. Transitions move strictly
// SETUP -> ACTIVE -> CLOSED; CLOSED is terminal.
type Status string

const (
	StatusSetup  Status = "SETUP"
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusSetup, StatusActive, StatusClosed:
		return true
	}
	return false
}

// Election is a singleton: one row, one election per deployment.
type Election struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Positions   []Position `json:"positions,omitempty"`
}

type Position struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}
