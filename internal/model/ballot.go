package model

import "time"

// Ballot is a single voting question. Once any vote has been cast
// against it, its structure (options, window, vote cap) is frozen.
type Ballot struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Position          *string   `json:"position"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	MaxVotesPerMember int       `json:"max_votes_per_member"`
	CreatedAt         time.Time `json:"created_at"`
	Options           []Option  `json:"options,omitempty"`
}

// Open reports whether now falls inside the ballot's voting window.
func (b *Ballot) Open(now time.Time) bool {
	return !now.Before(b.StartsAt) && !now.After(b.EndsAt)
}

type Option struct {
	ID          int64     `json:"id"`
	BallotID    int64     `json:"ballot_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}

// Vote is immutable and never deleted; the vote set is the system of record.
type Vote struct {
	ID        string    `json:"id"`
	BallotID  int64     `json:"ballot_id"`
	VoterID   int64     `json:"voter_id"`
	OptionID  int64     `json:"option_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Tally is the per-option vote count for one ballot.
type Tally struct {
	OptionID    int64  `json:"option_id"`
	OptionTitle string `json:"option_title"`
	Votes       int    `json:"votes"`
}
