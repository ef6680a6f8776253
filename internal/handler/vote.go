package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/quorum/internal/auth"
	"github.com/dukerupert/quorum/internal/ballot"
	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

type VoteHandler struct {
	engine  *ballot.Engine
	ballots *store.BallotStore
	logger  *slog.Logger
}

func NewVoteHandler(engine *ballot.Engine, ballots *store.BallotStore, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{engine: engine, ballots: ballots, logger: logger}
}

// ListBallots returns every ballot with its options. Public read: voters
// need the list before they authenticate.
func (h *VoteHandler) ListBallots(w http.ResponseWriter, r *http.Request) {
	ballots, err := h.ballots.List()
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if ballots == nil {
		ballots = []model.Ballot{}
	}
	writeJSON(w, http.StatusOK, ballots)
}

type castVoteRequest struct {
	BallotID int64 `json:"ballotId"`
	OptionID int64 `json:"optionId"`
}

type castVoteResponse struct {
	VoteID         string `json:"voteId"`
	RemainingVotes int    `json:"remainingVotes"`
}

// Cast records one vote for the authenticated voter.
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	voterID := auth.VoterID(r.Context())
	if voterID == 0 {
		writeDomainError(w, h.logger, auth.ErrForbidden)
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if req.BallotID == 0 || req.OptionID == 0 {
		writeError(w, http.StatusBadRequest, "ballot_and_option_required", "ballotId and optionId are required")
		return
	}

	v, remaining, err := h.engine.Cast(voterID, req.BallotID, req.OptionID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, castVoteResponse{VoteID: v.ID, RemainingVotes: remaining})
}

type remainingVotesResponse struct {
	BallotID       int64 `json:"ballotId"`
	RemainingVotes int   `json:"remainingVotes"`
	CanVote        bool  `json:"canVote"`
}

// Remaining reports the authenticated voter's remaining casts on a ballot.
func (h *VoteHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	voterID := auth.VoterID(r.Context())
	if voterID == 0 {
		writeDomainError(w, h.logger, auth.ErrForbidden)
		return
	}

	ballotID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid ballot id")
		return
	}

	remaining, err := h.engine.RemainingVotes(ballotID, voterID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, remainingVotesResponse{
		BallotID:       ballotID,
		RemainingVotes: remaining,
		CanVote:        remaining > 0,
	})
}
