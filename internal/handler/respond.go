package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/quorum/internal/auth"
	"github.com/dukerupert/quorum/internal/ballot"
	"github.com/dukerupert/quorum/internal/election"
	"github.com/dukerupert/quorum/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}

// writeDomainError maps sentinel errors to a stable error code and HTTP
// status. Business-rule failures are terminal: clients get a 4xx and must
// not retry. Only timeouts and storage failures are retryable.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid session token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, store.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "invalid_code", "the code is not valid, request a new one")
	case errors.Is(err, store.ErrCodeExpired):
		writeError(w, http.StatusUnauthorized, "code_expired", "the code has expired, request a new one")
	case errors.Is(err, election.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, election.ErrElectionLocked):
		writeError(w, http.StatusConflict, "election_locked", "positions can only change while the election is in setup")
	case errors.Is(err, election.ErrPositionInUse):
		writeError(w, http.StatusConflict, "position_in_use", "a ballot references this position")
	case errors.Is(err, election.ErrPositionExists):
		writeError(w, http.StatusConflict, "position_exists", "position already exists")
	case errors.Is(err, election.ErrPositionNotFound):
		writeError(w, http.StatusNotFound, "position_not_found", "position not found")
	case errors.Is(err, ballot.ErrElectionNotActive):
		writeError(w, http.StatusConflict, "election_not_active", "voting is only possible while the election is active")
	case errors.Is(err, ballot.ErrBallotNotFound):
		writeError(w, http.StatusNotFound, "ballot_not_found", "ballot not found")
	case errors.Is(err, ballot.ErrBallotNotOpen):
		writeError(w, http.StatusConflict, "ballot_not_open", "the ballot's voting window is not open")
	case errors.Is(err, ballot.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, "unknown_option", "option does not belong to this ballot")
	case errors.Is(err, store.ErrVoteLimitExceeded):
		writeError(w, http.StatusConflict, "vote_limit_exceeded", "no votes remaining on this ballot")
	case errors.Is(err, store.ErrDuplicateVote):
		writeError(w, http.StatusConflict, "duplicate_vote", "this option has already been voted for")
	case errors.Is(err, store.ErrBallotFrozen):
		writeError(w, http.StatusConflict, "ballot_frozen", "the ballot has votes and can no longer be changed")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timed out", "error", err)
		writeError(w, http.StatusGatewayTimeout, "timeout", "the operation timed out, retry with backoff")
	default:
		logger.Error("storage error", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "internal error")
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
