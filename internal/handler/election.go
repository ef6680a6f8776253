package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/quorum/internal/auth"
	"github.com/dukerupert/quorum/internal/ballot"
	"github.com/dukerupert/quorum/internal/election"
	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

// ElectionHandler carries the admin surface: lifecycle transitions,
// position management, ballot authoring, and results.
type ElectionHandler struct {
	machine *election.Machine
	engine  *ballot.Engine
	ballots *store.BallotStore
	audit   *store.AuditStore
	logger  *slog.Logger
}

func NewElectionHandler(machine *election.Machine, engine *ballot.Engine, ballots *store.BallotStore, audit *store.AuditStore, logger *slog.Logger) *ElectionHandler {
	return &ElectionHandler{machine: machine, engine: engine, ballots: ballots, audit: audit, logger: logger}
}

// Get returns the election with its position list.
func (h *ElectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.machine.Get()
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// SetStatus transitions the election lifecycle.
func (h *ElectionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	e, err := h.machine.Transition(auth.Actor(r.Context()), req.Status)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"election": e})
}

type positionRequest struct {
	Position string `json:"position"`
}

// AddPosition appends a position name. SETUP only.
func (h *ElectionHandler) AddPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Position) == "" {
		writeError(w, http.StatusBadRequest, "position_required", "position is required")
		return
	}

	p, err := h.machine.AddPosition(auth.Actor(r.Context()), req.Position)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RemovePosition deletes a position name. SETUP only, and refused while a
// ballot references it.
func (h *ElectionHandler) RemovePosition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "position_required", "position is required")
		return
	}

	if err := h.machine.RemovePosition(auth.Actor(r.Context()), name); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type optionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createBallotRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Position          *string         `json:"position"`
	StartsAt          time.Time       `json:"startsAt"`
	EndsAt            time.Time       `json:"endsAt"`
	MaxVotesPerMember int             `json:"maxVotesPerMember"`
	Options           []optionRequest `json:"options"`
}

// CreateBallot authors a ballot with its options. The ballot becomes
// immutable once the first vote lands.
func (h *ElectionHandler) CreateBallot(w http.ResponseWriter, r *http.Request) {
	var req createBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		writeError(w, http.StatusBadRequest, "title_required", "title is required")
		return
	case len(req.Options) == 0:
		writeError(w, http.StatusBadRequest, "options_required", "at least one option is required")
		return
	case req.MaxVotesPerMember < 1:
		writeError(w, http.StatusBadRequest, "invalid_max_votes", "maxVotesPerMember must be at least 1")
		return
	case !req.EndsAt.After(req.StartsAt):
		writeError(w, http.StatusBadRequest, "invalid_window", "endsAt must be after startsAt")
		return
	}

	if req.Position != nil {
		p, err := h.machine.Get()
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		known := false
		for _, pos := range p.Positions {
			if pos.Name == *req.Position {
				known = true
				break
			}
		}
		if !known {
			writeError(w, http.StatusBadRequest, "unknown_position", "position does not exist")
			return
		}
	}

	options := make([]store.OptionInput, 0, len(req.Options))
	for _, o := range req.Options {
		title := strings.TrimSpace(o.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "option_title_required", "every option needs a title")
			return
		}
		options = append(options, store.OptionInput{Title: title, Description: o.Description})
	}

	b, err := h.ballots.Create(req.Title, req.Description, req.Position, req.StartsAt, req.EndsAt, req.MaxVotesPerMember, options)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	err = h.audit.Append(model.AuditEntry{
		Actor:    auth.Actor(r.Context()),
		Action:   model.ActionAdminAction,
		BallotID: &b.ID,
		Position: b.Position,
		Metadata: map[string]string{
			"change": "ballot_created",
			"title":  b.Title,
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// Results returns per-option tallies for a ballot. Admin only; totals are
// marked provisional until the election is closed and must not be exposed
// to voters before then.
func (h *ElectionHandler) Results(w http.ResponseWriter, r *http.Request) {
	ballotID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid ballot id")
		return
	}

	res, err := h.engine.Results(ballotID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
