package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/quorum/internal/auth"
	"github.com/dukerupert/quorum/internal/email"
	"github.com/dukerupert/quorum/internal/middleware"
	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

const (
	maxCodeAttempts = 5

	// Per-email issuance cap, independent of the per-IP limit the server
	// applies in front of the route.
	codeRequestLimit  = 5
	codeRequestWindow = 15 * time.Minute
)

type AuthHandler struct {
	codes      *store.VerificationCodeStore
	voters     *store.VoterStore
	audit      *store.AuditStore
	issuer     *auth.TokenIssuer
	adminCreds *auth.AdminCredentials
	sender     email.Sender
	limiter    *middleware.RateLimiter
	logger     *slog.Logger
}

func NewAuthHandler(
	codes *store.VerificationCodeStore,
	voters *store.VoterStore,
	audit *store.AuditStore,
	issuer *auth.TokenIssuer,
	adminCreds *auth.AdminCredentials,
	sender email.Sender,
	limiter *middleware.RateLimiter,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		codes:      codes,
		voters:     voters,
		audit:      audit,
		issuer:     issuer,
		adminCreds: adminCreds,
		sender:     sender,
		limiter:    limiter,
		logger:     logger,
	}
}

type requestCodeRequest struct {
	Email string `json:"email"`
}

// RequestCode issues a verification code. The response is the same
// accepted shape whether or not the address is known or even well-formed,
// so the endpoint cannot be used to enumerate voters. Only well-formed
// addresses get a code persisted and mailed.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" {
		writeError(w, http.StatusBadRequest, "email_required", "email is required")
		return
	}

	if _, err := mail.ParseAddress(addr); err != nil {
		// Malformed address: report accepted, persist nothing.
		writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
		return
	}

	if !h.limiter.Allow("code:"+addr, codeRequestLimit, codeRequestWindow) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many code requests for this email")
		return
	}

	vc, err := h.codes.Issue(addr)
	if err != nil {
		h.logger.Error("issue verification code", "error", err)
		writeDomainError(w, h.logger, err)
		return
	}

	// Delivery failure is not surfaced: the code is issued and the
	// accepted shape must stay uniform. The voter can re-request.
	if err := h.sender.SendVerificationCode(r.Context(), addr, vc.Code); err != nil {
		h.logger.Error("send verification code", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	Token     string    `json:"token"`
	VoterID   int64     `json:"voterId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyCode consumes a verification code and mints a voter session.
// The voter record is created on first successful verification.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)
	if addr == "" || code == "" {
		writeError(w, http.StatusBadRequest, "email_and_code_required", "email and code are required")
		return
	}

	latest, err := h.codes.GetLatestByEmail(addr)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if latest != nil && latest.Attempts >= maxCodeAttempts {
		if err := h.codes.Burn(latest.ID); err != nil {
			h.logger.Error("burn verification code", "error", err)
		}
		writeDomainError(w, h.logger, store.ErrInvalidCode)
		return
	}

	vc, err := h.codes.Consume(addr, code)
	if err != nil {
		if latest != nil && errors.Is(err, store.ErrInvalidCode) {
			attempts, aerr := h.codes.IncrementAttempts(latest.ID)
			if aerr != nil {
				h.logger.Error("increment code attempts", "error", aerr)
			} else if attempts >= maxCodeAttempts {
				if berr := h.codes.Burn(latest.ID); berr != nil {
					h.logger.Error("burn verification code", "error", berr)
				}
			}
		}
		writeDomainError(w, h.logger, err)
		return
	}

	voter, err := h.voters.GetOrCreateByEmail(vc.Email)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	subject := strconv.FormatInt(voter.ID, 10)
	token, expiresAt, err := h.issuer.Mint(subject, auth.RoleVoter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	err = h.audit.Append(model.AuditEntry{
		Actor:  subject,
		Action: model.ActionLogin,
		Metadata: map[string]string{
			"role":   auth.RoleVoter,
			"method": "email_code",
		},
	})
	if err != nil {
		// Fail closed: no session without its audit record.
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("voter logged in", "voter_id", voter.ID)
	writeJSON(w, http.StatusOK, verifyCodeResponse{Token: token, VoterID: voter.ID, ExpiresAt: expiresAt})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminLogin validates pre-provisioned admin credentials and mints an
// admin session.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	if err := h.adminCreds.Check(req.Username, req.Password); err != nil {
		h.logger.Warn("admin login failed", "username", req.Username, "remote", middleware.RealIP(r))
		writeDomainError(w, h.logger, err)
		return
	}

	token, expiresAt, err := h.issuer.Mint(req.Username, auth.RoleAdmin)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	err = h.audit.Append(model.AuditEntry{
		Actor:  req.Username,
		Action: model.ActionLogin,
		Metadata: map[string]string{
			"role":   auth.RoleAdmin,
			"method": "password",
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("admin logged in", "username", req.Username)
	writeJSON(w, http.StatusOK, adminLoginResponse{Token: token, ExpiresAt: expiresAt})
}
