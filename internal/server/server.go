package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/quorum/internal/auth"
	"github.com/dukerupert/quorum/internal/ballot"
	"github.com/dukerupert/quorum/internal/election"
	"github.com/dukerupert/quorum/internal/email"
	"github.com/dukerupert/quorum/internal/handler"
	"github.com/dukerupert/quorum/internal/middleware"
	"github.com/dukerupert/quorum/internal/store"
)

// Config carries the pre-provisioned secrets the server needs.
type Config struct {
	SessionSecret     []byte
	AdminUsername     string
	AdminPasswordHash string
}

type Server struct {
	db          *sql.DB
	authH       *handler.AuthHandler
	voteH       *handler.VoteHandler
	electionH   *handler.ElectionHandler
	auditH      *handler.AuditHandler
	issuer      *auth.TokenIssuer
	codeStore   *store.VerificationCodeStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, sender email.Sender, cfg Config, logger *slog.Logger) (*Server, error) {
	issuer, err := auth.NewTokenIssuer(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}

	auditStore := store.NewAuditStore(db)
	voterStore := store.NewVoterStore(db)
	codeStore := store.NewVerificationCodeStore(db, auditStore)
	electionStore := store.NewElectionStore(db, auditStore)
	ballotStore := store.NewBallotStore(db)
	voteStore := store.NewVoteStore(db, auditStore)

	machine := election.NewMachine(electionStore, ballotStore, voteStore, logger.With("component", "election"))
	engine := ballot.NewEngine(ballotStore, voteStore, electionStore, logger.With("component", "ballot"))

	adminCreds := auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPasswordHash)
	rateLimiter := middleware.NewRateLimiter()

	return &Server{
		db:          db,
		authH:       handler.NewAuthHandler(codeStore, voterStore, auditStore, issuer, adminCreds, sender, rateLimiter, logger.With("component", "auth")),
		voteH:       handler.NewVoteHandler(engine, ballotStore, logger.With("component", "vote")),
		electionH:   handler.NewElectionHandler(machine, engine, ballotStore, auditStore, logger.With("component", "election_admin")),
		auditH:      handler.NewAuditHandler(auditStore, logger.With("component", "audit")),
		issuer:      issuer,
		codeStore:   codeStore,
		rateLimiter: rateLimiter,
		logger:      logger,
	}, nil
}

// CodeStore returns the verification code store for cleanup tasks.
func (s *Server) CodeStore() *store.VerificationCodeStore {
	return s.codeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/request-code", s.rateLimitedHandler(s.authH.RequestCode))
	outerMux.HandleFunc("POST /api/auth/verify-code", s.rateLimitedHandler(s.authH.VerifyCode))
	outerMux.HandleFunc("POST /api/auth/admin-login", s.rateLimitedHandler(s.authH.AdminLogin))
	outerMux.HandleFunc("GET /api/ballots", s.voteH.ListBallots)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	authMiddleware := middleware.RequireAuth(s.issuer)

	// Voter routes
	voterMux := http.NewServeMux()
	voterMux.HandleFunc("POST /api/votes", s.voteH.Cast)
	voterMux.HandleFunc("GET /api/ballots/{id}/remaining", s.voteH.Remaining)
	outerMux.Handle("POST /api/votes", authMiddleware(voterMux))
	outerMux.Handle("GET /api/ballots/{id}/remaining", authMiddleware(voterMux))

	// Admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/election", s.electionH.Get)
	adminMux.HandleFunc("PUT /api/admin/election/status", s.electionH.SetStatus)
	adminMux.HandleFunc("POST /api/admin/election/positions", s.electionH.AddPosition)
	adminMux.HandleFunc("DELETE /api/admin/election/positions/{name}", s.electionH.RemovePosition)
	adminMux.HandleFunc("POST /api/admin/ballots", s.electionH.CreateBallot)
	adminMux.HandleFunc("GET /api/admin/ballots/{id}/results", s.electionH.Results)
	adminMux.HandleFunc("GET /api/admin/audit-logs", s.auditH.Query)
	outerMux.Handle("/api/admin/", authMiddleware(middleware.RequireAdmin(adminMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
