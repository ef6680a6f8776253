package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/quorum/internal/database"
	"github.com/dukerupert/quorum/internal/email"
	"github.com/dukerupert/quorum/internal/logging"
	"github.com/dukerupert/quorum/internal/server"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	port := os.Getenv("QUORUM_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("QUORUM_DB_PATH")
	if dbPath == "" {
		dbPath = "quorum.db"
	}

	logger := logging.Setup(os.Getenv("QUORUM_LOG_LEVEL"), os.Getenv("QUORUM_LOG_FORMAT"))

	secret := os.Getenv("QUORUM_JWT_SECRET")
	if secret == "" {
		log.Fatal("QUORUM_JWT_SECRET is required")
	}

	adminUser := os.Getenv("QUORUM_ADMIN_USER")
	adminHash := os.Getenv("QUORUM_ADMIN_PASSWORD_HASH")
	if adminUser == "" || adminHash == "" {
		log.Fatal("QUORUM_ADMIN_USER and QUORUM_ADMIN_PASSWORD_HASH are required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	sender := email.NewClient(os.Getenv("QUORUM_POSTMARK_TOKEN"), os.Getenv("QUORUM_FROM_EMAIL"))
	if !sender.Configured() {
		logger.Warn("email delivery not configured, verification codes will not be sent")
	}

	srv, err := server.New(db, sender, server.Config{
		SessionSecret:     []byte(secret),
		AdminUsername:     adminUser,
		AdminPasswordHash: adminHash,
	}, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic cleanup: expired verification codes and stale rate-limit
	// entries. Votes and audit entries are never pruned.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.CodeStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired codes", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired codes", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupDone:
				return
			}
		}
	}()

	go func() {
		logger.Info("quorum listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(cleanupDone)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
