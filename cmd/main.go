// hirebot-portrait-service
//
// Versioned job-portrait store for the hirebot recruiting platform.
// Exposes a REST API used by the dashboard, the editor scripts and the
// screening agents to implement:
//   - create/update(baseId, fields)        — whole-version replacement
//   - switchVersion / deleteVersion        — current-pointer management
//   - publish(baseId, fields, feedbackIds) — new version + ledger close
//   - feedback ingestion and open-item queries
//
// Mutations publish EVENT_PORTRAIT_* to Redis for the dashboard SSE feed.
// A cron job periodically publishes the open-feedback digest per job.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hirebot/portrait-service/internal/config"
	"hirebot/portrait-service/internal/db"
	"hirebot/portrait-service/internal/digest"
	"hirebot/portrait-service/internal/feedback"
	"hirebot/portrait-service/internal/generate"
	"hirebot/portrait-service/internal/httpapi"
	"hirebot/portrait-service/internal/portrait"
	"hirebot/portrait-service/internal/publish"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[portrait-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[portrait-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[portrait-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[portrait-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[portrait-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[portrait-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[portrait-service] Redis connected ✓")

	// ── Core wiring ──────────────────────────────────────────────────────────
	store := portrait.NewPGStore(pool)
	portraits := portrait.NewService(store, rdb)
	ledger := feedback.NewPGLedger(pool)
	publisher := publish.New(portraits, ledger, rdb)

	var generator generate.Generator
	if cfg.GoogleAPIKey != "" {
		gem, err := generate.NewGemini(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("[portrait-service] Gemini: %v", err)
		}
		generator = gem
		log.Printf("[portrait-service] Draft generator enabled (%s)", cfg.GeminiModel)
	} else {
		log.Println("[portrait-service] GOOGLE_API_KEY not set — draft generation disabled")
	}

	// ── Digest scheduler ─────────────────────────────────────────────────────
	sched := digest.New(ledger, rdb, cfg.DigestIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[portrait-service] Digest scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	api := httpapi.NewServer(portraits, ledger, publisher, generator)
	api.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[portrait-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[portrait-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[portrait-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[portrait-service] Shutdown error: %v", err)
	}
	log.Println("[portrait-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "portrait-service",
		"version": version,
	})
}
