// Package digest wires up the cron job that periodically publishes the
// open-feedback totals per job, so the statistics dashboard can show which
// portraits have corrections waiting for a publish.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"hirebot/portrait-service/internal/feedback"
)

// Scheduler wraps robfig/cron and manages the digest loop.
type Scheduler struct {
	cron   *cron.Cron
	ledger feedback.Ledger
	rdb    *redis.Client
	spec   string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(ledger feedback.Ledger, rdb *redis.Client, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		ledger: ledger,
		rdb:    rdb,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one digest
// immediately so the dashboard is populated without waiting for the first
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runDigest(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[digest] Cron started — spec: %s", s.spec)

	go s.runDigest(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[digest] Cron stopped")
}

// runDigest reads the per-job open-feedback totals and publishes them.
func (s *Scheduler) runDigest(ctx context.Context) {
	counts, err := s.ledger.OpenCounts(ctx)
	if err != nil {
		log.Printf("[digest] OpenCounts error: %v", err)
		return
	}
	if len(counts) == 0 {
		log.Println("[digest] No open feedback — nothing to publish")
		return
	}

	payload, err := buildDigest(time.Now().UTC(), counts)
	if err != nil {
		log.Printf("[digest] build error: %v", err)
		return
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, "EVENT_FEEDBACK_DIGEST", payload).Err(); err != nil {
			log.Printf("[digest] publish EVENT_FEEDBACK_DIGEST failed: %v", err)
			return
		}
	}
	log.Printf("[digest] Published open-feedback digest for %d job(s)", len(counts))
}

// buildDigest renders the digest event payload.
func buildDigest(at time.Time, counts []feedback.BaseCount) ([]byte, error) {
	return json.Marshal(struct {
		Type        string               `json:"type"`
		GeneratedAt time.Time            `json:"generatedAt"`
		Jobs        []feedback.BaseCount `json:"jobs"`
	}{
		Type:        "EVENT_FEEDBACK_DIGEST",
		GeneratedAt: at,
		Jobs:        counts,
	})
}
