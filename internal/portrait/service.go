package portrait

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service is the only layer callers interact with: it validates field
// payloads, derives versioned ids and delegates all storage mutation to the
// Store. Mutations publish a Redis event for the dashboard SSE feed
// (non-fatal: a failed publish is logged, never surfaced).
type Service struct {
	store Store
	rdb   *redis.Client
}

// NewService returns a configured Service. rdb may be nil, in which case no
// events are published.
func NewService(store Store, rdb *redis.Client) *Service {
	return &Service{store: store, rdb: rdb}
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Create makes version 1 of a brand-new portrait. Returns ErrAlreadyExists
// when the base id already has versions — callers must use Update instead.
func (s *Service) Create(ctx context.Context, baseID string, rawFields json.RawMessage) (*Record, error) {
	if baseID == "" {
		return nil, &ValidationError{Msg: "baseId is required"}
	}
	fields, err := DecodeFields(rawFields)
	if err != nil {
		return nil, err
	}

	_, err = s.store.GetCurrent(ctx, baseID)
	if err == nil {
		return nil, ErrAlreadyExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rec, err := s.store.Insert(ctx, baseID, fields)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "EVENT_PORTRAIT_CREATED", map[string]string{
		"baseId":  rec.BaseID,
		"version": strconv.Itoa(rec.Version),
	})
	return rec, nil
}

// Update creates the next version of an existing portrait and makes it
// current. Returns ErrNotFound when the base id has no versions yet.
func (s *Service) Update(ctx context.Context, baseID string, rawFields json.RawMessage) (*Record, error) {
	fields, err := DecodeFields(rawFields)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetCurrent(ctx, baseID); err != nil {
		return nil, err
	}

	rec, err := s.store.Insert(ctx, baseID, fields)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "EVENT_PORTRAIT_UPDATED", map[string]string{
		"baseId":  rec.BaseID,
		"version": strconv.Itoa(rec.Version),
	})
	return rec, nil
}

// SwitchVersion makes the given existing version current and returns it.
// Switching to the version that is already current is a no-op success.
func (s *Service) SwitchVersion(ctx context.Context, baseID string, version int) (*Record, error) {
	if err := s.store.SwitchCurrent(ctx, baseID, version); err != nil {
		return nil, err
	}

	rec, err := s.store.GetCurrent(ctx, baseID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "EVENT_VERSION_SWITCHED", map[string]string{
		"baseId":  baseID,
		"version": strconv.Itoa(version),
	})
	return rec, nil
}

// DeleteVersion removes one version, addressed by its versioned id.
// Deleting the last remaining version fails with ErrInvalidOperation.
func (s *Service) DeleteVersion(ctx context.Context, versionedID string) error {
	baseID, version, err := ParseVersionedID(versionedID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, baseID, version); err != nil {
		return err
	}

	s.publishEvent(ctx, "EVENT_VERSION_DELETED", map[string]string{
		"baseId":  baseID,
		"version": strconv.Itoa(version),
	})
	return nil
}

// List returns version metadata for baseID, ordered ascending, without the
// field payloads. Returns ErrNotFound when the base id has no versions.
func (s *Service) List(ctx context.Context, baseID string) ([]VersionMeta, error) {
	recs, err := s.store.ListVersions(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}

	metas := make([]VersionMeta, 0, len(recs))
	for i := range recs {
		metas = append(metas, recs[i].Meta())
	}
	return metas, nil
}

// GetCurrent returns the current version of baseID.
func (s *Service) GetCurrent(ctx context.Context, baseID string) (*Record, error) {
	return s.store.GetCurrent(ctx, baseID)
}

// GetVersion returns one exact version, addressed by its versioned id.
func (s *Service) GetVersion(ctx context.Context, versionedID string) (*Record, error) {
	baseID, version, err := ParseVersionedID(versionedID)
	if err != nil {
		return nil, err
	}
	return s.store.GetVersion(ctx, baseID, version)
}

// ─── Events ──────────────────────────────────────────────────────────────────

func (s *Service) publishEvent(ctx context.Context, eventType string, payload map[string]string) {
	if s.rdb == nil {
		return
	}
	payload["type"] = eventType
	event, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("marshal event failed", "type", eventType, "err", err)
		return
	}
	if err := s.rdb.Publish(ctx, eventType, event).Err(); err != nil {
		slog.Warn(fmt.Sprintf("publish %s failed", eventType), "err", err)
	}
}
