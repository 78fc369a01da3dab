package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/cache"
)

const markerKey = "schema_migrations"

type markerSnapshot struct {
	Present bool     `json:"present"`
	Applied []string `json:"applied"`
}

// Marker exposes the applied-migration set, cached for ttl so that hot
// request paths do not read schema_migrations on every call.
type Marker struct {
	db    Querier
	cache *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewMarker(db Querier, c *cache.Cache, ttl time.Duration, log zerolog.Logger) *Marker {
	return &Marker{db: db, cache: c, ttl: ttl, log: log}
}

// Applied returns the applied migration ids. ok is false when no marker is
// available, in which case callers fall back to probing.
func (m *Marker) Applied(ctx context.Context) (applied map[string]bool, ok bool) {
	if m == nil {
		return nil, false
	}

	if m.cache != nil {
		var snap markerSnapshot
		err := m.cache.Get(ctx, markerKey, &snap)
		if err == nil {
			return snap.toSet()
		}
		if !errors.Is(err, cache.ErrMiss) {
			m.log.Debug().Err(err).Msg("schema marker cache unavailable")
		}
	}

	set, present, err := AppliedMigrations(ctx, m.db)
	if err != nil {
		m.log.Warn().Err(err).Msg("read schema marker")
		return nil, false
	}

	if m.cache != nil {
		snap := markerSnapshot{Present: present}
		for v := range set {
			snap.Applied = append(snap.Applied, v)
		}
		if err := m.cache.Set(ctx, markerKey, snap, m.ttl); err != nil {
			m.log.Debug().Err(err).Msg("store schema marker")
		}
	}
	return set, present
}

// Invalidate drops the cached marker, used right after migrations run.
func (m *Marker) Invalidate(ctx context.Context) error {
	if m == nil || m.cache == nil {
		return nil
	}
	return m.cache.Delete(ctx, markerKey)
}

func (s markerSnapshot) toSet() (map[string]bool, bool) {
	if !s.Present {
		return nil, false
	}
	set := make(map[string]bool, len(s.Applied))
	for _, v := range s.Applied {
		set[v] = true
	}
	return set, true
}
