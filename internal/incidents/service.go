// Package incidents implements the incident collection: the store that
// owns it, the pure mutation and query functions over it, and the HTTP
// handlers exposing them.
package incidents

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
)

// Service owns the canonical ordered incident collection and keeps it
// synchronized with durable storage.
//
// The in-memory collection is the source of truth for the session. Reads
// always get whole-collection snapshots and writes replace the collection
// wholesale, so a consumer can never observe a half-applied mutation.
// Persistence is best-effort: a failed save is logged and counted but
// never blocks further mutations.
type Service struct {
	storage     Storage
	seedOnEmpty bool
	logger      *slog.Logger

	mu          sync.RWMutex
	collection  []domain.Incident
	subscribers []func([]domain.Incident)
	saveErr     error
}

// Options configures a Service.
type Options struct {
	// SeedOnEmpty seeds the sample incidents when storage holds no prior
	// data. Unreadable (corrupt) data always falls back to the seed set
	// regardless of this setting.
	SeedOnEmpty bool
	Logger      *slog.Logger
}

// NewService creates a new incident service over the given storage backend.
func NewService(storage Storage, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:     storage,
		seedOnEmpty: opts.SeedOnEmpty,
		logger:      logger,
	}
}

// Load reads the collection from durable storage. It fails soft: a missing
// collection starts from the seed set (or empty, per Options.SeedOnEmpty)
// and unreadable data falls back to the seed set with a warning. The
// session always starts.
func (s *Service) Load(ctx context.Context) {
	stored, err := s.storage.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.collection = stored
		s.logger.Info("loaded incident collection", "count", len(stored))
	case errors.Is(err, ErrNoData):
		if s.seedOnEmpty {
			s.collection = SeedIncidents()
			seedFallbacks.WithLabelValues("first_run").Inc()
			s.logger.Info("no stored incidents, starting from seed collection", "count", len(s.collection))
			s.persistLocked(ctx)
		} else {
			s.collection = nil
			s.logger.Info("no stored incidents, starting empty")
		}
	default:
		s.collection = SeedIncidents()
		seedFallbacks.WithLabelValues("corrupt").Inc()
		s.logger.Warn("stored incidents unreadable, falling back to seed collection", "error", err)
	}

	collectionSize.Set(float64(len(s.collection)))
}

// Snapshot returns a copy of the current collection in insertion order.
func (s *Service) Snapshot() []domain.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCollection(s.collection)
}

// List derives the filtered, searched, sorted view for presentation.
func (s *Service) List(q Query) []domain.Incident {
	return QueryIncidents(s.Snapshot(), q)
}

// Add validates the draft, appends the created incident and persists the
// new collection. The returned incident carries the assigned id, stamped
// reported_at and any applied defaults.
func (s *Service) Add(ctx context.Context, draft Draft) (domain.Incident, error) {
	s.mu.Lock()
	next, incident, err := AddIncident(s.collection, draft, time.Now())
	if err != nil {
		s.mu.Unlock()
		recordMutation("add", "invalid")
		return domain.Incident{}, err
	}
	snap := s.commitLocked(ctx, next)
	s.mu.Unlock()

	recordMutation("add", "ok")
	s.notify(snap)
	return incident, nil
}

// Update applies a patch to the incident matching id and persists the new
// collection. Returns ErrIncidentNotFound for an unknown id.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (domain.Incident, error) {
	s.mu.Lock()
	next, incident, err := UpdateIncident(s.collection, id, patch)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrIncidentNotFound) {
			recordMutation("update", "not_found")
		} else {
			recordMutation("update", "invalid")
		}
		return domain.Incident{}, err
	}
	snap := s.commitLocked(ctx, next)
	s.mu.Unlock()

	recordMutation("update", "ok")
	s.notify(snap)
	return incident, nil
}

// Remove excludes the incident matching id from the collection and
// persists the result. Removal is idempotent: an unknown id is a no-op,
// reported by the false return, not an error.
func (s *Service) Remove(ctx context.Context, id int64) bool {
	s.mu.Lock()
	next := RemoveIncident(s.collection, id)
	removed := len(next) != len(s.collection)
	var snap []domain.Incident
	if removed {
		snap = s.commitLocked(ctx, next)
	}
	s.mu.Unlock()

	if !removed {
		recordMutation("remove", "noop")
		return false
	}
	recordMutation("remove", "ok")
	s.notify(snap)
	return true
}

// Subscribe registers a callback invoked with a collection snapshot after
// every successful mutation. Callbacks run synchronously on the mutating
// goroutine, outside the store lock.
func (s *Service) Subscribe(fn func(collection []domain.Incident)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SaveError returns the error from the most recent persistence attempt,
// or nil when the last save succeeded. A non-nil value means the session
// is running in-memory only.
func (s *Service) SaveError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveErr
}

// commitLocked installs the new collection state, persists it and returns
// a snapshot for notification. Callers must hold the write lock.
func (s *Service) commitLocked(ctx context.Context, next []domain.Incident) []domain.Incident {
	s.collection = next
	collectionSize.Set(float64(len(next)))
	s.persistLocked(ctx)
	return copyCollection(next)
}

func (s *Service) persistLocked(ctx context.Context) {
	if err := s.storage.Save(ctx, s.collection); err != nil {
		s.saveErr = err
		persistFailures.Inc()
		s.logger.Warn("failed to persist incidents, collection retained in memory only", "error", err)
		return
	}
	s.saveErr = nil
}

func (s *Service) notify(snap []domain.Incident) {
	s.mu.RLock()
	subscribers := make([]func([]domain.Incident), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}

func copyCollection(collection []domain.Incident) []domain.Incident {
	snap := make([]domain.Incident, len(collection))
	copy(snap, collection)
	return snap
}
