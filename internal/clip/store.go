// Package clip keeps generated WAV clips in memory so they can be played back
// by id. A session owns at most one clip; generating a new one releases the
// previous clip.
package clip

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-tts/internal/config"
)

// ErrNotFound is returned for unknown, released or expired clips.
var ErrNotFound = errors.New("clip not found")

// Handle describes a stored clip.
type Handle struct {
	ID        string
	Owner     string
	Size      int
	CreatedAt time.Time
	ExpiresAt time.Time
}

type entry struct {
	handle Handle
	wav    []byte
	seq    uint64
}

// Store holds clips until they are released, superseded or expire.
type Store struct {
	mu     sync.Mutex
	clips  map[string]*entry
	owners map[string]string
	seq    uint64
	ttl    time.Duration
	max    int
	sweep  time.Duration
	log    *slog.Logger
	clock  func() time.Time
}

func New(cfg config.ClipsConfig, log *slog.Logger) *Store {
	s := &Store{
		clips:  make(map[string]*entry),
		owners: make(map[string]string),
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		max:    cfg.MaxClips,
		sweep:  time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		log:    log.With(slog.String("component", "clip-store")),
		clock:  time.Now,
	}
	if err := s.initMetrics(); err != nil {
		s.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return s
}

func (s *Store) initMetrics() error {
	meter := otel.Meter("github.com/loqalabs/loqa-tts/clip")
	_, err := meter.Int64ObservableGauge("loqa.tts.clips",
		metric.WithDescription("Clips currently held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.Len()))
			return nil
		}))
	return err
}

// Acquire stores wav for owner and returns its handle. Any clip owner held
// before is released. An empty owner never supersedes anything.
func (s *Store) Acquire(owner string, wav []byte) Handle {
	now := s.clock()
	h := Handle{
		ID:        uuid.NewString(),
		Owner:     owner,
		Size:      len(wav),
		CreatedAt: now,
	}
	if s.ttl > 0 {
		h.ExpiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner != "" {
		if prev, ok := s.owners[owner]; ok {
			s.releaseLocked(prev, "superseded")
		}
		s.owners[owner] = h.ID
	}
	for s.max > 0 && len(s.clips) >= s.max {
		s.releaseLocked(s.oldestLocked(), "evicted")
	}
	s.seq++
	s.clips[h.ID] = &entry{handle: h, wav: wav, seq: s.seq}
	return h
}

// Open returns the clip bytes. The slice must not be modified.
func (s *Store) Open(id string) (Handle, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.clips[id]
	if !ok || s.expiredLocked(e, s.clock()) {
		return Handle{}, nil, ErrNotFound
	}
	return e.handle, e.wav, nil
}

// Release frees a clip once playback has ended.
func (s *Store) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clips[id]; !ok {
		return ErrNotFound
	}
	s.releaseLocked(id, "released")
	return nil
}

// Sweep drops every clip that has expired by now and reports how many went.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, e := range s.clips {
		if s.expiredLocked(e, now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.releaseLocked(id, "expired")
	}
	return len(expired)
}

// Run sweeps on the configured interval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	if s.sweep <= 0 || s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.clock()); n > 0 {
				s.log.Debug("expired clips swept", slog.Int("count", n))
			}
		}
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

func (s *Store) expiredLocked(e *entry, now time.Time) bool {
	return !e.handle.ExpiresAt.IsZero() && !now.Before(e.handle.ExpiresAt)
}

func (s *Store) oldestLocked() string {
	var oldest *entry
	for _, e := range s.clips {
		if oldest == nil || e.seq < oldest.seq {
			oldest = e
		}
	}
	return oldest.handle.ID
}

func (s *Store) releaseLocked(id, reason string) {
	e, ok := s.clips[id]
	if !ok {
		return
	}
	delete(s.clips, id)
	if owner := e.handle.Owner; owner != "" && s.owners[owner] == id {
		delete(s.owners, owner)
	}
	s.log.Debug("clip released", slog.String("clip_id", id), slog.String("reason", reason))
}
