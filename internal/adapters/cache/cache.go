// Package cache stores computed player progress so repeated analytics reads
// skip the history scan. Entries are invalidated on every write for the
// player and expire after a TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/metrics"
)

// DefaultTTL bounds how long a progress entry may be served.
const DefaultTTL = 5 * time.Minute

// KeyPrefix namespaces progress entries.
const KeyPrefix = "pitchside:progress:"

// Key returns the cache key for a player's progress.
func Key(playerID string) string {
	return KeyPrefix + playerID
}

// entry is the stored JSON shape.
type entry struct {
	PlayerID         string                     `json:"player_id"`
	TotalAssessments int                        `json:"total_assessments"`
	AverageScore     float64                    `json:"average_score"`
	CategoryAverages map[model.Category]float64 `json:"category_averages"`
	Trend            analytics.Trend            `json:"trend"`
	LatestDate       *time.Time                 `json:"latest_assessment_date,omitempty"`
}

// Encode serializes p for storage.
func Encode(p analytics.Progress) ([]byte, error) {
	data, err := json.Marshal(entry{
		PlayerID:         p.PlayerID,
		TotalAssessments: p.TotalAssessments,
		AverageScore:     p.AverageScore,
		CategoryAverages: p.CategoryAverages,
		Trend:            p.Trend,
		LatestDate:       p.LatestAssessmentDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

// Decode restores a stored entry.
func Decode(data []byte) (analytics.Progress, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return analytics.Progress{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	p := analytics.Progress{
		PlayerID:             e.PlayerID,
		TotalAssessments:     e.TotalAssessments,
		AverageScore:         e.AverageScore,
		CategoryAverages:     e.CategoryAverages,
		Trend:                e.Trend,
		LatestAssessmentDate: e.LatestDate,
	}
	if p.CategoryAverages == nil {
		p.CategoryAverages = analytics.CategoryAverages{}
	}
	return p, nil
}

// Nop never stores anything. Every Get is a miss.
type Nop struct{}

func (Nop) Get(context.Context, string) (analytics.Progress, error) {
	return analytics.Progress{}, ErrCacheMiss
}

func (Nop) Set(context.Context, analytics.Progress) error { return nil }
func (Nop) Invalidate(context.Context, string) error      { return nil }
func (Nop) Close() error                                  { return nil }

// Memory is an in-process cache for single-node deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryOption applies a configuration option to the Memory cache.
type MemoryOption func(*Memory)

// WithMemoryTTL sets the entry lifetime.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the stored progress or ErrCacheMiss.
func (m *Memory) Get(_ context.Context, playerID string) (analytics.Progress, error) {
	m.mu.Lock()
	e, ok := m.entries[Key(playerID)]
	if ok && !m.now().Before(e.expires) {
		delete(m.entries, Key(playerID))
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		metrics.RecordCacheMiss()
		return analytics.Progress{}, ErrCacheMiss
	}
	p, err := Decode(e.data)
	if err != nil {
		metrics.RecordCacheError()
		return analytics.Progress{}, err
	}
	metrics.RecordCacheHit()
	return p, nil
}

// Set stores p until the TTL passes.
func (m *Memory) Set(_ context.Context, p analytics.Progress) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[Key(p.PlayerID)] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Invalidate drops the player's entry.
func (m *Memory) Invalidate(_ context.Context, playerID string) error {
	m.mu.Lock()
	delete(m.entries, Key(playerID))
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
