package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/metrics"
)

// monthKey is the unique index backing the one-assessment-per-month rule.
type monthKey struct {
	playerID string
	year     int
	month    time.Month
}

func keyOf(a model.Assessment) monthKey {
	return monthKey{playerID: a.PlayerID, year: a.Year(), month: a.Month()}
}

// memState holds rows plus the month index. It is never shared between a
// running transaction and readers: WithTx works on a clone.
type memState struct {
	assessments map[string]model.Assessment
	months      map[monthKey]string
}

func newMemState() *memState {
	return &memState{
		assessments: make(map[string]model.Assessment),
		months:      make(map[monthKey]string),
	}
}

func (st *memState) clone() *memState {
	out := &memState{
		assessments: make(map[string]model.Assessment, len(st.assessments)),
		months:      make(map[monthKey]string, len(st.months)),
	}
	for id, a := range st.assessments {
		out.assessments[id] = a.Clone()
	}
	for k, id := range st.months {
		out.months[k] = id
	}
	return out
}

// MemoryStore is an in-process Store. Transactions are serialized by txMu
// and applied copy-on-commit, so readers never block on a running one.
type MemoryStore struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	state  *memState
	closed bool
	name   string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		state: newMemState(),
		name:  "memory",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one assessment with its scores.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	defer s.observe("get", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Assessment{}, ErrClosed
	}
	return s.state.get(ctx, id)
}

// List returns assessments matching f, newest first.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]model.Assessment, error) {
	defer s.observe("list", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.state.list(ctx, f)
}

// FindInMonth looks up the month index.
func (s *MemoryStore) FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	return s.state.findInMonth(ctx, playerID, year, month, excludeID)
}

// LatestScoresBefore scans the player's history per skill.
func (s *MemoryStore) LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.state.latestScoresBefore(ctx, playerID, skillIDs, before, excludeID)
}

// WithTx runs fn against a private copy and publishes it on success.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	defer s.observe("tx", time.Now())
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &memTx{state: work}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state = work
	return nil
}

// Count returns the number of stored assessments.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.assessments)
}

// Close marks the store unusable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) observe(op string, start time.Time) {
	metrics.RecordStoreLatency(s.name, op, float64(time.Since(start).Microseconds())/1000)
}

// memTx is the transactional view; it mutates the cloned state directly.
type memTx struct {
	state *memState
}

func (t *memTx) Get(ctx context.Context, id string) (model.Assessment, error) {
	return t.state.get(ctx, id)
}

func (t *memTx) List(ctx context.Context, f Filter) ([]model.Assessment, error) {
	return t.state.list(ctx, f)
}

func (t *memTx) FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	return t.state.findInMonth(ctx, playerID, year, month, excludeID)
}

func (t *memTx) LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	return t.state.latestScoresBefore(ctx, playerID, skillIDs, before, excludeID)
}

// GetForUpdate needs no extra locking: transactions are serialized.
func (t *memTx) GetForUpdate(ctx context.Context, id string) (model.Assessment, error) {
	return t.state.get(ctx, id)
}

func (t *memTx) Insert(ctx context.Context, a model.Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := t.state.assessments[a.ID]; exists {
		return ErrDuplicateMonth
	}
	k := keyOf(a)
	if _, taken := t.state.months[k]; taken {
		return ErrDuplicateMonth
	}
	t.state.assessments[a.ID] = a.Clone()
	t.state.months[k] = a.ID
	return nil
}

func (t *memTx) Update(ctx context.Context, a model.Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := t.state.assessments[a.ID]
	if !ok {
		return ErrNotFound
	}
	oldKey, newKey := keyOf(cur), keyOf(a)
	if oldKey != newKey {
		if owner, taken := t.state.months[newKey]; taken && owner != a.ID {
			return ErrDuplicateMonth
		}
		delete(t.state.months, oldKey)
		t.state.months[newKey] = a.ID
	}
	updated := a.Clone()
	updated.Scores = cur.Scores
	t.state.assessments[a.ID] = updated
	return nil
}

func (t *memTx) ReplaceScores(ctx context.Context, assessmentID string, scores []model.SkillScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := t.state.assessments[assessmentID]
	if !ok {
		return ErrNotFound
	}
	cur.Scores = make([]model.SkillScore, len(scores))
	for i, sc := range scores {
		cur.Scores[i] = sc.Clone()
	}
	t.state.assessments[assessmentID] = cur
	return nil
}

func (t *memTx) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := t.state.assessments[id]
	if !ok {
		return ErrNotFound
	}
	delete(t.state.assessments, id)
	delete(t.state.months, keyOf(cur))
	return nil
}

func (st *memState) get(ctx context.Context, id string) (model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assessment{}, err
	}
	a, ok := st.assessments[id]
	if !ok {
		return model.Assessment{}, ErrNotFound
	}
	return a.Clone(), nil
}

func (st *memState) list(ctx context.Context, f Filter) ([]model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var players map[string]struct{}
	if f.PlayerIDs != nil {
		players = make(map[string]struct{}, len(f.PlayerIDs))
		for _, id := range f.PlayerIDs {
			players[id] = struct{}{}
		}
	}

	out := make([]model.Assessment, 0)
	for _, a := range st.assessments {
		if players != nil {
			if _, ok := players[a.PlayerID]; !ok {
				continue
			}
		}
		if f.AssessorID != "" && a.AssessorID != f.AssessorID {
			continue
		}
		if f.Period != "" && a.Period != f.Period {
			continue
		}
		if !f.From.IsZero() && a.Date.Before(model.DateOnly(f.From)) {
			continue
		}
		if !f.To.IsZero() && a.Date.After(model.DateOnly(f.To)) {
			continue
		}
		out = append(out, a.Clone())
	}
	SortNewestFirst(out)
	return out, nil
}

func (st *memState) findInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	id, ok := st.months[monthKey{playerID: playerID, year: year, month: month}]
	if !ok || id == excludeID {
		return "", false, nil
	}
	return id, true, nil
}

func (st *memState) latestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(skillIDs))
	for _, id := range skillIDs {
		wanted[id] = struct{}{}
	}

	history := make([]model.Assessment, 0)
	for _, a := range st.assessments {
		if a.PlayerID == playerID && a.ID != excludeID && a.Date.Before(before) {
			history = append(history, a)
		}
	}
	SortNewestFirst(history)

	out := make(map[string]int)
	for _, a := range history {
		for _, sc := range a.Scores {
			if _, ok := wanted[sc.SkillID]; !ok {
				continue
			}
			if _, done := out[sc.SkillID]; !done {
				out[sc.SkillID] = sc.Score
			}
		}
		if len(out) == len(wanted) {
			break
		}
	}
	return out, nil
}

// SortNewestFirst orders by date desc, then creation desc, then id.
func SortNewestFirst(as []model.Assessment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.After(as[j].Date)
		}
		if !as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].CreatedAt.After(as[j].CreatedAt)
		}
		return as[i].ID < as[j].ID
	})
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)
