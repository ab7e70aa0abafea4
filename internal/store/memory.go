// internal/store/memory.go
//
// In-memory implementation of Gateway and Archiver.
// This is a lightweight persistence layer used for development/testing, or
// when durability is not required.
//
// Characteristics:
//   - Sessions and summaries are held JSON-encoded, so a reload returns an
//     independent copy exactly like the networked backends do.
//   - TTLs are checked on read against an injectable clock.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/words"
)

type memItem struct {
	data    []byte
	expires time.Time // zero means never
}

// Memory is a map-based Gateway.
type Memory struct {
	// Now is the clock used for TTL checks.
	Now func() time.Time

	mu        sync.RWMutex
	words     []words.Entry // sorted by word
	sessions  map[string]memItem
	summaries map[string]memItem
	scores    map[string]float64
	archive   []ArchivedGame
}

// NewMemoryStore constructs an empty in-memory Gateway.
func NewMemoryStore() *Memory {
	return &Memory{
		Now:       time.Now,
		sessions:  make(map[string]memItem),
		summaries: make(map[string]memItem),
		scores:    make(map[string]float64),
	}
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.Now().Add(ttl)
}

func (m *Memory) alive(it memItem) bool {
	return it.expires.IsZero() || m.Now().Before(it.expires)
}

// ----------------------------- words ---------------------------------------

func (m *Memory) DrawWord(ctx context.Context, excluding []string) (words.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := words.Pick(m.words, excluding)
	if !ok {
		return words.Entry{}, ErrNoWords
	}
	return e, nil
}

func (m *Memory) WordAt(ctx context.Context, i int) (words.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.words) {
		return words.Entry{}, ErrNotFound
	}
	return m.words[i], nil
}

func (m *Memory) ReplaceWords(ctx context.Context, entries []words.Entry) error {
	list := sortedEntries(entries)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = list
	return nil
}

func (m *Memory) WordCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.words), nil
}

// sortedEntries normalizes, de-duplicates and orders entries by word.
func sortedEntries(entries []words.Entry) []words.Entry {
	list := lo.Map(entries, func(e words.Entry, _ int) words.Entry {
		return words.Entry{Word: words.Normalize(e.Word), Hint: e.Hint}
	})
	list = lo.UniqBy(list, func(e words.Entry) string { return e.Word })
	slices.SortFunc(list, func(a, b words.Entry) int { return cmp.Compare(a.Word, b.Word) })
	return list
}

// ---------------------------- sessions -------------------------------------

func (m *Memory) LoadSession(ctx context.Context, id string) (game.State, error) {
	var st game.State
	err := m.load(m.sessions, id, &st)
	return st, err
}

func (m *Memory) SaveSession(ctx context.Context, st game.State, ttl time.Duration) error {
	return m.save(m.sessions, st.ID, st, ttl)
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) LoadSummary(ctx context.Context, gameID string) (game.Summary, error) {
	var sum game.Summary
	err := m.load(m.summaries, gameID, &sum)
	return sum, err
}

func (m *Memory) SaveSummary(ctx context.Context, sum game.Summary, ttl time.Duration) error {
	return m.save(m.summaries, sum.GameID, sum, ttl)
}

func (m *Memory) DeleteSummary(ctx context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, gameID)
	return nil
}

func (m *Memory) load(bucket map[string]memItem, key string, out any) error {
	m.mu.RLock()
	it, ok := bucket[key]
	m.mu.RUnlock()
	if !ok || !m.alive(it) {
		return ErrNotFound
	}
	return json.Unmarshal(it.data, out)
}

func (m *Memory) save(bucket map[string]memItem, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket[key] = memItem{data: data, expires: m.expiry(ttl)}
	return nil
}

// --------------------------- leaderboard -----------------------------------

func (m *Memory) SubmitScore(ctx context.Context, name string, score float64, limit int) (Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.scores[name]; ok && prev >= score {
		return Standing{Accepted: false, Existing: prev}, nil
	}
	m.scores[name] = score
	ranked := m.rankedLocked()
	rank := slices.IndexFunc(ranked, func(e ScoreEntry) bool { return e.Name == name }) + 1
	return Standing{
		Accepted: true,
		Rank:     rank,
		Total:    len(ranked),
		Top:      lo.Slice(ranked, 0, limit),
	}, nil
}

func (m *Memory) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Slice(m.rankedLocked(), 0, limit), nil
}

func (m *Memory) PlayerScore(ctx context.Context, name string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[name]
	if !ok {
		return 0, ErrNotFound
	}
	return s, nil
}

func (m *Memory) WipeScores(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = make(map[string]float64)
	return nil
}

func (m *Memory) rankedLocked() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(m.scores))
	for n, s := range m.scores {
		out = append(out, ScoreEntry{Name: n, Score: s})
	}
	slices.SortFunc(out, compareScores)
	return out
}

// compareScores orders by score descending, then name descending.
func compareScores(a, b ScoreEntry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(b.Name, a.Name)
}

// ----------------------------- archive -------------------------------------

func (m *Memory) ArchiveGame(ctx context.Context, sum game.Summary, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = append(m.archive, ArchivedGame{Summary: sum, FinishedAt: finishedAt.UTC()})
	return nil
}

func (m *Memory) RecentGames(ctx context.Context, limit int) ([]ArchivedGame, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.archive)
	slices.Reverse(out)
	return lo.Slice(out, 0, limit), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
