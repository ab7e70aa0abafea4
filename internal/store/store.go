// internal/store/store.go
//
// Persistence gateway contracts shared by every backend.
//
// A Gateway bundles three concerns:
//   - Words:       the shared word/hint pool (draw excluding used words).
//   - Sessions:    per-session game state and end-of-game summaries, with TTL.
//   - Leaderboard: best score per player name with atomic update-and-rank.
//
// Backends: memory.go (process-local), redis.go (go-redis), sqlite.go (go-sqlite3).
// Archiver is optional; the controller type-asserts for it.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/words"
)

var (
	// ErrNotFound is returned for unknown or expired keys.
	ErrNotFound = errors.New("store: not found")
	// ErrNoWords is returned when no word is left to draw.
	ErrNoWords = errors.New("store: no words available")
)

// Words is the shared word pool.
type Words interface {
	// DrawWord returns a random entry whose word is not in excluding.
	DrawWord(ctx context.Context, excluding []string) (words.Entry, error)
	// WordAt returns the i-th entry in word order (0-based).
	WordAt(ctx context.Context, i int) (words.Entry, error)
	// ReplaceWords swaps the whole pool.
	ReplaceWords(ctx context.Context, entries []words.Entry) error
	WordCount(ctx context.Context) (int, error)
}

// Sessions stores live game state and validated summaries.
// A ttl <= 0 means the value never expires.
type Sessions interface {
	LoadSession(ctx context.Context, id string) (game.State, error)
	SaveSession(ctx context.Context, st game.State, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error

	LoadSummary(ctx context.Context, gameID string) (game.Summary, error)
	SaveSummary(ctx context.Context, sum game.Summary, ttl time.Duration) error
	DeleteSummary(ctx context.Context, gameID string) error
}

// ScoreEntry is one leaderboard row.
type ScoreEntry struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Standing is the result of a leaderboard submission.
type Standing struct {
	Accepted bool         `json:"accepted"`
	Rank     int          `json:"rank,omitempty"`          // 1-based, when accepted
	Total    int          `json:"total,omitempty"`         // entries after the update
	Existing float64      `json:"existingScore,omitempty"` // when rejected
	Top      []ScoreEntry `json:"top,omitempty"`
}

// Leaderboard keeps the best score per name, ordered by score descending
// and then by name descending.
type Leaderboard interface {
	// SubmitScore records score for name unless the name already holds a
	// score >= score. It returns the resulting rank and the top `limit` rows.
	SubmitScore(ctx context.Context, name string, score float64, limit int) (Standing, error)
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)
	PlayerScore(ctx context.Context, name string) (float64, error)
	WipeScores(ctx context.Context) error
}

// ArchivedGame is a finished session kept for history.
type ArchivedGame struct {
	game.Summary
	FinishedAt time.Time `json:"finishedAt"`
}

// Archiver is implemented by backends that keep finished games.
type Archiver interface {
	ArchiveGame(ctx context.Context, sum game.Summary, finishedAt time.Time) error
	RecentGames(ctx context.Context, limit int) ([]ArchivedGame, error)
}

// Gateway is everything the session controller needs from persistence.
type Gateway interface {
	Words
	Sessions
	Leaderboard
	Close() error
}

// Seed loads entries into g when its pool is empty and reports whether it did.
func Seed(ctx context.Context, g Words, entries []words.Entry) (bool, error) {
	n, err := g.WordCount(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := g.ReplaceWords(ctx, entries); err != nil {
		return false, err
	}
	return true, nil
}
