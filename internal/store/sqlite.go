// internal/store/sqlite.go
//
// SQLite-backed Gateway and Archiver.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (assets/sql/*.sql, recorded in _migrations).
//   - Sessions/summaries as JSON rows with an expires_at column (unix ms, 0 = never).
//   - Leaderboard upsert + rank inside one transaction.
//   - Archive of finished games for history.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/robalobadob/wordrush/assets"
	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/words"
)

// finishedLayout is fixed-width so finished_at sorts lexically.
const finishedLayout = "2006-01-02T15:04:05.000000Z"

// SQLite is a Gateway over database/sql with the sqlite3 driver.
type SQLite struct {
	db *sql.DB
	// Now is the clock used for expiry.
	Now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLite(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite migrates db and wraps it.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	mfs, err := assets.Migrations()
	if err != nil {
		return nil, err
	}
	if err := migrate(db, mfs); err != nil {
		return nil, err
	}
	return &SQLite{db: db, Now: time.Now}, nil
}

// openDB opens a SQLite database file, creating its directory if missing.
// Configures busy timeout, WAL journaling and foreign keys.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies every *.sql file of mfs in lexical order, once each.
// Files are tracked by name in _migrations and run inside their own transaction.
func migrate(db *sql.DB, mfs fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	files, err := fs.Glob(mfs, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}
		body, err := fs.ReadFile(mfs, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

func (s *SQLite) nowMs() int64 { return s.Now().UnixMilli() }

func (s *SQLite) expiresAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.Now().Add(ttl).UnixMilli()
}

// ----------------------------- words ---------------------------------------

func (s *SQLite) DrawWord(ctx context.Context, excluding []string) (words.Entry, error) {
	q := `SELECT word, hint FROM words`
	args := lo.Map(excluding, func(w string, _ int) any { return words.Normalize(w) })
	if len(args) > 0 {
		q += ` WHERE word NOT IN (` + strings.TrimSuffix(strings.Repeat("?,", len(args)), ",") + `)`
	}
	q += ` ORDER BY random() LIMIT 1`
	var e words.Entry
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&e.Word, &e.Hint)
	if errors.Is(err, sql.ErrNoRows) {
		return words.Entry{}, ErrNoWords
	}
	return e, err
}

func (s *SQLite) WordAt(ctx context.Context, i int) (words.Entry, error) {
	if i < 0 {
		return words.Entry{}, ErrNotFound
	}
	var e words.Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT word, hint FROM words ORDER BY word LIMIT 1 OFFSET ?`, i,
	).Scan(&e.Word, &e.Hint)
	if errors.Is(err, sql.ErrNoRows) {
		return words.Entry{}, ErrNotFound
	}
	return e, err
}

func (s *SQLite) ReplaceWords(ctx context.Context, entries []words.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM words`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO words (word, hint) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range sortedEntries(entries) {
		if _, err := stmt.ExecContext(ctx, e.Word, e.Hint); err != nil {
			return fmt.Errorf("insert word %s: %w", e.Word, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) WordCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM words`).Scan(&n)
	return n, err
}

// ---------------------------- sessions -------------------------------------

func (s *SQLite) loadRow(ctx context.Context, query, key string, out any) error {
	var payload string
	err := s.db.QueryRowContext(ctx, query, key, s.nowMs()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

func (s *SQLite) LoadSession(ctx context.Context, id string) (game.State, error) {
	var st game.State
	err := s.loadRow(ctx,
		`SELECT state FROM sessions WHERE id=? AND (expires_at=0 OR expires_at>?)`, id, &st)
	return st, err
}

func (s *SQLite) SaveSession(ctx context.Context, st game.State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, state, expires_at) VALUES (?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET state=excluded.state, expires_at=excluded.expires_at`,
		st.ID, string(data), s.expiresAt(ttl),
	)
	return err
}

func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (s *SQLite) LoadSummary(ctx context.Context, gameID string) (game.Summary, error) {
	var sum game.Summary
	err := s.loadRow(ctx,
		`SELECT payload FROM summaries WHERE game_id=? AND (expires_at=0 OR expires_at>?)`, gameID, &sum)
	return sum, err
}

func (s *SQLite) SaveSummary(ctx context.Context, sum game.Summary, ttl time.Duration) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO summaries (game_id, payload, expires_at) VALUES (?, ?, ?)
        ON CONFLICT(game_id) DO UPDATE SET payload=excluded.payload, expires_at=excluded.expires_at`,
		sum.GameID, string(data), s.expiresAt(ttl),
	)
	return err
}

func (s *SQLite) DeleteSummary(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE game_id=?`, gameID)
	return err
}

// --------------------------- leaderboard -----------------------------------

func (s *SQLite) SubmitScore(ctx context.Context, name string, score float64, limit int) (Standing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Standing{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev float64
	err = tx.QueryRowContext(ctx, `SELECT score FROM leaderboard WHERE name=?`, name).Scan(&prev)
	switch {
	case err == nil && prev >= score:
		return Standing{Accepted: false, Existing: prev}, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return Standing{}, err
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO leaderboard (name, score, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET score=excluded.score, updated_at=excluded.updated_at`,
		name, score, s.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return Standing{}, err
	}

	var above, total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM leaderboard WHERE score>? OR (score=? AND name>?)`,
		score, score, name,
	).Scan(&above); err != nil {
		return Standing{}, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM leaderboard`).Scan(&total); err != nil {
		return Standing{}, err
	}
	top, err := topScores(ctx, tx, limit)
	if err != nil {
		return Standing{}, err
	}
	if err := tx.Commit(); err != nil {
		return Standing{}, err
	}
	return Standing{Accepted: true, Rank: above + 1, Total: total, Top: top}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func topScores(ctx context.Context, q querier, limit int) ([]ScoreEntry, error) {
	out := make([]ScoreEntry, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT name, score FROM leaderboard ORDER BY score DESC, name DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	return topScores(ctx, s.db, limit)
}

func (s *SQLite) PlayerScore(ctx context.Context, name string) (float64, error) {
	var score float64
	err := s.db.QueryRowContext(ctx, `SELECT score FROM leaderboard WHERE name=?`, name).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return score, err
}

func (s *SQLite) WipeScores(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM leaderboard`)
	return err
}

// ----------------------------- archive -------------------------------------

func (s *SQLite) ArchiveGame(ctx context.Context, sum game.Summary, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO games (id, score, words_completed, total_correct, time_taken, finished_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		sum.GameID, sum.Score, sum.WordsCompleted, sum.TotalCorrectGuesses, sum.TimeTaken,
		finishedAt.UTC().Format(finishedLayout),
	)
	return err
}

func (s *SQLite) RecentGames(ctx context.Context, limit int) ([]ArchivedGame, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, score, words_completed, total_correct, time_taken, finished_at
        FROM games ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ArchivedGame, 0, limit)
	for rows.Next() {
		var g ArchivedGame
		var finished string
		if err := rows.Scan(&g.GameID, &g.Score, &g.WordsCompleted, &g.TotalCorrectGuesses, &g.TimeTaken, &finished); err != nil {
			return nil, err
		}
		g.FinishedAt, _ = time.Parse(finishedLayout, finished)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
