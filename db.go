// db.go
//
// Persistence wiring for the wordrush server.
// Responsibilities:
//   - Selecting the store backend from STORE_BACKEND (memory, redis, sqlite).
//   - Seeding the word pool on first start (SEED_WORDS, WORDS_FILE).
//
// Note: the sqlite backend applies its embedded migrations when opened.

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordrush/internal/config"
	"github.com/robalobadob/wordrush/internal/store"
	"github.com/robalobadob/wordrush/internal/words"
)

// openStore returns the gateway named by cfg.StoreBackend.
func openStore(ctx context.Context, cfg config.Config) (store.Gateway, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendRedis:
		return store.OpenRedis(ctx, cfg.RedisURL)
	case config.BackendSQLite:
		return store.OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// seedWords fills an empty word pool from WORDS_FILE or the embedded list.
// An existing pool is left untouched.
func seedWords(ctx context.Context, g store.Words, cfg config.Config) error {
	if !cfg.SeedWords {
		return nil
	}
	entries, err := words.Load(cfg.WordsFile)
	if err != nil {
		return fmt.Errorf("load words: %w", err)
	}
	seeded, err := store.Seed(ctx, g, entries)
	if err != nil {
		return fmt.Errorf("seed words: %w", err)
	}
	if seeded {
		log.Info().Int("count", len(entries)).Str("source", wordsSource(cfg.WordsFile)).Msg("word pool seeded")
	}
	return nil
}

func wordsSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
