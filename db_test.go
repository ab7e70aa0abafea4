package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/robalobadob/wordrush/internal/config"
	"github.com/robalobadob/wordrush/internal/store"
)

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := []config.Config{
		{StoreBackend: config.BackendMemory},
		{StoreBackend: config.BackendRedis, RedisURL: "redis://" + mr.Addr()},
		{StoreBackend: config.BackendSQLite, DBPath: filepath.Join(t.TempDir(), "wr.db")},
	}
	for _, cfg := range cases {
		t.Run(cfg.StoreBackend, func(t *testing.T) {
			gw, err := openStore(ctx, cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer gw.Close()
			if _, err := gw.WordCount(ctx); err != nil {
				t.Fatal(err)
			}
		})
	}

	if _, err := openStore(ctx, config.Config{StoreBackend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSeedWords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("owl,hoots\nemu,runs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gw := store.NewMemoryStore()
	cfg := config.Config{SeedWords: true, WordsFile: path}
	if err := seedWords(ctx, gw, cfg); err != nil {
		t.Fatal(err)
	}
	if n, _ := gw.WordCount(ctx); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	// A populated pool is not reseeded.
	cfg.WordsFile = ""
	if err := seedWords(ctx, gw, cfg); err != nil {
		t.Fatal(err)
	}
	if n, _ := gw.WordCount(ctx); n != 2 {
		t.Fatalf("count after reseed = %d, want 2", n)
	}

	off := store.NewMemoryStore()
	if err := seedWords(ctx, off, config.Config{}); err != nil {
		t.Fatal(err)
	}
	if n, _ := off.WordCount(ctx); n != 0 {
		t.Fatalf("seeding disabled but count = %d", n)
	}

	cfg = config.Config{SeedWords: true, WordsFile: filepath.Join(t.TempDir(), "missing.txt")}
	if err := seedWords(ctx, store.NewMemoryStore(), cfg); err == nil {
		t.Fatal("expected error for missing words file")
	}
}
