// internal/store/redis.go
//
// Redis-backed Gateway built on go-redis.
//
// Key layout:
//   words          JSON array of [word, hint] pairs, sorted by word
//   game:<id>      JSON game.State, SET with EX
//   summary:<id>   JSON game.Summary, SET with EX
//   leaderboard    sorted set, member = player name, score = best score
//
// Score submission reads ZSCORE first, then runs ZADD GT + ZREVRANK + ZCARD
// in one MULTI so the stored score can never go down.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/words"
)

const (
	wordsKey       = "words"
	leaderboardKey = "leaderboard"
)

// Redis is a Gateway over a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb), nil
}

func gameKey(id string) string    { return fmt.Sprintf("game:%s", id) }
func summaryKey(id string) string { return fmt.Sprintf("summary:%s", id) }

// ----------------------------- words ---------------------------------------

func (r *Redis) loadWords(ctx context.Context) ([]words.Entry, error) {
	raw, err := r.rdb.Get(ctx, wordsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}
	return lo.Map(pairs, func(p [2]string, _ int) words.Entry {
		return words.Entry{Word: p[0], Hint: p[1]}
	}), nil
}

func (r *Redis) DrawWord(ctx context.Context, excluding []string) (words.Entry, error) {
	list, err := r.loadWords(ctx)
	if err != nil {
		return words.Entry{}, err
	}
	e, ok := words.Pick(list, excluding)
	if !ok {
		return words.Entry{}, ErrNoWords
	}
	return e, nil
}

func (r *Redis) WordAt(ctx context.Context, i int) (words.Entry, error) {
	list, err := r.loadWords(ctx)
	if err != nil {
		return words.Entry{}, err
	}
	if i < 0 || i >= len(list) {
		return words.Entry{}, ErrNotFound
	}
	return list[i], nil
}

func (r *Redis) ReplaceWords(ctx context.Context, entries []words.Entry) error {
	pairs := lo.Map(sortedEntries(entries), func(e words.Entry, _ int) [2]string {
		return [2]string{e.Word, e.Hint}
	})
	data, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, wordsKey, data, 0).Err()
}

func (r *Redis) WordCount(ctx context.Context) (int, error) {
	list, err := r.loadWords(ctx)
	return len(list), err
}

// ---------------------------- sessions -------------------------------------

func (r *Redis) getJSON(ctx context.Context, key string, out any) error {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Redis) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) LoadSession(ctx context.Context, id string) (game.State, error) {
	var st game.State
	err := r.getJSON(ctx, gameKey(id), &st)
	return st, err
}

func (r *Redis) SaveSession(ctx context.Context, st game.State, ttl time.Duration) error {
	return r.setJSON(ctx, gameKey(st.ID), st, ttl)
}

func (r *Redis) DeleteSession(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, gameKey(id)).Err()
}

func (r *Redis) LoadSummary(ctx context.Context, gameID string) (game.Summary, error) {
	var sum game.Summary
	err := r.getJSON(ctx, summaryKey(gameID), &sum)
	return sum, err
}

func (r *Redis) SaveSummary(ctx context.Context, sum game.Summary, ttl time.Duration) error {
	return r.setJSON(ctx, summaryKey(sum.GameID), sum, ttl)
}

func (r *Redis) DeleteSummary(ctx context.Context, gameID string) error {
	return r.rdb.Del(ctx, summaryKey(gameID)).Err()
}

// --------------------------- leaderboard -----------------------------------

func (r *Redis) SubmitScore(ctx context.Context, name string, score float64, limit int) (Standing, error) {
	prev, err := r.rdb.ZScore(ctx, leaderboardKey, name).Result()
	switch {
	case err == nil && prev >= score:
		return Standing{Accepted: false, Existing: prev}, nil
	case err != nil && !errors.Is(err, redis.Nil):
		return Standing{}, err
	}

	var rank, card *redis.IntCmd
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddGT(ctx, leaderboardKey, redis.Z{Score: score, Member: name})
		rank = p.ZRevRank(ctx, leaderboardKey, name)
		card = p.ZCard(ctx, leaderboardKey)
		return nil
	})
	if err != nil {
		return Standing{}, err
	}
	top, err := r.TopScores(ctx, limit)
	if err != nil {
		return Standing{}, err
	}
	return Standing{
		Accepted: true,
		Rank:     int(rank.Val()) + 1,
		Total:    int(card.Val()),
		Top:      top,
	}, nil
}

func (r *Redis) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	if limit <= 0 {
		return []ScoreEntry{}, nil
	}
	zs, err := r.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return lo.Map(zs, func(z redis.Z, _ int) ScoreEntry {
		name, _ := z.Member.(string)
		return ScoreEntry{Name: name, Score: z.Score}
	}), nil
}

func (r *Redis) PlayerScore(ctx context.Context, name string) (float64, error) {
	s, err := r.rdb.ZScore(ctx, leaderboardKey, name).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	return s, err
}

func (r *Redis) WipeScores(ctx context.Context) error {
	return r.rdb.Del(ctx, leaderboardKey).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.rdb.Close() }
