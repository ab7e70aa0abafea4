package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/settings"
	"github.com/robalobadob/wordrush/internal/words"
)

// fakeClock is shared by the memory and sqlite backends in tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// testGateway runs the behaviour every backend must share. advance moves
// the backend's notion of time forward.
func testGateway(t *testing.T, gw Gateway, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("words", func(t *testing.T) {
		if _, err := gw.DrawWord(ctx, nil); !errors.Is(err, ErrNoWords) {
			t.Fatalf("empty pool: %v", err)
		}
		seeded, err := Seed(ctx, gw, []words.Entry{{Word: "dog", Hint: "barks"}, {Word: "CAT", Hint: "meows"}, {Word: "EMU", Hint: "runs"}, {Word: "cat", Hint: "dup"}})
		if err != nil || !seeded {
			t.Fatalf("Seed = %v, %v", seeded, err)
		}
		if again, _ := Seed(ctx, gw, []words.Entry{{Word: "OWL", Hint: ""}}); again {
			t.Fatal("Seed must not overwrite a populated pool")
		}
		n, err := gw.WordCount(ctx)
		if err != nil || n != 3 {
			t.Fatalf("WordCount = %d, %v", n, err)
		}
		first, err := gw.WordAt(ctx, 0)
		if err != nil || first.Word != "CAT" || first.Hint != "meows" {
			t.Fatalf("WordAt(0) = %+v, %v", first, err)
		}
		if _, err := gw.WordAt(ctx, 3); !errors.Is(err, ErrNotFound) {
			t.Fatalf("WordAt(3): %v", err)
		}
		for i := 0; i < 20; i++ {
			e, err := gw.DrawWord(ctx, []string{"cat", "DOG"})
			if err != nil || e.Word != "EMU" || e.Hint != "runs" {
				t.Fatalf("DrawWord = %+v, %v", e, err)
			}
		}
		if _, err := gw.DrawWord(ctx, []string{"CAT", "DOG", "EMU"}); !errors.Is(err, ErrNoWords) {
			t.Fatalf("exhausted pool: %v", err)
		}
		if err := gw.ReplaceWords(ctx, []words.Entry{{Word: "OWL", Hint: "hoots"}}); err != nil {
			t.Fatal(err)
		}
		if n, _ := gw.WordCount(ctx); n != 1 {
			t.Fatalf("ReplaceWords left %d words", n)
		}
	})

	t.Run("sessions", func(t *testing.T) {
		s := settings.Default()
		p := &game.Processor{Settings: s, Now: func() time.Time { return time.Unix(1_700_000_000, 0) }}
		st := game.NewState(s, "sess-1", "HOT-DOG", "snack", time.Unix(1_700_000_000, 0))
		st, _ = game.BeginPlay(st)
		st, _, _ = p.ProcessGuess(st, "O")
		st, _ = game.Tick(s, st)

		if _, err := gw.LoadSession(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing session: %v", err)
		}
		if err := gw.SaveSession(ctx, st, time.Hour); err != nil {
			t.Fatal(err)
		}
		back, err := gw.LoadSession(ctx, "sess-1")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(back, st) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, st)
		}

		advance(2 * time.Hour)
		if _, err := gw.LoadSession(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expired session still readable: %v", err)
		}

		if err := gw.SaveSession(ctx, st, time.Hour); err != nil {
			t.Fatal(err)
		}
		if err := gw.DeleteSession(ctx, "sess-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := gw.LoadSession(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("deleted session still readable: %v", err)
		}
	})

	t.Run("summaries", func(t *testing.T) {
		sum := game.Summary{GameID: "g1", Score: 420, WordsCompleted: 2, TotalCorrectGuesses: 9, TimeTaken: 77}
		if err := gw.SaveSummary(ctx, sum, time.Hour); err != nil {
			t.Fatal(err)
		}
		got, err := gw.LoadSummary(ctx, "g1")
		if err != nil || got != sum {
			t.Fatalf("LoadSummary = %+v, %v", got, err)
		}
		advance(61 * time.Minute)
		if _, err := gw.LoadSummary(ctx, "g1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("summary should expire: %v", err)
		}
		if err := gw.SaveSummary(ctx, sum, time.Hour); err != nil {
			t.Fatal(err)
		}
		if err := gw.DeleteSummary(ctx, "g1"); err != nil {
			t.Fatal(err)
		}
		if _, err := gw.LoadSummary(ctx, "g1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("deleted summary still readable: %v", err)
		}
	})

	t.Run("leaderboard", func(t *testing.T) {
		if err := gw.WipeScores(ctx); err != nil {
			t.Fatal(err)
		}
		for _, e := range []ScoreEntry{{"ANN", 300}, {"BOB", 500}, {"CAL", 300}} {
			st, err := gw.SubmitScore(ctx, e.Name, e.Score, 5)
			if err != nil || !st.Accepted {
				t.Fatalf("SubmitScore(%v) = %+v, %v", e, st, err)
			}
		}
		st, err := gw.SubmitScore(ctx, "DEE", 400, 2)
		if err != nil || !st.Accepted || st.Rank != 2 || st.Total != 4 {
			t.Fatalf("DEE standing = %+v, %v", st, err)
		}
		wantTop := []ScoreEntry{{"BOB", 500}, {"DEE", 400}}
		if !reflect.DeepEqual(st.Top, wantTop) {
			t.Fatalf("top = %+v", st.Top)
		}

		// Lower or equal scores are refused and reported.
		st, err = gw.SubmitScore(ctx, "BOB", 500, 5)
		if err != nil || st.Accepted || st.Existing != 500 {
			t.Fatalf("equal score should be refused: %+v, %v", st, err)
		}
		st, err = gw.SubmitScore(ctx, "BOB", 100, 5)
		if err != nil || st.Accepted || st.Existing != 500 {
			t.Fatalf("lower score should be refused: %+v, %v", st, err)
		}

		st, err = gw.SubmitScore(ctx, "ANN", 900, 5)
		if err != nil || !st.Accepted || st.Rank != 1 || st.Total != 4 {
			t.Fatalf("improved score standing = %+v, %v", st, err)
		}

		top, err := gw.TopScores(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		want := []ScoreEntry{{"ANN", 900}, {"BOB", 500}, {"DEE", 400}, {"CAL", 300}}
		if !reflect.DeepEqual(top, want) {
			t.Fatalf("TopScores = %+v", top)
		}

		if s, err := gw.PlayerScore(ctx, "CAL"); err != nil || s != 300 {
			t.Fatalf("PlayerScore = %v, %v", s, err)
		}
		if _, err := gw.PlayerScore(ctx, "ZED"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("unknown player: %v", err)
		}

		if err := gw.WipeScores(ctx); err != nil {
			t.Fatal(err)
		}
		if top, _ := gw.TopScores(ctx, 5); len(top) != 0 {
			t.Fatalf("wipe left %d rows", len(top))
		}
	})

	t.Run("ties order by name descending", func(t *testing.T) {
		_ = gw.WipeScores(ctx)
		for _, n := range []string{"AMY", "ZOE", "MAX"} {
			if _, err := gw.SubmitScore(ctx, n, 250, 5); err != nil {
				t.Fatal(err)
			}
		}
		top, _ := gw.TopScores(ctx, 5)
		want := []ScoreEntry{{"ZOE", 250}, {"MAX", 250}, {"AMY", 250}}
		if !reflect.DeepEqual(top, want) {
			t.Fatalf("tie order = %+v", top)
		}
	})
}

func testArchiver(t *testing.T, a Archiver) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		sum := game.Summary{GameID: id, Score: float64(100 * (i + 1)), WordsCompleted: i}
		if err := a.ArchiveGame(ctx, sum, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := a.RecentGames(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].GameID != "c" || got[1].GameID != "b" {
		t.Fatalf("RecentGames = %+v", got)
	}
	if !got[0].FinishedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("FinishedAt = %v", got[0].FinishedAt)
	}
}
