package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/robalobadob/wordrush/internal/settings"
)

// clock advances by step on every read.
type clock struct {
	t    time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestProcessor(s settings.Settings) *Processor {
	c := &clock{t: time.Unix(1_700_000_000, 0), step: 200 * time.Millisecond}
	return &Processor{Settings: s, Now: c.Now}
}

func playing(s settings.Settings, word string) State {
	st := NewState(s, "test", word, "hint", time.Unix(1_700_000_000, 0))
	st, _ = BeginPlay(st)
	return st
}

func guessAll(t *testing.T, p *Processor, st State, keys ...string) (State, []Event) {
	t.Helper()
	var all []Event
	for _, k := range keys {
		var evs []Event
		var out Outcome
		st, evs, out = p.ProcessGuess(st, k)
		if !out.Accepted {
			t.Fatalf("guess %q rejected: %s", k, out.Reason)
		}
		all = append(all, evs...)
	}
	return st, all
}

func count(evs []Event, kind EventKind) int {
	n := 0
	for _, e := range evs {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestDebounceDropsRapidDuplicate(t *testing.T) {
	s := settings.Default()
	now := time.Unix(1_700_000_000, 0)
	p := &Processor{Settings: s, Now: func() time.Time { return now }}
	st := playing(s, "CAT")

	first, evs, out := p.ProcessGuess(st, "C")
	if !out.Accepted || len(evs) == 0 {
		t.Fatalf("first guess should apply: %+v", out)
	}
	now = now.Add(40 * time.Millisecond)
	second, evs, out := p.ProcessGuess(first, "A")
	if out.Accepted || out.Reason != RejectDebounced {
		t.Fatalf("second guess inside window should be debounced, got %+v", out)
	}
	if len(evs) != 0 || second.UsedKeys.Has("A") || second.Score != first.Score {
		t.Fatalf("debounced guess mutated state")
	}

	now = now.Add(100 * time.Millisecond)
	third, _, out := p.ProcessGuess(second, "A")
	if !out.Accepted || !third.CorrectKeys.Has("A") {
		t.Fatalf("guess after window should apply: %+v", out)
	}
}

func TestRejectedGuessLeavesStateUntouched(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "CAT")
	st, _ = guessAll(t, p, st, "C")

	for _, key := range []string{"C", "c", "1", "", "AB"} {
		next, evs, out := p.ProcessGuess(st, key)
		if out.Accepted {
			t.Errorf("key %q should be rejected", key)
		}
		if len(evs) != 0 || next.Score != st.Score || len(next.UsedKeys) != len(st.UsedKeys) {
			t.Errorf("key %q changed state", key)
		}
	}

	grace := NewState(s, "g", "CAT", "", time.Now())
	if _, _, out := p.ProcessGuess(grace, "C"); out.Reason != RejectNotPlaying {
		t.Errorf("guess during get-ready should be rejected, got %+v", out)
	}
}

func TestLowercaseGuessIsNormalized(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st, _, out := p.ProcessGuess(playing(s, "cat"), " a ")
	if !out.Accepted || !out.Correct || !st.CorrectKeys.Has("A") {
		t.Fatalf("lowercase guess not applied: %+v", out)
	}
}

func TestScoringForCat(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "CAT")
	if st.TimeMultiplier != 1.5 || st.WordComplexityMultiplier != 1.2 {
		t.Fatalf("unexpected multipliers tm=%v wcm=%v", st.TimeMultiplier, st.WordComplexityMultiplier)
	}

	st, _ = guessAll(t, p, st, "C")
	// 10 * 1.02 * 1.5 * 1.2 = 18.36
	if st.Score != 18 {
		t.Fatalf("score after C = %v, want 18", st.Score)
	}
	st, _ = guessAll(t, p, st, "A")
	// + 10 * 1.12 * 1.5 * 1.2 = 20.16
	if st.Score != 38 {
		t.Fatalf("score after A = %v, want 38", st.Score)
	}
	st, evs := guessAll(t, p, st, "T")
	// + 21.96 -> 22, then completion 50 * 1.22 * 1.5 * 1.2 = 109.8 -> 110
	if st.Score != 170 {
		t.Fatalf("score after T = %v, want 170", st.Score)
	}
	if count(evs, EventWordCompleted) != 1 {
		t.Fatalf("expected word_completed event")
	}
	if st.BaseMultiplier != s.InitialBaseMultiplier {
		t.Errorf("base multiplier not reset on completion: %v", st.BaseMultiplier)
	}
}

func TestWordCompletionAnyOrder(t *testing.T) {
	s := settings.Default()
	orders := [][]string{
		{"C", "A", "T"}, {"C", "T", "A"}, {"A", "C", "T"},
		{"A", "T", "C"}, {"T", "C", "A"}, {"T", "A", "C"},
	}
	for _, order := range orders {
		p := newTestProcessor(s)
		st := playing(s, "CAT")
		for i, k := range order {
			var evs []Event
			st, evs, _ = p.ProcessGuess(st, k)
			done := count(evs, EventWordCompleted)
			if i < 2 && done != 0 {
				t.Fatalf("%v: completed early after %d guesses", order, i+1)
			}
			if i == 2 && (done != 1 || st.Phase != PhaseWordCompleted) {
				t.Fatalf("%v: not completed after third guess", order)
			}
		}
	}
}

func TestNonLettersArePreRevealed(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "ice-cream")
	if !st.CorrectKeys.Has("-") || st.UsedKeys.Has("-") {
		t.Fatalf("hyphen should be revealed but not used: %v", st.CorrectKeys.Sorted())
	}
	if got := Mask(st); got != "___-_____" {
		t.Fatalf("Mask = %q", got)
	}
	st, evs := guessAll(t, p, st, "I", "C", "E", "R", "A", "M")
	if count(evs, EventWordCompleted) != 1 {
		t.Fatalf("ICE-CREAM should complete once all letters are found")
	}
	if Mask(st) != "ICE-CREAM" {
		t.Fatalf("Mask after completion = %q", Mask(st))
	}
}

func TestLivesRunOut(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "CAT")
	var all []Event
	for _, k := range []string{"B", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		var evs []Event
		st, evs, _ = p.ProcessGuess(st, k)
		all = append(all, evs...)
	}
	if st.Lives != 0 {
		t.Fatalf("lives = %d, want 0", st.Lives)
	}
	if count(all, EventGameOver) != 1 || count(all, EventLifeLost) != 10 {
		t.Fatalf("game_over=%d life_lost=%d", count(all, EventGameOver), count(all, EventLifeLost))
	}
	if st.Phase != PhaseGameOver {
		t.Fatalf("phase = %s", st.Phase)
	}
	after, evs, out := p.ProcessGuess(st, "M")
	if out.Accepted || len(evs) != 0 || after.Lives != 0 {
		t.Fatalf("guess after game over must be dropped")
	}
}

func TestBonusLifeEveryTenConsecutive(t *testing.T) {
	s := settings.Default()
	s.GodModeThreshold = 100
	p := newTestProcessor(s)
	st := playing(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	lives := st.Lives

	st, evs := guessAll(t, p, st, "A", "B", "C", "D", "E", "F", "G", "H", "I", "J")
	if count(evs, EventBonusLife) != 1 || st.Lives != lives+1 {
		t.Fatalf("ten correct should grant one life, lives=%d", st.Lives)
	}
	if st.ConsecutiveCorrectForExtraLife != 0 {
		t.Fatalf("counter not reset: %d", st.ConsecutiveCorrectForExtraLife)
	}
	st, evs = guessAll(t, p, st, "K")
	if count(evs, EventBonusLife) != 0 || st.Lives != lives+1 {
		t.Fatalf("eleventh correct guess must not grant a life")
	}
	st, evs = guessAll(t, p, st, "L", "M", "N", "O", "P", "Q", "R", "S", "T")
	if count(evs, EventBonusLife) != 1 || st.Lives != lives+2 {
		t.Fatalf("twentieth correct guess should grant the second life, lives=%d", st.Lives)
	}
}

func TestIncorrectGuessResetsStreak(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "ABCDEFGHIJKLMNOPQRSTUVW")
	st, _ = guessAll(t, p, st, "A", "B", "C", "D", "E", "F", "G", "H", "I", "Z")
	if st.ConsecutiveCorrectForExtraLife != 0 || st.ConsecutiveCorrectGuesses != 0 {
		t.Fatalf("streak counters not reset")
	}
	if st.TotalCorrectGuesses != 9 {
		t.Fatalf("total correct must survive an incorrect guess, got %d", st.TotalCorrectGuesses)
	}
	st, evs := guessAll(t, p, st, "J")
	if count(evs, EventBonusLife) != 0 {
		t.Fatalf("bonus life granted across an incorrect guess")
	}
}

func TestGodModeLifecycle(t *testing.T) {
	s := settings.Default()
	s.GodModeThreshold = 3
	p := newTestProcessor(s)
	st := playing(s, "ABCDEFGHIJ")

	if _, _, out := p.ProcessGuess(st, GodModeKey); out.Reason != RejectNotReady {
		t.Fatalf("activation before ready should be rejected, got %+v", out)
	}

	st, evs := guessAll(t, p, st, "A", "B", "C")
	if !st.GodModeReady || count(evs, EventGodModeReady) != 1 {
		t.Fatalf("threshold reached but not ready")
	}

	st, evs = guessAll(t, p, st, "godmode")
	if !st.IsGodMode || st.GodModePressesLeft != s.GodModePresses || st.GodModeReady || st.TotalCorrectGuesses != 0 {
		t.Fatalf("activation state wrong: %+v", st)
	}
	if count(evs, EventGodModeEntered) != 1 {
		t.Fatalf("missing god_mode_entered")
	}

	lives := st.Lives
	st, evs = guessAll(t, p, st, "X", "D")
	if !st.IsGodMode || st.GodModePressesLeft != 1 {
		t.Fatalf("after two presses: god=%v left=%d", st.IsGodMode, st.GodModePressesLeft)
	}
	if st.Lives != lives || count(evs, EventLifeLost) != 0 {
		t.Fatalf("incorrect guess in god mode cost a life")
	}
	st, evs = guessAll(t, p, st, "Y")
	if st.IsGodMode || st.GodModePressesLeft != 0 || st.GodModeReady || st.TotalCorrectGuesses != 0 {
		t.Fatalf("god mode not exited after budget: %+v", st)
	}
	if count(evs, EventGodModeExited) != 1 || st.Lives != lives {
		t.Fatalf("exit event missing or life lost")
	}

	st, evs = guessAll(t, p, st, "Z")
	if st.Lives != lives-1 || count(evs, EventLifeLost) != 1 {
		t.Fatalf("incorrect guess after god mode should cost a life")
	}
}

func TestWordCompletionExitsGodMode(t *testing.T) {
	s := settings.Default()
	s.GodModeThreshold = 2
	p := newTestProcessor(s)
	st := playing(s, "ABC")
	st, _ = guessAll(t, p, st, "A", "B", GodModeKey)
	st, evs := guessAll(t, p, st, "C")
	if st.IsGodMode || count(evs, EventGodModeExited) != 1 || count(evs, EventWordCompleted) != 1 {
		t.Fatalf("completion should exit god mode: god=%v events=%v", st.IsGodMode, evs)
	}
}

func TestBaseMultiplierStaysInBounds(t *testing.T) {
	s := settings.Default()
	rng := rand.New(rand.NewSource(7))
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	words := []string{"QUIZ", "JAZZY", "MOUNTAIN", "RHYTHM", "ABCDEFGHIJKLMNOPQRSTUVWXYZ"}
	for round := 0; round < 200; round++ {
		p := newTestProcessor(s)
		st := playing(s, words[rng.Intn(len(words))])
		st.Lives = 1000
		for i := 0; i < 40 && st.Phase == PhasePlaying; i++ {
			k := string(letters[rng.Intn(len(letters))])
			st, _, _ = p.ProcessGuess(st, k)
			if st.BaseMultiplier < s.MinBaseMultiplier || st.BaseMultiplier > s.MaxBaseMultiplier {
				t.Fatalf("base multiplier %v out of bounds", st.BaseMultiplier)
			}
		}
	}
}

func TestCorrectKeysSubsetOfUsed(t *testing.T) {
	s := settings.Default()
	p := newTestProcessor(s)
	st := playing(s, "HELLO WORLD")
	st, _ = guessAll(t, p, st, "L", "Q", "O", "Z", "H")
	for k := range st.CorrectKeys {
		if !st.UsedKeys.Has(k) && isLetter(k) {
			t.Errorf("correct key %q not in used keys", k)
		}
	}
}
