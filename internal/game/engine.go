// internal/game/engine.go
//
// Guess processing for a single session.
// Responsibilities:
//   - Validate a key press against the session guards (phase, lives, time,
//     debounce window, already-used letters).
//   - Apply scoring, multiplier, bonus-life and God Mode bookkeeping.
//   - Detect word completion and game over, emitting events for both.
//
// Notes:
//   - ProcessGuess never fails: a rejected input returns the state unchanged
//     with Outcome.Accepted == false.
//   - Score is rounded after every increment (round-half-up), matching the
//     reference scoring tables.
package game

import (
	"math"
	"strings"
	"time"

	"github.com/robalobadob/wordrush/internal/settings"
)

// GodModeKey is the sentinel input that activates God Mode.
const GodModeKey = "GODMODE"

// Processor applies guesses using a fixed settings table.
type Processor struct {
	Settings settings.Settings
	// Now is the clock used for the debounce window; nil means time.Now.
	Now func() time.Time
}

// NewProcessor returns a Processor using the wall clock.
func NewProcessor(s settings.Settings) *Processor {
	return &Processor{Settings: s, Now: time.Now}
}

func (p *Processor) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ProcessGuess applies one key press and returns the next state plus the
// events it produced.
func (p *Processor) ProcessGuess(st State, key string) (State, []Event, Outcome) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == GodModeKey {
		return p.ActivateGodMode(st)
	}
	if reason := guard(st); reason != RejectNone {
		return st, nil, Outcome{Reason: reason}
	}
	if !isLetter(key) {
		return st, nil, Outcome{Reason: RejectInvalidKey}
	}
	nowMs := p.now().UnixMilli()
	if st.LastGuessAt != 0 && nowMs-st.LastGuessAt < p.Settings.MinGuessInterval.Milliseconds() {
		return st, nil, Outcome{Reason: RejectDebounced}
	}
	if st.UsedKeys.Has(key) || st.CorrectKeys.Has(key) {
		return st, nil, Outcome{Reason: RejectAlreadyUsed}
	}

	s := p.Settings
	next := st.Clone()
	next.LastGuessAt = nowMs
	next.UsedKeys.Add(key)

	// Multipliers in effect for this guess, before the base update below.
	base, tm, wcm := st.BaseMultiplier, st.TimeMultiplier, st.WordComplexityMultiplier
	correct := strings.Contains(next.CurrentWord, key)
	var events []Event

	if correct {
		next.CorrectKeys.Add(key)
		next.ConsecutiveCorrectGuesses++
		next.TotalCorrectGuesses++
		next.LifetimeCorrect++
		letterScore := roundHalfUp(s.BaseLetterScore * base * tm * wcm)
		next.Score = roundHalfUp(next.Score + letterScore)
		events = append(events, next.event(EventCorrectGuess, key))

		next.ConsecutiveCorrectForExtraLife++
		if next.ConsecutiveCorrectForExtraLife >= s.BonusLifeCorrectGuesses {
			next.Lives++
			next.ConsecutiveCorrectForExtraLife = 0
			events = append(events, next.event(EventBonusLife, key))
		}
		if !next.IsGodMode && !next.GodModeReady && next.TotalCorrectGuesses >= s.GodModeThreshold {
			next.GodModeReady = true
			events = append(events, next.event(EventGodModeReady, ""))
		}
		next.BaseMultiplier = math.Min(s.MaxBaseMultiplier, base+s.BaseMultiplierIncrement)
	} else {
		next.ConsecutiveCorrectGuesses = 0
		next.ConsecutiveCorrectForExtraLife = 0
		events = append(events, next.event(EventIncorrectGuess, key))
		if !next.IsGodMode {
			next.Lives = max(0, next.Lives-1)
			events = append(events, next.event(EventLifeLost, key))
		}
		next.BaseMultiplier = math.Max(s.MinBaseMultiplier, base-s.BaseMultiplierDecrement)
	}

	if wordComplete(next.CurrentWord, next.CorrectKeys) {
		bonus := roundHalfUp(s.WordCompletionBaseScore * base * tm * wcm)
		next.Score = roundHalfUp(next.Score + bonus)
		next.BaseMultiplier = s.InitialBaseMultiplier
		next.Phase = PhaseWordCompleted
		ev := next.event(EventWordCompleted, "")
		ev.Detail = next.CurrentWord
		ev.Value = int(bonus)
		events = append(events, ev)
		if next.IsGodMode {
			next.exitGodMode(false)
			events = append(events, next.event(EventGodModeExited, ""))
		}
	} else if next.IsGodMode {
		next.GodModePressesLeft = max(0, next.GodModePressesLeft-1)
		if next.GodModePressesLeft == 0 {
			next.exitGodMode(true)
			events = append(events, next.event(EventGodModeExited, ""))
		}
	}

	if next.Lives == 0 && next.Phase == PhasePlaying {
		next.Phase = PhaseGameOver
		ev := next.event(EventGameOver, "")
		ev.Detail = "lives"
		events = append(events, ev)
	}
	return next, events, Outcome{Accepted: true, Correct: correct}
}

// ActivateGodMode consumes godModeReady and starts the press budget.
// Activation is not subject to the debounce window.
func (p *Processor) ActivateGodMode(st State) (State, []Event, Outcome) {
	if reason := guard(st); reason != RejectNone {
		return st, nil, Outcome{Reason: reason}
	}
	if !st.GodModeReady || st.IsGodMode {
		return st, nil, Outcome{Reason: RejectNotReady}
	}
	next := st.Clone()
	next.IsGodMode = true
	next.GodModePressesLeft = p.Settings.GodModePresses
	next.GodModeReady = false
	next.TotalCorrectGuesses = 0
	ev := next.event(EventGodModeEntered, "")
	ev.Value = next.GodModePressesLeft
	return next, []Event{ev}, Outcome{Accepted: true}
}

// guard returns the reason a session cannot take input right now.
func guard(st State) RejectReason {
	switch {
	case st.Phase != PhasePlaying:
		return RejectNotPlaying
	case st.Lives <= 0:
		return RejectNoLives
	case st.TimeRemaining <= 0:
		return RejectTimeUp
	}
	return RejectNone
}

// exitGodMode leaves God Mode; exhausted budgets also reset the ready counters.
func (s *State) exitGodMode(exhausted bool) {
	s.IsGodMode = false
	s.GodModePressesLeft = 0
	if exhausted {
		s.TotalCorrectGuesses = 0
		s.GodModeReady = false
	}
}

func (s *State) event(kind EventKind, letter string) Event {
	return Event{Kind: kind, Level: s.Level, Lives: s.Lives, Score: s.Score, Letter: letter}
}

// wordComplete reports whether every A-Z letter of word is in correct.
func wordComplete(word string, correct KeySet) bool {
	for _, r := range word {
		if !isLetterRune(r) {
			continue
		}
		if !correct.Has(string(r)) {
			return false
		}
	}
	return true
}

// roundHalfUp rounds to the nearest integer, ties toward +Inf.
func roundHalfUp(x float64) float64 { return math.Floor(x + 0.5) }

func isLetter(k string) bool {
	return len(k) == 1 && isLetterRune(rune(k[0]))
}

func isLetterRune(r rune) bool { return r >= 'A' && r <= 'Z' }
