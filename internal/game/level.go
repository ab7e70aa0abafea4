// internal/game/level.go
//
// Level and session transitions that are driven by the controller rather
// than by key presses: session start, get-ready -> playing, per-second ticks,
// advancing to the next word, and ending the session.
//
// All functions are pure: they take a State by value and return the next one.
package game

import (
	"strings"
	"time"

	"github.com/robalobadob/wordrush/internal/settings"
)

// NewState initializes a session for its first word. The session starts in
// the get-ready phase.
func NewState(s settings.Settings, id, word, hint string, now time.Time) State {
	st := State{
		ID:            id,
		Phase:         PhaseGetReady,
		Lives:         s.InitialLives,
		Level:         s.InitialLevel,
		LevelDuration: s.InitialLevelDuration,
		StartedAt:     now.UnixMilli(),
	}
	st.loadWord(s, word, hint)
	return st
}

// loadWord installs the next word and resets the per-word fields.
func (st *State) loadWord(s settings.Settings, word, hint string) {
	word = strings.ToUpper(strings.TrimSpace(word))
	st.CurrentWord = word
	st.CurrentHint = hint
	st.UsedKeys = NewKeySet()
	st.CorrectKeys = NewKeySet()
	for _, r := range word {
		if !isLetterRune(r) {
			st.CorrectKeys.Add(string(r))
		}
	}
	st.UsedWords = append(st.UsedWords, word)
	st.BaseMultiplier = s.InitialBaseMultiplier
	st.WordComplexityMultiplier = s.WordComplexityMultiplier(word)
	st.TimeRemaining = st.LevelDuration
	st.TimeMultiplier = s.TimeMultiplier(st.TimeRemaining, st.LevelDuration)
	st.ConsecutiveCorrectGuesses = 0
	st.LastGuessAt = 0
}

// BeginPlay ends the get-ready grace period.
func BeginPlay(st State) (State, []Event) {
	if st.Phase != PhaseGetReady {
		return st, nil
	}
	next := st.Clone()
	next.Phase = PhasePlaying
	return next, []Event{next.event(EventPlayStarted, "")}
}

// Tick consumes one second of the level timer. Ticks outside the playing
// phase are ignored.
func Tick(s settings.Settings, st State) (State, []Event) {
	if st.Phase != PhasePlaying || st.TimeRemaining <= 0 {
		return st, nil
	}
	next := st.Clone()
	next.TimeRemaining--
	next.ElapsedSeconds++
	next.TimeMultiplier = s.TimeMultiplier(next.TimeRemaining, next.LevelDuration)
	ev := next.event(EventTick, "")
	ev.Value = next.TimeRemaining
	events := []Event{ev}
	if next.TimeRemaining == 0 {
		var over []Event
		next, over = EndGame(next, "time")
		events = append(events, over...)
	}
	return next, events
}

// AdvanceLevel moves a completed word on to the next one. It is a no-op
// unless the state is in the word-completed phase, so re-entry cannot
// double-grant the free life.
func AdvanceLevel(s settings.Settings, st State, word, hint string) (State, []Event) {
	if st.Phase != PhaseWordCompleted {
		return st, nil
	}
	next := st.Clone()
	next.Level++
	var events []Event
	if next.Level%s.FreeLifeInterval == 0 && next.FreeLifeLevel != next.Level {
		next.Lives++
		next.FreeLifeLevel = next.Level
		ev := next.event(EventBonusLife, "")
		ev.Detail = "level"
		events = append(events, ev)
	}
	next.LevelDuration = s.NextLevelDuration(next.LevelDuration)
	next.loadWord(s, word, hint)
	next.Phase = PhaseGetReady
	ev := next.event(EventLevelAdvanced, "")
	ev.Value = next.LevelDuration
	events = append(events, ev)
	return next, events
}

// EndGame moves the session to game over. God Mode and its ready flag are
// cleared. Calling it on a finished session is a no-op.
func EndGame(st State, reason string) (State, []Event) {
	if st.Phase == PhaseGameOver {
		return st, nil
	}
	next := st.Clone()
	next.Phase = PhaseGameOver
	next.IsGodMode = false
	next.GodModePressesLeft = 0
	next.GodModeReady = false
	ev := next.event(EventGameOver, "")
	ev.Detail = reason
	return next, []Event{ev}
}

// Summarize builds the score record for a session.
func Summarize(st State) Summary {
	return Summary{
		GameID:              st.ID,
		Score:               st.Score,
		WordsCompleted:      st.WordsCompleted(),
		TotalCorrectGuesses: st.LifetimeCorrect,
		TimeTaken:           st.ElapsedSeconds,
	}
}

// Mask renders the current word with unrevealed letters as '_'.
func Mask(st State) string {
	var b strings.Builder
	for _, r := range st.CurrentWord {
		if st.CorrectKeys.Has(string(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
