// internal/game/types.go
//
// Core type definitions for the word-guessing engine.
// Defines:
//   - Phase: coarse session phase (get_ready/playing/word_completed/game_over).
//   - KeySet: set of revealed/used characters, serialized as a sorted array.
//   - State: the single value holding everything about one session.
//   - Event/EventKind: derived notifications emitted by transitions.
//   - Outcome/RejectReason: why a guess was or was not applied.
//   - Summary: validated end-of-session score record.

package game

import (
	"encoding/json"
	"slices"

	"github.com/samber/lo"
)

// Phase is the session-level state machine position.
type Phase string

const (
	PhaseGetReady      Phase = "get_ready"
	PhasePlaying       Phase = "playing"
	PhaseWordCompleted Phase = "word_completed"
	PhaseGameOver      Phase = "game_over"
)

// KeySet is an unordered set of single-character strings.
type KeySet map[string]struct{}

// NewKeySet builds a set from the given keys.
func NewKeySet(keys ...string) KeySet {
	ks := make(KeySet, len(keys))
	for _, k := range keys {
		ks[k] = struct{}{}
	}
	return ks
}

// Has reports whether k is in the set.
func (ks KeySet) Has(k string) bool {
	_, ok := ks[k]
	return ok
}

// Add inserts k.
func (ks KeySet) Add(k string) { ks[k] = struct{}{} }

// Sorted returns the members in lexical order.
func (ks KeySet) Sorted() []string {
	keys := lo.Keys(map[string]struct{}(ks))
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy.
func (ks KeySet) Clone() KeySet {
	out := make(KeySet, len(ks))
	for k := range ks {
		out[k] = struct{}{}
	}
	return out
}

// MarshalJSON writes the set as a sorted array so encodings are stable.
func (ks KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ks.Sorted())
}

// UnmarshalJSON accepts an array of strings; null yields an empty set.
func (ks *KeySet) UnmarshalJSON(b []byte) error {
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	*ks = NewKeySet(keys...)
	return nil
}

// State is one session's complete game state.
// It is mutated only through the transition functions in this package.
type State struct {
	ID    string `json:"id"`
	Phase Phase  `json:"phase"`

	CurrentWord string `json:"currentWord"` // uppercase
	CurrentHint string `json:"currentHint"`
	UsedKeys    KeySet `json:"usedKeys"`
	CorrectKeys KeySet `json:"correctKeys"` // includes pre-revealed non-letters

	Lives int     `json:"lives"`
	Score float64 `json:"score"`

	BaseMultiplier           float64 `json:"baseMultiplier"`
	TimeMultiplier           float64 `json:"timeMultiplier"`
	WordComplexityMultiplier float64 `json:"wordComplexityMultiplier"`

	Level         int `json:"level"`
	LevelDuration int `json:"levelDuration"` // seconds
	TimeRemaining int `json:"timeRemaining"` // seconds

	IsGodMode          bool `json:"isGodMode"`
	GodModePressesLeft int  `json:"godModePressesLeft"`
	GodModeReady       bool `json:"godModeReady"`

	TotalCorrectGuesses            int `json:"totalCorrectGuesses"`
	ConsecutiveCorrectGuesses      int `json:"consecutiveCorrectGuesses"`
	ConsecutiveCorrectForExtraLife int `json:"consecutiveCorrectForExtraLife"`

	UsedWords     []string `json:"usedWords"`
	FreeLifeLevel int      `json:"freeLifeLevel"` // last level already granted its free life

	LifetimeCorrect int `json:"lifetimeCorrect"`
	ElapsedSeconds  int `json:"elapsedSeconds"`

	LastGuessAt int64 `json:"lastGuessAt"` // unix ms of last accepted guess
	StartedAt   int64 `json:"startedAt"`   // unix ms
}

// Clone returns a deep copy so transitions never alias the caller's sets.
func (s State) Clone() State {
	out := s
	out.UsedKeys = s.UsedKeys.Clone()
	out.CorrectKeys = s.CorrectKeys.Clone()
	out.UsedWords = slices.Clone(s.UsedWords)
	return out
}

// WordsCompleted is the number of finished words (level - 1).
func (s State) WordsCompleted() int {
	if s.Level < 1 {
		return 0
	}
	return s.Level - 1
}

// Over reports whether the session reached a terminal condition.
func (s State) Over() bool {
	return s.Phase == PhaseGameOver || s.Lives <= 0
}

// EventKind names a derived notification.
type EventKind string

const (
	EventCorrectGuess   EventKind = "correct_guess"
	EventIncorrectGuess EventKind = "incorrect_guess"
	EventLifeLost       EventKind = "life_lost"
	EventBonusLife      EventKind = "bonus_life"
	EventGodModeReady   EventKind = "god_mode_ready"
	EventGodModeEntered EventKind = "god_mode_entered"
	EventGodModeExited  EventKind = "god_mode_exited"
	EventWordCompleted  EventKind = "word_completed"
	EventLevelAdvanced  EventKind = "level_advanced"
	EventCountdown      EventKind = "countdown"
	EventPlayStarted    EventKind = "play_started"
	EventTick           EventKind = "tick"
	EventWordsExhausted EventKind = "words_exhausted"
	EventGameOver       EventKind = "game_over"
)

// Event is emitted alongside a state transition.
type Event struct {
	Kind   EventKind `json:"kind"`
	Level  int       `json:"level"`
	Lives  int       `json:"lives"`
	Score  float64   `json:"score"`
	Letter string    `json:"letter,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Value  int       `json:"value,omitempty"`
}

// RejectReason explains a dropped input.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectNotPlaying  RejectReason = "not_playing"
	RejectNoLives     RejectReason = "no_lives"
	RejectTimeUp      RejectReason = "time_up"
	RejectInvalidKey  RejectReason = "invalid_key"
	RejectDebounced   RejectReason = "debounced"
	RejectAlreadyUsed RejectReason = "already_used"
	RejectNotReady    RejectReason = "god_mode_not_ready"
)

// Outcome reports whether an input was applied.
type Outcome struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Correct  bool         `json:"correct,omitempty"`
}

// Summary is the end-of-session score record handed to persistence.
type Summary struct {
	GameID              string  `json:"gameId"`
	Score               float64 `json:"score"`
	WordsCompleted      int     `json:"wordsCompleted"`
	TotalCorrectGuesses int     `json:"totalCorrectGuesses"`
	TimeTaken           int     `json:"timeTaken"` // seconds
}
