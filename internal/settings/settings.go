// internal/settings/settings.go
//
// Tuning table for the word-guessing game.
// Responsibilities:
//   - Hold every scoring/timing constant in one immutable value (Settings).
//   - Derive the time and word-complexity multipliers from state.
//   - Load optional YAML overrides (SETTINGS_FILE) and validate the result.
//
// Settings is passed by value; nothing in the engine mutates it.

package settings

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the read-only tuning table consulted by the engine.
type Settings struct {
	InitialLives           int `yaml:"initialLives"`
	InitialLevel           int `yaml:"initialLevel"`
	InitialLevelDuration   int `yaml:"initialLevelDuration"` // seconds
	MinLevelDuration       int `yaml:"minLevelDuration"`
	LevelDurationDecrement int `yaml:"levelDurationDecrement"`

	InitialBaseMultiplier   float64 `yaml:"initialBaseMultiplier"`
	MinBaseMultiplier       float64 `yaml:"minBaseMultiplier"`
	MaxBaseMultiplier       float64 `yaml:"maxBaseMultiplier"`
	BaseMultiplierIncrement float64 `yaml:"baseMultiplierIncrement"`
	BaseMultiplierDecrement float64 `yaml:"baseMultiplierDecrement"`

	MinWordComplexityMultiplier float64 `yaml:"minWordComplexityMultiplier"`
	MaxWordComplexityMultiplier float64 `yaml:"maxWordComplexityMultiplier"`
	LengthWeight                float64 `yaml:"lengthWeight"`
	UniqueLetterWeight          float64 `yaml:"uniqueLetterWeight"`

	// Time bonus applies while timeRemaining > levelDuration - TimeBonusWindow.
	TimeBonusWindow  int     `yaml:"timeBonusWindow"`
	TimeBonusDivisor float64 `yaml:"timeBonusDivisor"`

	BaseLetterScore         float64 `yaml:"baseLetterScore"`
	WordCompletionBaseScore float64 `yaml:"wordCompletionBaseScore"`

	GodModeThreshold        int `yaml:"godModeThreshold"`
	GodModePresses          int `yaml:"godModePresses"`
	FreeLifeInterval        int `yaml:"freeLifeInterval"`
	BonusLifeCorrectGuesses int `yaml:"bonusLifeCorrectGuesses"`

	WordCompletionDelay time.Duration `yaml:"wordCompletionDelay"`
	GetReadyDuration    time.Duration `yaml:"getReadyDuration"`
	CountdownBeeps      int           `yaml:"countdownBeeps"`
	MinGuessInterval    time.Duration `yaml:"minGuessInterval"`
	TickInterval        time.Duration `yaml:"tickInterval"`

	// Upper bound for a reported score: max(ScoreCapFloor, words*ScoreCapPerWord).
	ScoreCapFloor   float64 `yaml:"scoreCapFloor"`
	ScoreCapPerWord float64 `yaml:"scoreCapPerWord"`
}

// Default returns the reference tuning.
func Default() Settings {
	return Settings{
		InitialLives:           10,
		InitialLevel:           1,
		InitialLevelDuration:   120,
		MinLevelDuration:       60,
		LevelDurationDecrement: 5,

		InitialBaseMultiplier:   1.02,
		MinBaseMultiplier:       1.02,
		MaxBaseMultiplier:       1.75,
		BaseMultiplierIncrement: 0.1,
		BaseMultiplierDecrement: 0.05,

		MinWordComplexityMultiplier: 1.2,
		MaxWordComplexityMultiplier: 1.9,
		LengthWeight:                0.03,
		UniqueLetterWeight:          0.02,

		TimeBonusWindow:  60,
		TimeBonusDivisor: 120,

		BaseLetterScore:         10,
		WordCompletionBaseScore: 50,

		GodModeThreshold:        25,
		GodModePresses:          3,
		FreeLifeInterval:        5,
		BonusLifeCorrectGuesses: 10,

		WordCompletionDelay: 1500 * time.Millisecond,
		GetReadyDuration:    6 * time.Second,
		CountdownBeeps:      5,
		MinGuessInterval:    100 * time.Millisecond,
		TickInterval:        time.Second,

		ScoreCapFloor:   1000,
		ScoreCapPerWord: 1000,
	}
}

// Load returns Default() overlaid with the YAML document at path.
// An empty path yields the defaults unchanged.
func Load(path string) (Settings, error) {
	s := Default()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that bounds are ordered and intervals usable.
func (s Settings) Validate() error {
	var errs []error
	if s.InitialLives < 1 {
		errs = append(errs, errors.New("initialLives must be >= 1"))
	}
	if s.InitialLevel < 1 {
		errs = append(errs, errors.New("initialLevel must be >= 1"))
	}
	if s.MinLevelDuration < 1 || s.InitialLevelDuration < s.MinLevelDuration {
		errs = append(errs, errors.New("level durations must satisfy 1 <= min <= initial"))
	}
	if s.LevelDurationDecrement < 0 {
		errs = append(errs, errors.New("levelDurationDecrement must be >= 0"))
	}
	if s.MinBaseMultiplier > s.MaxBaseMultiplier {
		errs = append(errs, errors.New("minBaseMultiplier exceeds maxBaseMultiplier"))
	}
	if s.InitialBaseMultiplier < s.MinBaseMultiplier || s.InitialBaseMultiplier > s.MaxBaseMultiplier {
		errs = append(errs, errors.New("initialBaseMultiplier outside base bounds"))
	}
	if s.MinWordComplexityMultiplier > s.MaxWordComplexityMultiplier {
		errs = append(errs, errors.New("minWordComplexityMultiplier exceeds maxWordComplexityMultiplier"))
	}
	if s.TimeBonusDivisor <= 0 {
		errs = append(errs, errors.New("timeBonusDivisor must be > 0"))
	}
	if s.GodModePresses < 1 || s.GodModeThreshold < 1 {
		errs = append(errs, errors.New("god mode presses and threshold must be >= 1"))
	}
	if s.FreeLifeInterval < 1 || s.BonusLifeCorrectGuesses < 1 {
		errs = append(errs, errors.New("freeLifeInterval and bonusLifeCorrectGuesses must be >= 1"))
	}
	if s.TickInterval <= 0 || s.MinGuessInterval < 0 || s.WordCompletionDelay < 0 || s.GetReadyDuration < 0 {
		errs = append(errs, errors.New("durations must be non-negative and tickInterval > 0"))
	}
	return errors.Join(errs...)
}

// TimeMultiplier rewards guesses made early in a level:
// 1 + (timeRemaining - (levelDuration - window)) / divisor while inside the
// window, 1 afterwards. Monotonically non-decreasing in timeRemaining.
func (s Settings) TimeMultiplier(timeRemaining, levelDuration int) float64 {
	threshold := levelDuration - s.TimeBonusWindow
	if timeRemaining > threshold {
		return 1 + float64(timeRemaining-threshold)/s.TimeBonusDivisor
	}
	return 1
}

// WordComplexityMultiplier scores a word by its length and the number of
// distinct characters in its upper-cased form, clamped to the configured
// bounds. Pure: depends only on word and s.
func (s Settings) WordComplexityMultiplier(word string) float64 {
	upper := []rune(strings.ToUpper(word))
	seen := make(map[rune]struct{}, len(upper))
	for _, r := range upper {
		seen[r] = struct{}{}
	}
	// Explicit conversions keep each product rounded on its own (no FMA),
	// so results match across architectures.
	raw := 1 + float64(float64(len(upper))*s.LengthWeight) + float64(float64(len(seen))*s.UniqueLetterWeight)
	return math.Min(s.MaxWordComplexityMultiplier, math.Max(s.MinWordComplexityMultiplier, raw))
}

// MaxPlausibleScore is the largest score accepted for a summary reporting
// wordsCompleted finished words.
func (s Settings) MaxPlausibleScore(wordsCompleted int) float64 {
	return math.Max(s.ScoreCapFloor, float64(wordsCompleted)*s.ScoreCapPerWord)
}

// NextLevelDuration shortens the per-level timer, never below the minimum.
func (s Settings) NextLevelDuration(current int) int {
	next := current - s.LevelDurationDecrement
	if next < s.MinLevelDuration {
		return s.MinLevelDuration
	}
	return next
}
