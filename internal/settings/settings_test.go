package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestTimeMultiplier(t *testing.T) {
	s := Default()
	cases := []struct {
		remaining, duration int
		want                float64
	}{
		{120, 120, 1.5},
		{90, 120, 1.25},
		{60, 120, 1},
		{30, 120, 1},
		{115, 115, 1.5},
		{60, 60, 1.5},
	}
	for _, c := range cases {
		if got := s.TimeMultiplier(c.remaining, c.duration); got != c.want {
			t.Errorf("TimeMultiplier(%d,%d) = %v, want %v", c.remaining, c.duration, got, c.want)
		}
	}
}

func TestTimeMultiplierMonotonic(t *testing.T) {
	s := Default()
	for _, ld := range []int{60, 85, 120} {
		prev := s.TimeMultiplier(0, ld)
		for tr := 1; tr <= ld; tr++ {
			got := s.TimeMultiplier(tr, ld)
			if got < prev {
				t.Fatalf("TimeMultiplier decreased at tr=%d ld=%d: %v < %v", tr, ld, got, prev)
			}
			if got < 1 {
				t.Fatalf("TimeMultiplier below 1 at tr=%d ld=%d", tr, ld)
			}
			prev = got
		}
	}
}

func TestWordComplexityMultiplier(t *testing.T) {
	s := Default()
	cases := []struct {
		word string
		want float64
	}{
		// 1 + 3*0.03 + 3*0.02 = 1.15 -> clamped to 1.2
		{"CAT", 1.2},
		// 1 + 20*0.03 + 20*0.02 = 2.0 -> clamped to 1.9
		{"ABCDEFGHIJKLMNOPQRST", 1.9},
	}
	for _, c := range cases {
		if got := s.WordComplexityMultiplier(c.word); got != c.want {
			t.Errorf("WordComplexityMultiplier(%q) = %v, want %v", c.word, got, c.want)
		}
	}

	// ELEPHANT: 8 chars, 6 distinct -> 1 + 0.24 + 0.12
	got := s.WordComplexityMultiplier("elephant")
	length, distinct := 8.0, 6.0
	want := 1 + float64(length*0.03) + float64(distinct*0.02)
	if got != want {
		t.Errorf("WordComplexityMultiplier(elephant) = %v, want %v", got, want)
	}
	if s.WordComplexityMultiplier("elephant") != s.WordComplexityMultiplier("ELEPHANT") {
		t.Errorf("multiplier must not depend on case")
	}
}

func TestWordComplexityMultiplierBounds(t *testing.T) {
	s := Default()
	for _, w := range []string{"", "A", "OX", "ICE-CREAM", "HIPPOPOTOMONSTROSESQUIPPEDALIOPHOBIA"} {
		got := s.WordComplexityMultiplier(w)
		if got < s.MinWordComplexityMultiplier || got > s.MaxWordComplexityMultiplier {
			t.Errorf("WordComplexityMultiplier(%q) = %v out of bounds", w, got)
		}
		if again := s.WordComplexityMultiplier(w); again != got {
			t.Errorf("WordComplexityMultiplier(%q) not deterministic", w)
		}
	}
}

func TestMaxPlausibleScore(t *testing.T) {
	s := Default()
	if got := s.MaxPlausibleScore(0); got != 1000 {
		t.Errorf("MaxPlausibleScore(0) = %v", got)
	}
	if got := s.MaxPlausibleScore(4); got != 4000 {
		t.Errorf("MaxPlausibleScore(4) = %v", got)
	}
}

func TestNextLevelDuration(t *testing.T) {
	s := Default()
	if got := s.NextLevelDuration(120); got != 115 {
		t.Errorf("NextLevelDuration(120) = %d", got)
	}
	if got := s.NextLevelDuration(62); got != 60 {
		t.Errorf("NextLevelDuration(62) = %d", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	doc := "freeLifeInterval: 3\nwordCompletionDelay: 250ms\ninitialLives: 4\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.FreeLifeInterval != 3 || s.InitialLives != 4 {
		t.Errorf("overrides not applied: %+v", s)
	}
	if s.WordCompletionDelay != 250*time.Millisecond {
		t.Errorf("WordCompletionDelay = %v", s.WordCompletionDelay)
	}
	if s.GodModeThreshold != Default().GodModeThreshold {
		t.Errorf("untouched field changed: %d", s.GodModeThreshold)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("minBaseMultiplier: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "minBaseMultiplier") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if s != Default() {
		t.Errorf("empty path should yield defaults")
	}
}
