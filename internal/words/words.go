// internal/words/words.go
//
// Word/hint supply for the game.
//
// Responsibilities:
//   - Parse "word,hint" lines from files, request bodies, or the embedded default list.
//   - Normalize words to uppercase and drop malformed lines.
//   - Pick a random entry excluding words already served in a session.
//   - Derive a deterministic per-day index for the daily start word.
//
// Environment variables:
//   WORDS_FILE=/path/to/words.txt   (optional; falls back to the embedded list)
//
// Constraints:
//   • A word must contain at least one A–Z letter; other characters
//     (spaces, hyphens, apostrophes) are kept and shown pre-revealed.
//   • The hint is everything after the first comma, trimmed.
//   • Duplicate words keep their first hint.

package words

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/robalobadob/wordrush/assets"
)

// ErrEmpty is returned when a word source yields no usable entries.
var ErrEmpty = errors.New("words: list is empty")

// Entry is one playable word and its hint.
type Entry struct {
	Word string `json:"word"`
	Hint string `json:"hint"`
}

// Load reads entries from path, or from the embedded list when path is empty.
func Load(path string) ([]Entry, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open words %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Defaults returns the embedded word list.
func Defaults() ([]Entry, error) {
	f, err := assets.FS.Open(assets.WordsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "word,hint" lines. Blank lines and lines starting with '#'
// are skipped, as are lines without a comma or without a letter.
func Parse(r io.Reader) ([]Entry, error) {
	var out []Entry
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, hint, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		e := Entry{Word: Normalize(word), Hint: strings.TrimSpace(hint)}
		if !Playable(e.Word) {
			continue
		}
		if _, dup := seen[e.Word]; dup {
			continue
		}
		seen[e.Word] = struct{}{}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Normalize trims and upper-cases a word.
func Normalize(w string) string {
	return strings.ToUpper(strings.TrimSpace(w))
}

// Playable reports whether w has at least one A–Z letter.
func Playable(w string) bool {
	return strings.ContainsFunc(w, func(r rune) bool { return r >= 'A' && r <= 'Z' })
}

// Pick returns a random entry whose word is not in excluding.
// ok is false when every entry is excluded.
func Pick(entries []Entry, excluding []string) (Entry, bool) {
	used := lo.SliceToMap(excluding, func(w string) (string, struct{}) {
		return Normalize(w), struct{}{}
	})
	avail := lo.Filter(entries, func(e Entry, _ int) bool {
		_, taken := used[Normalize(e.Word)]
		return !taken
	})
	if len(avail) == 0 {
		return Entry{}, false
	}
	return avail[randomIndex(len(avail))], true
}

// randomIndex returns a cryptographically random index in [0, n).
func randomIndex(n int) int {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(nBig.Int64())
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyIndex returns a deterministic index for a date using
// HMAC(salt, YYYY-MM-DD) % n.
func DailyIndex(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}
