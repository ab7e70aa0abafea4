// internal/session/controller.go
//
// Level/session controller: owns the live sessions of one process.
// Responsibilities:
//   - Start sessions (random or daily word), with bounded retries against the
//     persistence gateway.
//   - Serialize every mutation of one session behind its own lock: guesses,
//     ticks, get-ready transitions and level advances.
//   - Run the per-session timers (countdown, play start, 1s tick, completion
//     delay) on a scheduler group that is cancelled as a unit.
//   - Finalize sessions into validated summaries and leaderboard submissions.
//
// Notes:
//   - State is written through to the gateway after every accepted change, so
//     a restarted process (or another replica) can resume a session.
//   - Timer callbacks hold the entry they were scheduled for, never the id, so
//     a finished entry can never be revived by a late callback.

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/scheduler"
	"github.com/robalobadob/wordrush/internal/settings"
	"github.com/robalobadob/wordrush/internal/store"
	"github.com/robalobadob/wordrush/internal/words"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoWordsAvailable  = errors.New("no words available")
	ErrInvalidSubmission = errors.New("invalid submission")
)

const (
	maxNameLength      = 24
	leaderboardDefault = 5
)

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Settings  settings.Settings
	Store     store.Gateway
	Publisher Publisher
	Logger    *zerolog.Logger

	SessionTTL    time.Duration
	SummaryTTL    time.Duration
	StartAttempts int
	RetryBackoff  time.Duration
	DailySalt     string

	Now func() time.Time
}

// Controller drives sessions on top of the pure game transitions.
type Controller struct {
	opts Options
	proc *game.Processor
	log  zerolog.Logger

	mu   sync.Mutex
	live map[string]*entry
}

// entry is one live session.
type entry struct {
	mu     sync.Mutex
	st     game.State
	timers *scheduler.Group
	closed bool
}

// Result is the outcome of one input.
type Result struct {
	State   game.State
	Events  []game.Event
	Outcome game.Outcome
}

// Submission reports a leaderboard attempt.
type Submission struct {
	Accepted bool               `json:"accepted"`
	Existing float64            `json:"existingScore,omitempty"`
	Rank     int                `json:"userRank,omitempty"`
	Total    int                `json:"totalScores,omitempty"`
	Top      []store.ScoreEntry `json:"topScores,omitempty"`
}

// New builds a Controller.
func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = Discard
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = time.Hour
	}
	if opts.StartAttempts <= 0 {
		opts.StartAttempts = 3
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	proc := game.NewProcessor(opts.Settings)
	proc.Now = opts.Now
	return &Controller{
		opts: opts,
		proc: proc,
		log:  logger.With().Str("component", "session").Logger(),
		live: make(map[string]*entry),
	}
}

// Settings returns the tuning table in use.
func (c *Controller) Settings() settings.Settings { return c.opts.Settings }

// ------------------------------- start -------------------------------------

// Start begins a session on a randomly drawn word.
func (c *Controller) Start(ctx context.Context) (game.State, error) {
	return c.start(ctx, func(ctx context.Context) (words.Entry, error) {
		return c.opts.Store.DrawWord(ctx, nil)
	})
}

// StartDaily begins a session on the word of the day, shared by every
// player for the same UTC date.
func (c *Controller) StartDaily(ctx context.Context) (game.State, error) {
	return c.start(ctx, func(ctx context.Context) (words.Entry, error) {
		n, err := c.opts.Store.WordCount(ctx)
		if err != nil {
			return words.Entry{}, err
		}
		if n == 0 {
			return words.Entry{}, store.ErrNoWords
		}
		return c.opts.Store.WordAt(ctx, words.DailyIndex(c.opts.Now(), c.opts.DailySalt, n))
	})
}

func (c *Controller) start(ctx context.Context, draw func(context.Context) (words.Entry, error)) (game.State, error) {
	id := uuid.NewString()
	var st game.State
	err := c.retry(ctx, "start", func() error {
		w, err := draw(ctx)
		if errors.Is(err, store.ErrNoWords) {
			return backoff.Permanent(ErrNoWordsAvailable)
		}
		if err != nil {
			return err
		}
		st = game.NewState(c.opts.Settings, id, w.Word, w.Hint, c.opts.Now())
		return c.opts.Store.SaveSession(ctx, st, c.opts.SessionTTL)
	})
	if err != nil {
		return game.State{}, err
	}

	e := &entry{st: st, timers: scheduler.New()}
	c.mu.Lock()
	c.live[id] = e
	c.mu.Unlock()

	e.mu.Lock()
	c.enterGetReady(e)
	e.mu.Unlock()

	c.log.Info().Str("session", id).Int("level", st.Level).Msg("session started")
	return st.Clone(), nil
}

// retry runs op with a constant backoff, StartAttempts times at most.
func (c *Controller) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryBackoff), uint64(c.opts.StartAttempts-1)),
		ctx,
	)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("op", what).Dur("retryIn", wait).Msg("gateway call failed")
	})
}

// ------------------------------- input -------------------------------------

// Guess applies one key press. Rejected inputs are not errors: they come
// back with Outcome.Accepted == false and the state unchanged.
func (c *Controller) Guess(ctx context.Context, id, key string) (Result, error) {
	return c.apply(ctx, id, func(st game.State) (game.State, []game.Event, game.Outcome) {
		return c.proc.ProcessGuess(st, key)
	})
}

// ActivateGodMode spends the ready flag and starts the God Mode press budget.
func (c *Controller) ActivateGodMode(ctx context.Context, id string) (Result, error) {
	return c.apply(ctx, id, c.proc.ActivateGodMode)
}

func (c *Controller) apply(ctx context.Context, id string, fn func(game.State) (game.State, []game.Event, game.Outcome)) (Result, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, ErrSessionNotFound
	}

	next, events, out := fn(e.st)
	if !out.Accepted {
		return Result{State: e.st.Clone(), Outcome: out}, nil
	}
	c.commit(ctx, e, next, events)
	switch e.st.Phase {
	case game.PhaseWordCompleted:
		e.timers.Cancel()
		e.timers.After(c.opts.Settings.WordCompletionDelay, func() { c.advance(context.Background(), e) })
	case game.PhaseGameOver:
		c.gameOver(e)
	}
	return Result{State: e.st.Clone(), Events: events, Outcome: out}, nil
}

// commit installs next, writes it through and publishes its events.
// Callers hold e.mu.
func (c *Controller) commit(ctx context.Context, e *entry, next game.State, events []game.Event) {
	e.st = next
	if err := c.opts.Store.SaveSession(ctx, e.st, c.opts.SessionTTL); err != nil {
		c.log.Error().Err(err).Str("session", e.st.ID).Msg("save session")
	}
	if len(events) > 0 {
		c.opts.Publisher.Publish(e.st.ID, events)
	}
}

// ------------------------------- timers ------------------------------------

// enterGetReady schedules the countdown beeps and the start of play.
// Callers hold e.mu.
func (c *Controller) enterGetReady(e *entry) {
	s := c.opts.Settings
	step := s.GetReadyDuration / time.Duration(s.CountdownBeeps+1)
	plan := make([]scheduler.Step, 0, s.CountdownBeeps+1)
	for i := 1; i <= s.CountdownBeeps; i++ {
		remaining := s.CountdownBeeps - i + 1
		plan = append(plan, scheduler.Step{
			Delay:  time.Duration(i) * step,
			Action: func() { c.countdown(e, remaining) },
		})
	}
	plan = append(plan, scheduler.Step{
		Delay:  s.GetReadyDuration,
		Action: func() { c.beginPlay(context.Background(), e) },
	})
	e.timers.Plan(plan...)
}

func (c *Controller) countdown(e *entry, remaining int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.st.Phase != game.PhaseGetReady {
		return
	}
	c.opts.Publisher.Publish(e.st.ID, []game.Event{{
		Kind:  game.EventCountdown,
		Level: e.st.Level,
		Lives: e.st.Lives,
		Score: e.st.Score,
		Value: remaining,
	}})
}

func (c *Controller) beginPlay(ctx context.Context, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	next, events := game.BeginPlay(e.st)
	if len(events) == 0 {
		return
	}
	e.timers.Cancel()
	c.commit(ctx, e, next, events)
	c.startTicker(e)
}

func (c *Controller) startTicker(e *entry) {
	e.timers.Every(c.opts.Settings.TickInterval, func() { c.tick(context.Background(), e) })
}

func (c *Controller) tick(ctx context.Context, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	next, events := game.Tick(c.opts.Settings, e.st)
	if len(events) == 0 {
		return
	}
	c.commit(ctx, e, next, events)
	if e.st.Phase == game.PhaseGameOver {
		c.gameOver(e)
	}
}

func (c *Controller) advance(ctx context.Context, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.st.Phase != game.PhaseWordCompleted {
		return
	}
	w, err := c.opts.Store.DrawWord(ctx, e.st.UsedWords)
	switch {
	case errors.Is(err, store.ErrNoWords):
		exhausted := game.Event{Kind: game.EventWordsExhausted, Level: e.st.Level, Lives: e.st.Lives, Score: e.st.Score}
		next, over := game.EndGame(e.st, "words_exhausted")
		c.commit(ctx, e, next, append([]game.Event{exhausted}, over...))
		c.gameOver(e)
		return
	case err != nil:
		// Keep the completed phase; the retry timer tries again.
		c.log.Error().Err(err).Str("session", e.st.ID).Msg("draw next word")
		e.timers.After(c.opts.Settings.WordCompletionDelay, func() { c.advance(context.Background(), e) })
		return
	}
	next, events := game.AdvanceLevel(c.opts.Settings, e.st, w.Word, w.Hint)
	c.commit(ctx, e, next, events)
	c.enterGetReady(e)
	c.log.Debug().Str("session", e.st.ID).Int("level", e.st.Level).Msg("level advanced")
}

// gameOver stops the timers and drops the entry from the live set. The
// persisted state stays readable until End. Callers hold e.mu.
func (c *Controller) gameOver(e *entry) {
	e.timers.Cancel()
	c.forget(e)
	c.log.Info().Str("session", e.st.ID).Float64("score", e.st.Score).Int("level", e.st.Level).Msg("game over")
}

// ------------------------ controller-driven ops ----------------------------

// BeginPlay ends the get-ready period immediately.
func (c *Controller) BeginPlay(ctx context.Context, id string) (game.State, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return game.State{}, err
	}
	c.beginPlay(ctx, e)
	return c.snapshot(e)
}

// Tick consumes one second of the level timer.
func (c *Controller) Tick(ctx context.Context, id string) (game.State, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return game.State{}, err
	}
	c.tick(ctx, e)
	return c.snapshot(e)
}

// AdvanceLevel moves a completed word on without waiting for the delay.
func (c *Controller) AdvanceLevel(ctx context.Context, id string) (game.State, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return game.State{}, err
	}
	c.advance(ctx, e)
	return c.snapshot(e)
}

// State returns the current state of a session.
func (c *Controller) State(ctx context.Context, id string) (game.State, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return game.State{}, err
	}
	return c.snapshot(e)
}

func (c *Controller) snapshot(e *entry) (game.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Clone(), nil
}

// acquire returns the live entry for id, reloading it from the gateway and
// resuming its timers when this process does not hold it.
func (c *Controller) acquire(ctx context.Context, id string) (*entry, error) {
	c.mu.Lock()
	e, ok := c.live[id]
	c.mu.Unlock()
	if ok {
		return e, nil
	}

	st, err := c.opts.Store.LoadSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	e = &entry{st: st, timers: scheduler.New()}
	if st.Phase == game.PhaseGameOver {
		return e, nil
	}
	c.mu.Lock()
	if existing, ok := c.live[id]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.live[id] = e
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	switch st.Phase {
	case game.PhaseGetReady:
		c.enterGetReady(e)
	case game.PhasePlaying:
		c.startTicker(e)
	case game.PhaseWordCompleted:
		e.timers.After(c.opts.Settings.WordCompletionDelay, func() { c.advance(context.Background(), e) })
	}
	c.log.Debug().Str("session", id).Str("phase", string(st.Phase)).Msg("session resumed")
	return e, nil
}

func (c *Controller) forget(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live[e.st.ID] == e {
		delete(c.live, e.st.ID)
	}
}

// Live reports how many sessions hold timers in this process.
func (c *Controller) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// ------------------------------- ending ------------------------------------

// End finishes a session and returns its validated summary. The final score
// is the larger of the tracked score and any summary already validated for
// the session. Ending an already finalized session returns its summary.
func (c *Controller) End(ctx context.Context, id string) (game.Summary, error) {
	e, err := c.acquire(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return c.finalized(ctx, id)
	}
	if err != nil {
		return game.Summary{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return c.finalized(ctx, id)
	}
	if e.st.Phase != game.PhaseGameOver {
		next, events := game.EndGame(e.st, "ended")
		c.commit(ctx, e, next, events)
	}
	e.timers.Close()

	sum := game.Summarize(e.st)
	if prev, err := c.opts.Store.LoadSummary(ctx, id); err == nil {
		sum.Score = max(sum.Score, prev.Score)
		sum.WordsCompleted = max(sum.WordsCompleted, prev.WordsCompleted)
	}
	if limit := c.opts.Settings.MaxPlausibleScore(sum.WordsCompleted); sum.Score > limit {
		return game.Summary{}, fmt.Errorf("%w: score %.0f exceeds %.0f", ErrInvalidSubmission, sum.Score, limit)
	}

	err = c.retry(ctx, "end", func() error {
		if err := c.opts.Store.SaveSummary(ctx, sum, c.opts.SummaryTTL); err != nil {
			return err
		}
		return c.opts.Store.DeleteSession(ctx, id)
	})
	if err != nil {
		return game.Summary{}, err
	}
	if a, ok := c.opts.Store.(store.Archiver); ok {
		if err := a.ArchiveGame(ctx, sum, c.opts.Now()); err != nil {
			c.log.Warn().Err(err).Str("session", id).Msg("archive game")
		}
	}

	e.closed = true
	c.forget(e)
	c.log.Info().Str("session", id).Float64("score", sum.Score).Int("words", sum.WordsCompleted).Msg("session ended")
	return sum, nil
}

func (c *Controller) finalized(ctx context.Context, id string) (game.Summary, error) {
	sum, err := c.opts.Store.LoadSummary(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return game.Summary{}, ErrSessionNotFound
	}
	return sum, err
}

// SubmitSummary records a client-reported summary for a session that still
// exists, after checking it against the plausibility cap.
func (c *Controller) SubmitSummary(ctx context.Context, sum game.Summary) (game.Summary, error) {
	if _, err := c.State(ctx, sum.GameID); err != nil {
		return game.Summary{}, err
	}
	if sum.Score < 0 || sum.WordsCompleted < 0 {
		return game.Summary{}, fmt.Errorf("%w: negative values", ErrInvalidSubmission)
	}
	if limit := c.opts.Settings.MaxPlausibleScore(sum.WordsCompleted); sum.Score > limit {
		return game.Summary{}, fmt.Errorf("%w: score %.0f exceeds %.0f", ErrInvalidSubmission, sum.Score, limit)
	}
	if err := c.opts.Store.SaveSummary(ctx, sum, c.opts.SummaryTTL); err != nil {
		return game.Summary{}, err
	}
	return sum, nil
}

// ----------------------------- leaderboard ---------------------------------

// NormalizeName trims and uppercases a player name.
func NormalizeName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" || len([]rune(name)) > maxNameLength {
		return "", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidSubmission, maxNameLength)
	}
	return name, nil
}

// SubmitScore posts a finished session's score. The score must equal the
// session's validated summary; a player's stored best never goes down.
func (c *Controller) SubmitScore(ctx context.Context, name string, score float64, gameID string) (Submission, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Submission{}, err
	}
	if score < 0 {
		return Submission{}, fmt.Errorf("%w: negative score", ErrInvalidSubmission)
	}
	sum, err := c.opts.Store.LoadSummary(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return Submission{}, fmt.Errorf("%w: no validated summary for game", ErrInvalidSubmission)
	}
	if err != nil {
		return Submission{}, err
	}
	if sum.Score != score {
		return Submission{}, fmt.Errorf("%w: score does not match validated summary", ErrInvalidSubmission)
	}

	st, err := c.opts.Store.SubmitScore(ctx, name, score, leaderboardDefault)
	if err != nil {
		return Submission{}, err
	}
	if !st.Accepted {
		return Submission{Accepted: false, Existing: st.Existing}, nil
	}
	if err := c.opts.Store.DeleteSummary(ctx, gameID); err != nil {
		c.log.Warn().Err(err).Str("session", gameID).Msg("delete summary")
	}
	c.log.Info().Str("name", name).Float64("score", score).Int("rank", st.Rank).Msg("score submitted")
	return Submission{Accepted: true, Rank: st.Rank, Total: st.Total, Top: st.Top}, nil
}

// Leaderboard returns the top scores; limit <= 0 means the default of 5.
func (c *Controller) Leaderboard(ctx context.Context, limit int) ([]store.ScoreEntry, error) {
	if limit <= 0 {
		limit = leaderboardDefault
	}
	return c.opts.Store.TopScores(ctx, limit)
}

// PlayerScore returns a player's best score.
func (c *Controller) PlayerScore(ctx context.Context, name string) (float64, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	return c.opts.Store.PlayerScore(ctx, name)
}

// WipeLeaderboard deletes every score.
func (c *Controller) WipeLeaderboard(ctx context.Context) error {
	c.log.Warn().Msg("leaderboard wiped")
	return c.opts.Store.WipeScores(ctx)
}

// ------------------------------- words -------------------------------------

// LoadWords replaces the word pool.
func (c *Controller) LoadWords(ctx context.Context, entries []words.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, words.ErrEmpty
	}
	if err := c.opts.Store.ReplaceWords(ctx, entries); err != nil {
		return 0, err
	}
	n, err := c.opts.Store.WordCount(ctx)
	if err == nil {
		c.log.Info().Int("count", n).Msg("word pool replaced")
	}
	return n, err
}

// WordCount returns the size of the word pool.
func (c *Controller) WordCount(ctx context.Context) (int, error) {
	return c.opts.Store.WordCount(ctx)
}

// RecentGames lists finished sessions, newest first. Backends without an
// archive return an empty list.
func (c *Controller) RecentGames(ctx context.Context, limit int) ([]store.ArchivedGame, error) {
	a, ok := c.opts.Store.(store.Archiver)
	if !ok {
		return []store.ArchivedGame{}, nil
	}
	return a.RecentGames(ctx, limit)
}

// Close stops the timers of every live session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.live {
		e.timers.Close()
		delete(c.live, id)
	}
}
