// internal/httpserver/server.go
//
// HTTP server wiring for the wordrush backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     access logs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints: start, state view, guesses, God Mode, end, summary and
//     the WebSocket event stream (stream.go).
//   - Leaderboard and word pool endpoints (routes_scores.go).
//   - Admin endpoints behind a JWT (admin.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so the admin cookie works).
//   - The secret word is masked in every game response until game over.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordrush/internal/game"
	"github.com/robalobadob/wordrush/internal/session"
	"github.com/robalobadob/wordrush/internal/store"
	"github.com/robalobadob/wordrush/internal/words"
)

// Options carries the HTTP-facing configuration.
type Options struct {
	ClientOrigin      string
	JWTSecret         string
	JWTExpires        time.Duration
	AdminPasswordHash string
	Production        bool
	WordsFile         string // source for /admin/words/load with an empty body
	RequestTimeout    time.Duration
	Logger            *zerolog.Logger
}

// Server bundles the router, the session controller and the event hub.
type Server struct {
	r    *chi.Mux
	ctl  *session.Controller
	hub  *Hub
	opts Options
	log  zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
// hub must be the Publisher the controller was built with.
func New(ctl *session.Controller, hub *Hub, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = "dev_secret_change_me"
	}
	if opts.JWTExpires <= 0 {
		opts.JWTExpires = 12 * time.Hour
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Server{r: chi.NewRouter(), ctl: ctl, hub: hub, opts: opts, log: logger}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(logger))
	s.r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("request_id", chimw.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordrush","endpoints":["/health","POST /game/new","/game/{id}","/highscores","/admin/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// The stream is long-lived, so it stays outside the timeout group.
	s.r.Get("/game/{id}/events", s.handleEvents)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout)) // bound handler time

		r.Post("/game/new", s.handleNewGame)
		r.Get("/game/{id}", s.handleGetGame)
		r.Post("/game/{id}/guess", s.handleGuess)
		r.Post("/game/{id}/godmode", s.handleGodMode)
		r.Post("/game/{id}/end", s.handleEnd)
		r.Post("/game/{id}/summary", s.handleSummary)

		s.mountScores(r)
		s.mountAdmin(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin admits same-host sockets and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.opts.ClientOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSessionError maps controller sentinels to status codes.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, `{"error":"session_not_found"}`, http.StatusNotFound)
	case errors.Is(err, session.ErrNoWordsAvailable), errors.Is(err, store.ErrNoWords):
		http.Error(w, `{"error":"no_words_available"}`, http.StatusServiceUnavailable)
	case errors.Is(err, session.ErrInvalidSubmission):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, words.ErrEmpty):
		http.Error(w, `{"error":"empty_word_list"}`, http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
	}
}

// ------------------------------ GAME ---------------------------------------

// stateView is the public projection of a session.
type stateView struct {
	ID                       string     `json:"id"`
	Phase                    game.Phase `json:"phase"`
	Word                     string     `json:"word"` // masked until game over
	Hint                     string     `json:"hint"`
	WordLength               int        `json:"wordLength"`
	UsedKeys                 []string   `json:"usedKeys"`
	Lives                    int        `json:"lives"`
	Score                    float64    `json:"score"`
	BaseMultiplier           float64    `json:"baseMultiplier"`
	TimeMultiplier           float64    `json:"timeMultiplier"`
	WordComplexityMultiplier float64    `json:"wordComplexityMultiplier"`
	Level                    int        `json:"level"`
	LevelDuration            int        `json:"levelDuration"`
	TimeRemaining            int        `json:"timeRemaining"`
	IsGodMode                bool       `json:"isGodMode"`
	GodModePressesLeft       int        `json:"godModePressesLeft"`
	GodModeReady             bool       `json:"godModeReady"`
	TotalCorrectGuesses      int        `json:"totalCorrectGuesses"`
	WordsCompleted           int        `json:"wordsCompleted"`
}

func viewOf(st game.State) stateView {
	word := game.Mask(st)
	if st.Phase == game.PhaseGameOver || st.Phase == game.PhaseWordCompleted {
		word = st.CurrentWord
	}
	return stateView{
		ID:                       st.ID,
		Phase:                    st.Phase,
		Word:                     word,
		Hint:                     st.CurrentHint,
		WordLength:               len([]rune(st.CurrentWord)),
		UsedKeys:                 st.UsedKeys.Sorted(),
		Lives:                    st.Lives,
		Score:                    st.Score,
		BaseMultiplier:           st.BaseMultiplier,
		TimeMultiplier:           st.TimeMultiplier,
		WordComplexityMultiplier: st.WordComplexityMultiplier,
		Level:                    st.Level,
		LevelDuration:            st.LevelDuration,
		TimeRemaining:            st.TimeRemaining,
		IsGodMode:                st.IsGodMode,
		GodModePressesLeft:       st.GodModePressesLeft,
		GodModeReady:             st.GodModeReady,
		TotalCorrectGuesses:      st.TotalCorrectGuesses,
		WordsCompleted:           st.WordsCompleted(),
	}
}

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Daily bool `json:"daily"` // word of the day instead of a random draw
}
type newGameRes struct {
	GameID string    `json:"gameId"`
	State  stateView `json:"state"`
}

// handleNewGame starts a session. An empty body is a random-word game.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	start := s.ctl.Start
	if req.Daily {
		start = s.ctl.StartDaily
	}
	st, err := start(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	hlog.FromRequest(r).Info().Str("session", st.ID).Bool("daily", req.Daily).Int("word_len", len(st.CurrentWord)).Msg("new game")
	writeJSON(w, http.StatusCreated, newGameRes{GameID: st.ID, State: viewOf(st)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctl.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(st))
}

// guessReq/Res payloads for POST /game/{id}/guess.
type guessReq struct {
	Key string `json:"key"`
}
type guessRes struct {
	Accepted bool              `json:"accepted"`
	Reason   game.RejectReason `json:"reason,omitempty"`
	Correct  bool              `json:"correct"`
	State    stateView         `json:"state"`
	Events   []game.Event      `json:"events"`
}

func resultRes(res session.Result) guessRes {
	events := res.Events
	if events == nil {
		events = []game.Event{}
	}
	return guessRes{
		Accepted: res.Outcome.Accepted,
		Reason:   res.Outcome.Reason,
		Correct:  res.Outcome.Correct,
		State:    viewOf(res.State),
		Events:   events,
	}
}

// handleGuess applies one key press. Dropped inputs still answer 200 with
// accepted=false and a reason.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	res, err := s.ctl.Guess(r.Context(), chi.URLParam(r, "id"), req.Key)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(resultRes(res))
}

func (s *Server) handleGodMode(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctl.ActivateGodMode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(resultRes(res))
}

// handleEnd finalizes a session and returns its summary.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ctl.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sum)
}

// summaryReq/Res payloads for POST /game/{id}/summary.
type summaryReq struct {
	Score               float64 `json:"score"`
	WordsCompleted      int     `json:"wordsCompleted"`
	TotalCorrectGuesses int     `json:"totalCorrectGuesses"`
	TimeTaken           int     `json:"timeTaken"`
}
type summaryRes struct {
	ValidatedScore      float64 `json:"validatedScore"`
	FinalWordsCompleted int     `json:"finalWordsCompleted"`
}

// handleSummary records a client-reported summary after validation.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	sum, err := s.ctl.SubmitSummary(r.Context(), game.Summary{
		GameID:              chi.URLParam(r, "id"),
		Score:               req.Score,
		WordsCompleted:      req.WordsCompleted,
		TotalCorrectGuesses: req.TotalCorrectGuesses,
		TimeTaken:           req.TimeTaken,
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(summaryRes{ValidatedScore: sum.Score, FinalWordsCompleted: sum.WordsCompleted})
}
