// internal/httpserver/routes_scores.go
//
// Leaderboard and word pool endpoints:
//   - GET  /highscores           → top scores (?limit=, default 5)
//   - GET  /highscores?name=X    → a single player's best score
//   - POST /highscores           → submit a finished game's validated score
//   - GET  /words/count          → size of the word pool
//   - GET  /games/recent         → recently finished games, newest first

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/wordrush/internal/store"
)

func (s *Server) mountScores(r chi.Router) {
	r.Get("/highscores", s.handleHighscores)
	r.Post("/highscores", s.handleSubmitScore)
	r.Get("/words/count", s.handleWordCount)
	r.Get("/games/recent", s.handleRecentGames)
}

// queryLimit parses ?limit= with a fallback and an upper bound.
func queryLimit(r *http.Request, def, most int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, most)
}

func (s *Server) handleHighscores(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		score, err := s.ctl.PlayerScore(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			_ = json.NewEncoder(w).Encode(map[string]any{"score": nil})
			return
		}
		if err != nil {
			s.writeSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"score": score})
		return
	}
	top, err := s.ctl.Leaderboard(r.Context(), queryLimit(r, 5, 100))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"topScores": top})
}

// submitScoreReq/Res payloads for POST /highscores.
type submitScoreReq struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	GameID string  `json:"gameId"`
}
type submitScoreRes struct {
	Message     string             `json:"message"`
	TopScores   []store.ScoreEntry `json:"topScores"`
	TotalScores int                `json:"totalScores"`
	UserRank    int                `json:"userRank"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	sub, err := s.ctl.SubmitScore(r.Context(), req.Name, req.Score, req.GameID)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	if !sub.Accepted {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":         "a higher or equal score is already recorded for this name",
			"existingScore": sub.Existing,
		})
		return
	}
	hlog.FromRequest(r).Info().Str("session", req.GameID).Float64("score", req.Score).Int("rank", sub.Rank).Msg("highscore")
	writeJSON(w, http.StatusCreated, submitScoreRes{
		Message:     "score submitted",
		TopScores:   sub.Top,
		TotalScores: sub.Total,
		UserRank:    sub.Rank,
	})
}

func (s *Server) handleWordCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.ctl.WordCount(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"count": n})
}

func (s *Server) handleRecentGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.ctl.RecentGames(r.Context(), queryLimit(r, 20, 100))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"games": games})
}
