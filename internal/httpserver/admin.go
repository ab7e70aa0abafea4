// internal/httpserver/admin.go
//
// Admin endpoints:
//   - POST   /admin/login        → bcrypt check against the configured hash,
//                                  returns an HS256 JWT (body + cookie)
//   - POST   /admin/words/load   → replace the word pool (JWT)
//   - DELETE /admin/highscores   → wipe the leaderboard (JWT)
//
// Login is disabled when no password hash is configured.

package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/wordrush/internal/words"
)

const (
	adminCookieName = "wordrush_admin"
	adminRole       = "admin"
	maxWordsBody    = 1 << 20
)

func (s *Server) mountAdmin(r chi.Router) {
	r.Post("/admin/login", s.handleAdminLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/admin/words/load", s.handleLoadWords)
		r.Delete("/admin/highscores", s.handleWipeScores)
	})
}

type loginReq struct {
	Password string `json:"password"`
}

// handleAdminLogin verifies the admin password and issues a token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.AdminPasswordHash == "" {
		http.Error(w, `{"error":"admin_disabled"}`, http.StatusForbidden)
		return
	}
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if !checkPassword(s.opts.AdminPasswordHash, body.Password) {
		hlog.FromRequest(r).Warn().Msg("admin login failed")
		http.Error(w, `{"error":"Invalid password"}`, http.StatusUnauthorized)
		return
	}
	tok, exp, err := s.signJWT()
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(map[string]any{"token": tok, "expiresAt": exp.UTC().Format(time.RFC3339)})
}

// handleLoadWords replaces the pool with "word,hint" lines from the body, or
// from the configured words file (or the embedded list) when the body is empty.
func (s *Server) handleLoadWords(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWordsBody))
	if err != nil {
		http.Error(w, `{"error":"read_failed"}`, http.StatusBadRequest)
		return
	}
	var entries []words.Entry
	switch {
	case len(bytes.TrimSpace(raw)) > 0:
		entries, err = words.Parse(bytes.NewReader(raw))
	case s.opts.WordsFile != "":
		entries, err = words.Load(s.opts.WordsFile)
	default:
		entries, err = words.Defaults()
	}
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	n, err := s.ctl.LoadWords(r.Context(), entries)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"count": n})
}

func (s *Server) handleWipeScores(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.WipeLeaderboard(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ------------------------------ JWT & cookies ------------------------------

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// signJWT creates an HS256 admin token that expires after JWTExpires.
func (s *Server) signJWT() (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.opts.JWTExpires)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  adminRole,
		"role": adminRole,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

func (s *Server) parseJWT(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// setAuthCookie writes the admin token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	sameSite := http.SameSiteLaxMode
	if s.opts.Production {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Production,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(adminCookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireAdmin enforces a valid admin JWT.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerOrCookie(r)
		if tokenStr == "" {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims, err := s.parseJWT(tokenStr)
		if err != nil {
			http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
			return
		}
		if role, _ := claims["role"].(string); role != adminRole {
			http.Error(w, `{"error":"Forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
