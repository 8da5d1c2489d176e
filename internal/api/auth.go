package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deudat/deudat/internal/domain"
	"github.com/deudat/deudat/internal/infra/observability"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// sessionUserID returns the authenticated user id stored by requireSession.
func sessionUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(int64)
	return id, ok
}

// requireSession resolves the Authorization token to a user and stores the
// user id in the request context. Both "Bearer <token>" and a bare token are
// accepted.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			observability.AuthFailures.Inc()
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		userID, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			observability.AuthFailures.Inc()
			writeDomainError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// hashPassword returns the hex SHA-256 digest of a password. Only digests
// are stored.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// ─── Auth Handlers ──────────────────────────────────────────────────────────

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	u, err := s.store.CreateUser(r.Context(), req.Name, req.Email, hashPassword(req.Password))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, hash, err := s.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		observability.AuthFailures.Inc()
		// Do not leak whether the account exists.
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		return
	}
	candidate := hashPassword(req.Password)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) != 1 {
		observability.AuthFailures.Inc()
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		return
	}
	token, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.SessionsIssued.Inc()
	writeJSON(w, http.StatusOK, loginResponse{SessionToken: token})
}

func (s *Server) handleResolveToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	userID, err := s.sessions.Resolve(r.Context(), token)
	if err != nil {
		observability.AuthFailures.Inc()
		writeDomainError(w, err)
		return
	}
	u, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
