package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/identity"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/policy"
)

// LoginRequest carries role-table credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token       string     `json:"token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        model.User `json:"user"`
	LandingView string     `json:"landing_view"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	User         model.User          `json:"user"`
	LandingView  string              `json:"landing_view"`
	Capabilities []policy.Capability `json:"capabilities"`
}

// AuthHandler handles login and session introspection.
type AuthHandler struct {
	authenticator *identity.Authenticator
	sessions      *identity.SessionIssuer
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authenticator *identity.Authenticator, sessions *identity.SessionIssuer, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{authenticator: authenticator, sessions: sessions, logger: log}
}

// RegisterPublicRoutes registers routes that need no session.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// RegisterRoutes registers session-protected routes.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/me", h.Me).Methods("GET")
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	user, err := h.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Info("login rejected", "remote_addr", r.RemoteAddr)
		respondError(w, r, h.logger, err)
		return
	}

	token, expiresAt, err := h.sessions.Issue(user)
	if err != nil {
		respondError(w, r, h.logger, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to issue session"))
		return
	}

	logger.FromContext(r.Context(), h.logger).Info("user logged in", "user_id", user.ID, "role", user.Role)
	respondJSON(w, http.StatusOK, LoginResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        user,
		LandingView: identity.LandingView(user.Role),
	})
}

// Me returns the session's user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{
		User:         user,
		LandingView:  identity.LandingView(user.Role),
		Capabilities: policy.Capabilities(user.Role),
	})
}
