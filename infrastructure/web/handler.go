// Package web exposes the credential-issuing REST endpoints and wires
// the HTTP router the collaboration endpoint hangs off.
package web

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"video2tool/auth"
	"video2tool/errors"
	"video2tool/services"
)

type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
}

func NewHandler(log *slog.Logger, authService services.IAuthService) *Handler {
	return &Handler{log: log, authService: authService}
}

// Router assembles the public HTTP surface behind CORS middleware.
// An empty origin list mounts no CORS headers at all rather than the
// rs/cors allow-all default, so browsers refuse cross-origin calls and
// only non-browser clients get through.
func (h *Handler) Router(serveWS http.HandlerFunc, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/ws", serveWS).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		return r
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Register(req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"token": token})
	case stderrors.Is(err, errors.ErrUserExists):
		writeError(w, http.StatusConflict, errors.ErrUserExists.Error())
	case stderrors.Is(err, errors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, errors.ErrInvalidPassword.Error())
	default:
		h.log.Error("Registration failed", "err", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.ErrInvalidCredentials.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
