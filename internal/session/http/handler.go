// Package http wires the authentication endpoints: login, logout, session
// introspection and out-of-band role sync.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewboard/crewboard/internal/audit"
	"github.com/crewboard/crewboard/internal/authapi"
	"github.com/crewboard/crewboard/internal/notify"
	"github.com/crewboard/crewboard/internal/platform/httpx"
	"github.com/crewboard/crewboard/internal/rolepolicy"
	"github.com/crewboard/crewboard/internal/session"
)

// blockedAccountMessage is the distinct, longer-lived notice shown when a
// login fails because the account was blocked or disabled upstream.
const blockedAccountMessage = "Your account has been blocked. Please contact an administrator."

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	manager   *session.Manager
	engine    *notify.Engine
	recorder  *audit.Recorder
	codec     *session.CookieCodec
	registrar *authapi.Client
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, manager *session.Manager, engine *notify.Engine, recorder *audit.Recorder, codec *session.CookieCodec, registrar *authapi.Client) *Handler {
	return &Handler{
		logger:    logger,
		manager:   manager,
		engine:    engine,
		recorder:  recorder,
		codec:     codec,
		registrar: registrar,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. loginLimiter,
// when non-nil, throttles credential attempts without slowing the rest of
// the auth surface.
func (h *Handler) MountRoutes(r chi.Router, loginLimiter func(http.Handler) http.Handler) {
	if loginLimiter != nil {
		r.With(loginLimiter).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
	r.Post("/register", h.handleRegister)
	r.Get("/session", h.handleSession)
	r.Post("/role-sync", h.handleRoleSync)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	User     *session.User `json:"user"`
	Redirect string        `json:"redirect"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	// A fresh session id on every login keeps an attacker-supplied cookie
	// from being promoted to an authenticated session.
	sid := h.codec.NewSessionID()

	user, err := h.manager.Login(r.Context(), sid, req.Email, req.Password)
	if err != nil {
		h.respondLoginError(w, err)
		return
	}
	h.codec.Write(w, sid)

	h.recorder.Record(r.Context(), audit.Event{
		ActorID:  user.ID,
		Action:   audit.ActionLogin,
		Entity:   "session",
		EntityID: sid,
		Meta:     map[string]any{"role": string(user.Role)},
	})

	redirect := rolepolicy.DashboardRoute(user.Role)
	if next := sanitizeNext(r.URL.Query().Get("next")); next != "" {
		redirect = next
	}
	httpx.JSON(w, http.StatusOK, loginResponse{User: user, Redirect: redirect})
}

// respondLoginError keeps the collaborator's failure reasons apart so the
// client can present blocked accounts differently from bad credentials.
func (h *Handler) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case authapi.IsAccountBlocked(err):
		httpx.Problem(w, http.StatusForbidden, "Account Blocked", blockedAccountMessage)
	case errors.Is(err, authapi.ErrUnavailable):
		h.logger.Error("login upstream unavailable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "authentication service unavailable, try again shortly")
	default:
		httpx.Problem(w, http.StatusUnauthorized, "Login Failed", err.Error())
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess.IsAuthenticated() {
		h.engine.Invalidate(r.Context(), sess)
		h.recorder.Record(r.Context(), audit.Event{
			ActorID:  sess.User.ID,
			Action:   audit.ActionLogout,
			Entity:   "session",
			EntityID: sess.ID,
		})
	}
	h.manager.Logout(r.Context(), sess)
	h.codec.Drop(w)
	httpx.NoContent(w)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
		return
	}
	user, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, authapi.ErrUnavailable) {
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Registration Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": user})
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
	Dashboard     string        `json:"dashboard,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	res := sessionResponse{Authenticated: sess.IsAuthenticated()}
	if sess.IsAuthenticated() {
		res.User = sess.User
		res.Dashboard = rolepolicy.DashboardRoute(sess.User.Role)
	}
	httpx.JSON(w, http.StatusOK, res)
}

type roleSyncRequest struct {
	Role string `json:"role" validate:"required"`
}

// handleRoleSync reflects a server-initiated role change without forcing a
// re-login. The previous role's notification snapshot is invalidated so the
// next read fetches the new scope.
func (h *Handler) handleRoleSync(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.IsAuthenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req roleSyncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	newRole := session.NormalizeRole(req.Role)
	if !newRole.Known() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role: "+req.Role)
		return
	}

	oldRole := sess.User.Role
	h.engine.Invalidate(r.Context(), sess)
	h.manager.UpdateUserRole(r.Context(), sess.ID, newRole)
	h.recorder.Record(r.Context(), audit.Event{
		ActorID:  sess.User.ID,
		Action:   audit.ActionRoleChange,
		Entity:   "user",
		EntityID: strconv.FormatInt(sess.User.ID, 10),
		Meta:     map[string]any{"from": string(oldRole), "to": string(newRole)},
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"role": newRole, "dashboard": rolepolicy.DashboardRoute(newRole)})
}

// sanitizeNext only honours same-site relative paths as post-login return
// destinations. Backslashes count as slashes here: browsers normalise them,
// so "/\evil.example" would become protocol-relative.
func sanitizeNext(next string) string {
	if next == "" || next[0] != '/' {
		return ""
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return ""
	}
	if _, err := url.Parse(next); err != nil {
		return ""
	}
	return next
}
