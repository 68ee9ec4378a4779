package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/adminauth/internal/http/dto/sessiondto"
	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/http/middlewares"
	sessionssvc "github.com/dropDatabas3/adminauth/internal/http/services/sessions"
)

type SessionController struct {
	svc    *sessionssvc.Service
	secure bool
}

func NewSessionController(svc *sessionssvc.Service, secure bool) *SessionController {
	return &SessionController{svc: svc, secure: secure}
}

func sessionMeta(r *http.Request) sessionssvc.RequestMeta {
	return sessionssvc.RequestMeta{
		IP:        helpers.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// List maneja GET /admin-auth/sessions.
func (c *SessionController) List(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	views, err := c.svc.List(r.Context(), claims.Subject, claims.SessionID)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	items := make([]sessiondto.SessionItem, 0, len(views))
	for _, v := range views {
		items = append(items, sessiondto.SessionItem{
			ID:         v.Session.ID,
			IP:         v.Session.IP,
			Device:     v.Session.Device,
			Browser:    v.Session.Browser,
			OS:         v.Session.OS,
			Location:   v.Session.Location,
			CreatedAt:  v.Session.CreatedAt,
			LastSeenAt: v.Session.LastSeenAt,
			Current:    v.Current,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, sessiondto.ListResponse{Sessions: items})
}

// Kill maneja DELETE /admin-auth/sessions/{id}.
func (c *SessionController) Kill(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail("id requerido"))
		return
	}
	if err := c.svc.Kill(r.Context(), claims.Subject, sessionID, sessionMeta(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// KillAll maneja DELETE /admin-auth/sessions: revoca todas menos la actual.
func (c *SessionController) KillAll(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	n, err := c.svc.KillAll(r.Context(), claims.Subject, claims.SessionID, sessionMeta(r))
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, sessiondto.KillAllResponse{Revoked: n})
}

// Logout maneja POST /admin-auth/logout. No requiere access token: con el
// refresh cookie alcanza, y siempre limpia las cookies.
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.Logout(r.Context(), refreshTokenFrom(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	clearSessionCookies(w, c.secure)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh maneja POST /admin-auth/refresh: rota el refresh token y renueva
// las cookies.
func (c *SessionController) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := refreshTokenFrom(r)
	if refresh == "" {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	_, pair, err := c.svc.Refresh(r.Context(), refresh, sessionMeta(r))
	if err != nil {
		clearSessionCookies(w, c.secure)
		helpers.WriteError(w, r, err)
		return
	}
	setSessionCookies(w, pair, c.svc.AccessTTL(), c.svc.RefreshTTL(), c.secure)
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"expires_at": pair.ExpiresAt})
}
