package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authdto "github.com/dropDatabas3/adminauth/internal/http/dto/auth"
	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/http/middlewares"
	authsvc "github.com/dropDatabas3/adminauth/internal/http/services/auth"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

type AuthController struct {
	svc    *authsvc.Service
	secure bool // Secure en cookies (producción)
}

func NewAuthController(svc *authsvc.Service, secure bool) *AuthController {
	return &AuthController{svc: svc, secure: secure}
}

func meta(r *http.Request) authsvc.RequestMeta {
	return authsvc.RequestMeta{
		IP:        helpers.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func adminInfo(a *core.Admin) *authdto.AdminInfo {
	return &authdto.AdminInfo{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Role:      string(a.Role),
		OrgUnit:   a.OrgUnit,
		LastLogin: a.LastLoginAt,
	}
}

// Login maneja POST /admin-auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req authdto.LoginRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	req.Normalize()
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}

	res, err := c.svc.Login(r.Context(), req.Email, req.Password, meta(r))
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}

	if res.Requires2FA {
		helpers.WriteJSON(w, http.StatusOK, authdto.LoginResponse{
			Requires2FA:     true,
			TwoFactorMethod: string(res.TwoFactorMethod),
			TempToken:       res.TempToken,
		})
		return
	}

	setSessionCookies(w, res.Tokens, c.svc.AccessTTL(), c.svc.RefreshTTL(), c.secure)
	helpers.WriteJSON(w, http.StatusOK, authdto.LoginResponse{
		Admin:     adminInfo(res.Admin),
		ExpiresAt: &res.Tokens.ExpiresAt,
	})
}

// Verify2FA maneja POST /admin-auth/verify-2fa.
func (c *AuthController) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req authdto.Verify2FARequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}

	res, err := c.svc.Verify2FA(r.Context(), req.TempToken, req.Code, req.BackupCode, meta(r))
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}

	setSessionCookies(w, res.Tokens, c.svc.AccessTTL(), c.svc.RefreshTTL(), c.secure)
	helpers.WriteJSON(w, http.StatusOK, authdto.LoginResponse{
		Admin:     adminInfo(res.Admin),
		ExpiresAt: &res.Tokens.ExpiresAt,
	})
}

// PreviewActivation maneja GET /admin-auth/activate?token=...
func (c *AuthController) PreviewActivation(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		helpers.WriteError(w, r, apperrors.TokenInvalid)
		return
	}
	email, err := c.svc.PreviewActivation(r.Context(), token)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.TokenPreviewResponse{Valid: true, Email: email})
}

// Activate maneja POST /admin-auth/activate.
func (c *AuthController) Activate(w http.ResponseWriter, r *http.Request) {
	var req authdto.ActivateRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}
	if err := c.svc.Activate(r.Context(), req.Token, req.Password, meta(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.MessageResponse{
		Message: "Cuenta activada. Ya podés iniciar sesión.",
	})
}

// ForgotPassword maneja POST /admin-auth/forgot-password. La respuesta es
// idéntica exista o no la cuenta.
func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authdto.ForgotPasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	req.Normalize()
	if req.Email == "" {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail("email requerido"))
		return
	}
	if err := c.svc.ForgotPassword(r.Context(), req.Email, meta(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.MessageResponse{
		Message: "Si el email existe, vas a recibir un enlace para restablecer la contraseña.",
	})
}

// PreviewReset maneja GET /admin-auth/reset-password?token=...
func (c *AuthController) PreviewReset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		helpers.WriteError(w, r, apperrors.TokenInvalid)
		return
	}
	email, err := c.svc.PreviewReset(r.Context(), token)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.TokenPreviewResponse{Valid: true, Email: email})
}

// ResetPassword maneja POST /admin-auth/reset-password.
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authdto.ResetPasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}
	if err := c.svc.ResetPassword(r.Context(), req.Token, req.Password, meta(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.MessageResponse{
		Message: "Contraseña actualizada. Se cerraron todas tus sesiones.",
	})
}

// Register maneja POST /admin-auth/register (sólo SUPER_ADMIN).
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}

	var req authdto.RegisterRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	req.Normalize()
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}

	a, err := c.svc.Register(r.Context(), authsvc.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		OrgUnit:   req.OrgUnit,
		Role:      core.Role(req.Role),
		CreatedBy: claims.Subject,
	}, meta(r))
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, adminInfo(a))
}

// ListAdmins maneja GET /admin-auth/admins (sólo SUPER_ADMIN).
func (c *AuthController) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := c.svc.ListAdmins(r.Context())
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	items := make([]authdto.AdminListItem, 0, len(admins))
	for _, a := range admins {
		items = append(items, authdto.AdminListItem{
			ID:               a.ID,
			Email:            a.Email,
			FirstName:        a.FirstName,
			LastName:         a.LastName,
			OrgUnit:          a.OrgUnit,
			Role:             string(a.Role),
			IsActive:         a.IsActive,
			EmailVerified:    a.EmailVerified,
			TwoFactorEnabled: a.TwoFactorEnabled,
			LastLogin:        a.LastLoginAt,
			CreatedAt:        a.CreatedAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, authdto.AdminListResponse{Admins: items})
}

// UpdateAdminRole maneja PATCH /admin-auth/admins/{id} (sólo SUPER_ADMIN).
func (c *AuthController) UpdateAdminRole(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail("id requerido"))
		return
	}

	var req authdto.UpdateRoleRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithErr(err))
		return
	}
	req.Normalize()
	if problems := req.Validate(); len(problems) > 0 {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail(strings.Join(problems, "; ")))
		return
	}

	a, err := c.svc.UpdateRole(r.Context(), targetID, core.Role(req.Role), claims.Subject, meta(r))
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, adminInfo(a))
}

// DeleteAdmin maneja DELETE /admin-auth/admins/{id} (sólo SUPER_ADMIN).
func (c *AuthController) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.ClaimsFrom(r.Context())
	if claims == nil {
		helpers.WriteError(w, r, apperrors.Unauthorized)
		return
	}
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		helpers.WriteError(w, r, apperrors.InvalidInput.WithDetail("id requerido"))
		return
	}
	if err := c.svc.DeleteAdmin(r.Context(), targetID, claims.Subject); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
