// Package auth define los DTOs de los endpoints de autenticación.
package auth

import (
	"strings"
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize canonicaliza el email (trim + minúsculas) antes de cualquier uso.
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() []string {
	var problems []string
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		problems = append(problems, "email inválido")
	}
	if r.Password == "" {
		problems = append(problems, "password requerido")
	}
	return problems
}

// LoginResponse cubre los dos desenlaces: sesión emitida o 2FA pendiente.
type LoginResponse struct {
	Requires2FA     bool       `json:"requires_2fa"`
	TwoFactorMethod string     `json:"two_factor_method,omitempty"`
	TempToken       string     `json:"temp_token,omitempty"`
	Admin           *AdminInfo `json:"admin,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type AdminInfo struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	OrgUnit   string     `json:"org_unit"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type Verify2FARequest struct {
	TempToken  string `json:"temp_token"`
	Code       string `json:"code"`
	BackupCode bool   `json:"backup_code,omitempty"`
}

func (r *Verify2FARequest) Validate() []string {
	var problems []string
	if r.TempToken == "" {
		problems = append(problems, "temp_token requerido")
	}
	if strings.TrimSpace(r.Code) == "" {
		problems = append(problems, "code requerido")
	}
	return problems
}

type ActivateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *ActivateRequest) Validate() []string {
	var problems []string
	if r.Token == "" {
		problems = append(problems, "token requerido")
	}
	if r.Password == "" {
		problems = append(problems, "password requerido")
	}
	return problems
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *ForgotPasswordRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *ResetPasswordRequest) Validate() []string {
	var problems []string
	if r.Token == "" {
		problems = append(problems, "token requerido")
	}
	if r.Password == "" {
		problems = append(problems, "password requerido")
	}
	return problems
}

// TokenPreviewResponse es la respuesta del GET de validación de un enlace
// (activación o reset) antes de mostrar el formulario.
type TokenPreviewResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email,omitempty"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	OrgUnit   string `json:"org_unit"`
	Role      string `json:"role"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.OrgUnit = strings.TrimSpace(r.OrgUnit)
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

func (r *RegisterRequest) Validate() []string {
	var problems []string
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		problems = append(problems, "email inválido")
	}
	if r.FirstName == "" {
		problems = append(problems, "first_name requerido")
	}
	if r.LastName == "" {
		problems = append(problems, "last_name requerido")
	}
	return problems
}

// AdminListItem es la vista de gestión: sin hashes ni material 2FA.
type AdminListItem struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	OrgUnit          string     `json:"org_unit"`
	Role             string     `json:"role"`
	IsActive         bool       `json:"is_active"`
	EmailVerified    bool       `json:"email_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type AdminListResponse struct {
	Admins []AdminListItem `json:"admins"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (r *UpdateRoleRequest) Normalize() {
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

func (r *UpdateRoleRequest) Validate() []string {
	if r.Role == "" {
		return []string{"role requerido"}
	}
	return nil
}

type MessageResponse struct {
	Message string `json:"message"`
}
