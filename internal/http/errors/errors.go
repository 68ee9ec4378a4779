// Package errors define el error de aplicación que viaja hasta el cliente y
// el catálogo de errores del subsistema. El Message es apto para mostrar; el
// Detail y el Err envuelto son para logs.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is compara por Code, para que errors.Is matchee contra el catálogo aunque
// la instancia sea una copia con detalle o causa.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithMessage devuelve una copia con un mensaje específico para el cliente.
// El Code no cambia, así errors.Is sigue matcheando contra el catálogo.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetail devuelve una copia con detalle extra (no va al cliente en prod).
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithErr devuelve una copia envolviendo la causa.
func (e *AppError) WithErr(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// As extrae un *AppError de una cadena de errores, o lo mapea a Internal.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal.WithErr(err)
}

// Catálogo. Los mensajes de credenciales son deliberadamente idénticos para
// email inexistente y password incorrecto: la respuesta no puede servir de
// oráculo de enumeración.
var (
	InvalidInput = &AppError{
		Code:       "INVALID_INPUT",
		Message:    "Datos inválidos. Revisá los campos enviados.",
		HTTPStatus: http.StatusBadRequest,
	}
	InvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Email o contraseña incorrectos.",
		HTTPStatus: http.StatusUnauthorized,
	}
	AccountLocked = &AppError{
		Code:       "ACCOUNT_LOCKED",
		Message:    "Cuenta bloqueada temporalmente por intentos fallidos. Probá más tarde.",
		HTTPStatus: http.StatusForbidden,
	}
	AccountNotActivated = &AppError{
		Code:       "ACCOUNT_NOT_ACTIVATED",
		Message:    "La cuenta no está activada. Revisá el correo de invitación.",
		HTTPStatus: http.StatusForbidden,
	}
	RateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Demasiados intentos. Esperá antes de volver a probar.",
		HTTPStatus: http.StatusTooManyRequests,
	}
	TokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "El enlace es inválido, venció o ya fue utilizado.",
		HTTPStatus: http.StatusBadRequest,
	}
	TwoFactorFailed = &AppError{
		Code:       "TWO_FACTOR_FAILED",
		Message:    "Código de verificación incorrecto o vencido.",
		HTTPStatus: http.StatusUnauthorized,
	}
	Unauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Sesión inválida o vencida. Iniciá sesión de nuevo.",
		HTTPStatus: http.StatusUnauthorized,
	}
	Forbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tenés permisos para esta operación.",
		HTTPStatus: http.StatusForbidden,
	}
	NotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso no existe.",
		HTTPStatus: http.StatusNotFound,
	}
	Conflict = &AppError{
		Code:       "CONFLICT",
		Message:    "El recurso ya existe.",
		HTTPStatus: http.StatusConflict,
	}
	Internal = &AppError{
		Code:       "INTERNAL",
		Message:    "Error interno. Intentá de nuevo más tarde.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
