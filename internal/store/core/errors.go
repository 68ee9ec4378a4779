package core

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")

	// ErrTokenConsumed: el update condicional "mark used WHERE used_at IS NULL"
	// no afectó filas; otro request ganó la carrera o el token ya se usó.
	ErrTokenConsumed = errors.New("token already consumed")
)
