// Package helpers reúne utilidades HTTP compartidas por controllers y
// middlewares.
package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// ReadJSON decodifica el body en dst rechazando campos desconocidos.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	// Un segundo valor en el body es un request malformado.
	if dec.More() {
		return fmt.Errorf("body con contenido extra")
	}
	return nil
}

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Ya se escribió el header; sólo queda loguear.
		logger.L().Error("write json response", logger.Err(err))
	}
}

// WriteError responde el AppError correspondiente al error recibido.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperrors.As(err)
	if ae.HTTPStatus >= 500 {
		logger.From(r.Context()).Error("request falló", logger.Err(err))
	}
	WriteJSON(w, ae.HTTPStatus, map[string]any{"error": ae})
}

// ClientIP devuelve la IP del cliente: primera entrada de X-Forwarded-For si
// existe (el servicio corre detrás del proxy de la empresa), si no RemoteAddr
// sin puerto.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
