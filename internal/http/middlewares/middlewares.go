// Package middlewares arma la cadena HTTP estándar del servicio.
package middlewares

import (
	"net/http"
)

type Middleware func(http.Handler) http.Handler
