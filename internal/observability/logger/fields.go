package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar - HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Campos estándar - negocio

func AdminID(v string) zap.Field   { return zap.String("admin_id", v) }
func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func Email(v string) zap.Field     { return zap.String("email", v) }
func EventType(v string) zap.Field { return zap.String("event_type", v) }

// Campos estándar - sistema

// Layer identifica la capa (controller, service, store).
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// Genéricos

func Count(v int) zap.Field           { return zap.Int("count", v) }
func String(k, v string) zap.Field    { return zap.String(k, v) }
func Int(k string, v int) zap.Field   { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Any(k string, v any) zap.Field   { return zap.Any(k, v) }
