// Package config carga la configuración del servicio: YAML como base y
// variables de entorno como override (las env ganan siempre).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"` // development | production

	HTTP struct {
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"` // base pública para armar links de activación/reset
	} `yaml:"http"`

	Postgres struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"postgres"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"` // rate limit distribuido; off = limiter en memoria
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret     string        `yaml:"secret"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Lockout struct {
		Threshold         int           `yaml:"threshold"`
		LockDuration      time.Duration `yaml:"lock_duration"`
		EscalateAt        int           `yaml:"escalate_at"`
		EscalatedDuration time.Duration `yaml:"escalated_duration"`
	} `yaml:"lockout"`

	Rate struct {
		LoginMax    int           `yaml:"login_max"`
		LoginWindow time.Duration `yaml:"login_window"`
		ResetMax    int           `yaml:"reset_max"`
		ResetWindow time.Duration `yaml:"reset_window"`
	} `yaml:"rate"`

	SMTP struct {
		Enabled     bool   `yaml:"enabled"` // off = sender echo (dev)
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		From        string `yaml:"from"`
		StartTLS    bool   `yaml:"starttls"`
		InsecureTLS bool   `yaml:"insecure_tls"`
	} `yaml:"smtp"`

	Email struct {
		FromName string `yaml:"from_name"`
	} `yaml:"email"`

	TOTPIssuer   string `yaml:"totp_issuer"`
	GeoIPEnabled bool   `yaml:"geoip_enabled"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default devuelve la configuración con los valores de política por defecto.
func Default() Config {
	var c Config
	c.Env = "development"
	c.HTTP.Addr = ":8080"
	c.HTTP.BaseURL = "http://localhost:8080"
	c.Postgres.MaxConns = 8
	c.JWT.AccessTTL = 8 * time.Hour
	c.JWT.RefreshTTL = 7 * 24 * time.Hour
	c.Lockout.Threshold = 5
	c.Lockout.LockDuration = 30 * time.Minute
	c.Lockout.EscalateAt = 10
	c.Lockout.EscalatedDuration = 24 * time.Hour
	c.Rate.LoginMax = 5
	c.Rate.LoginWindow = 15 * time.Minute
	c.Rate.ResetMax = 3
	c.Rate.ResetWindow = time.Hour
	c.SMTP.Port = 587
	c.SMTP.StartTLS = true
	c.Email.FromName = "Back Office"
	c.TOTPIssuer = "BackOffice"
	c.Log.Level = "info"
	return c
}

// Load lee el YAML (si path no está vacío) y aplica overrides de entorno.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: leer %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config: parsear %s: %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Env, "ADMINAUTH_ENV")
	overrideString(&c.HTTP.Addr, "ADMINAUTH_HTTP_ADDR")
	overrideString(&c.HTTP.BaseURL, "ADMINAUTH_BASE_URL")
	overrideString(&c.Postgres.DSN, "ADMINAUTH_POSTGRES_DSN")
	overrideString(&c.Redis.Addr, "ADMINAUTH_REDIS_ADDR")
	overrideString(&c.Redis.Password, "ADMINAUTH_REDIS_PASSWORD")
	overrideString(&c.JWT.Secret, "ADMINAUTH_JWT_SECRET")
	overrideString(&c.SMTP.Host, "ADMINAUTH_SMTP_HOST")
	overrideString(&c.SMTP.Username, "ADMINAUTH_SMTP_USERNAME")
	overrideString(&c.SMTP.Password, "ADMINAUTH_SMTP_PASSWORD")
	overrideString(&c.SMTP.From, "ADMINAUTH_SMTP_FROM")
	overrideString(&c.Log.Level, "ADMINAUTH_LOG_LEVEL")
	overrideBool(&c.Redis.Enabled, "ADMINAUTH_REDIS_ENABLED")
	overrideBool(&c.SMTP.Enabled, "ADMINAUTH_SMTP_ENABLED")
	overrideBool(&c.GeoIPEnabled, "ADMINAUTH_GEOIP_ENABLED")
	overrideInt(&c.SMTP.Port, "ADMINAUTH_SMTP_PORT")
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret es obligatorio (ADMINAUTH_JWT_SECRET)")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("config: jwt.secret demasiado corto (mínimo 32 bytes)")
	}
	if c.IsProd() && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn es obligatorio en producción")
	}
	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.From == "") {
		return fmt.Errorf("config: smtp habilitado requiere host y from")
	}
	return nil
}

func (c *Config) IsProd() bool { return c.Env == "production" }
