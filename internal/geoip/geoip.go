// Package geoip resuelve la ubicación aproximada de una IP contra ipapi.co.
// Es estrictamente best-effort: cualquier fallo (timeout, cuota, IP privada)
// devuelve nil y el caller sigue sin ubicación.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

const (
	requestTimeout = 3 * time.Second
	cacheTTL       = 6 * time.Hour
)

type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country_name"`
}

// String arma "Ciudad, Región, País" omitiendo los campos vacíos.
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Resolver struct {
	client  *http.Client
	cache   *gocache.Cache
	baseURL string
	enabled bool
}

func New(enabled bool) *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: requestTimeout},
		cache:   gocache.New(cacheTTL, 30*time.Minute),
		baseURL: "https://ipapi.co",
		enabled: enabled,
	}
}

// Lookup devuelve la ubicación formateada o nil si no se pudo resolver.
func (r *Resolver) Lookup(ctx context.Context, ip string) *string {
	if !r.enabled || ip == "" {
		return nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return nil
	}
	if cached, ok := r.cache.Get(ip); ok {
		s := cached.(string)
		if s == "" {
			return nil
		}
		return &s
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", r.baseURL, ip), nil)
	if err != nil {
		return nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		logger.From(ctx).Debug("geoip: lookup falló", logger.ClientIP(ip), logger.Err(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.From(ctx).Debug("geoip: respuesta no OK", logger.ClientIP(ip), logger.Int("status", resp.StatusCode))
		r.cache.Set(ip, "", gocache.DefaultExpiration)
		return nil
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil
	}
	s := loc.String()
	r.cache.Set(ip, s, gocache.DefaultExpiration)
	if s == "" {
		return nil
	}
	return &s
}
