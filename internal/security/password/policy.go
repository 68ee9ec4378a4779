package password

import (
	"strings"
	"unicode"
)

// Policy define los requisitos mínimos para passwords de administradores.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// Blacklist: palabras que no pueden aparecer (substring, case-insensitive).
	// Incluye marcas de la empresa además de los clásicos.
	Blacklist []string
}

// DefaultPolicy es la política del back office: 12+ caracteres, todas las clases.
var DefaultPolicy = Policy{
	MinLength:     12,
	RequireUpper:  true,
	RequireLower:  true,
	RequireDigit:  true,
	RequireSymbol: true,
	Blacklist: []string{
		"password", "123456", "12345678", "qwerty", "abc123", "monkey", "master",
		"dragon", "letmein", "login", "admin", "welcome", "passw0rd", "password1",
		"lledo", "mpeb", "aerotools", "industries",
	},
}

// Validate retorna TODAS las reglas violadas, no solo la primera,
// para que el caller pueda renderizar el checklist completo.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	lower := strings.ToLower(s)
	for _, w := range p.Blacklist {
		if strings.Contains(lower, w) {
			reasons = append(reasons, "common_word")
			break
		}
	}
	return len(reasons) == 0, reasons
}
