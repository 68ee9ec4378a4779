// Package useragent clasifica el User-Agent en dispositivo, browser y OS.
// Es una heurística de substrings suficiente para mostrar "Chrome en Windows
// (Desktop)" en la lista de sesiones; no pretende ser un parser completo.
package useragent

import "strings"

type Info struct {
	Device  string // Desktop | Mobile | Tablet | Unknown
	Browser string
	OS      string
}

func Parse(ua string) Info {
	if strings.TrimSpace(ua) == "" {
		return Info{Device: "Unknown", Browser: "Unknown", OS: "Unknown"}
	}
	low := strings.ToLower(ua)
	return Info{
		Device:  device(low),
		Browser: browser(low),
		OS:      operatingSystem(low),
	}
}

func device(ua string) string {
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

func browser(ua string) string {
	// El orden importa: Edge y Opera también anuncian "chrome", y todo el
	// mundo anuncia "safari".
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}

func operatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
