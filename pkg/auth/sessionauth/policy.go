package sessionauth

import (
	"path"
	"strings"
)

// RouteClass is how a path is treated by the gate.
type RouteClass int

const (
	// RouteOpen paths are served to everyone.
	RouteOpen RouteClass = iota
	// RouteProtected paths require an authenticated user.
	RouteProtected
	// RouteAuthOnly paths (login, signup...) are only useful when signed out.
	RouteAuthOnly
	// RouteBypass paths are not gated at all: assets, APIs and health checks.
	RouteBypass
)

func (c RouteClass) String() string {
	switch c {
	case RouteProtected:
		return "protected"
	case RouteAuthOnly:
		return "auth_only"
	case RouteBypass:
		return "bypass"
	default:
		return "open"
	}
}

// Policy classifies request paths.
type Policy struct {
	Protected []string
	AuthOnly  []string

	// Bypass prefixes skip the gate, as do paths ending in one of
	// BypassExtensions.
	Bypass           []string
	BypassExtensions []string

	LoginPath string
	HomePath  string
}

// DefaultPolicy returns the stock route policy.
func DefaultPolicy() Policy {
	return Policy{
		Protected:        []string{"/protected"},
		AuthOnly:         []string{"/login", "/signup", "/forgot-password", "/reset-password"},
		Bypass:           []string{"/api", "/static", "/favicon.ico", "/metrics", "/healthz"},
		BypassExtensions: []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico"},
		LoginPath:        "/login",
		HomePath:         "/",
	}
}

// Classify returns the class of p. Bypass wins, then AuthOnly, then
// Protected.
func (p Policy) Classify(reqPath string) RouteClass {
	switch {
	case p.bypassed(reqPath):
		return RouteBypass
	case matchAny(reqPath, p.AuthOnly):
		return RouteAuthOnly
	case matchAny(reqPath, p.Protected):
		return RouteProtected
	default:
		return RouteOpen
	}
}

func (p Policy) bypassed(reqPath string) bool {
	if matchAny(reqPath, p.Bypass) {
		return true
	}
	ext := strings.ToLower(path.Ext(reqPath))
	if ext == "" {
		return false
	}
	for _, e := range p.BypassExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func matchAny(reqPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchPrefix(reqPath, prefix) {
			return true
		}
	}
	return false
}

// matchPrefix matches whole path segments: "/login" matches "/login" and
// "/login/x" but not "/loginx".
func matchPrefix(reqPath, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if reqPath == prefix {
		return true
	}
	return strings.HasPrefix(reqPath, prefix+"/")
}
