package sessionauth

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// SecureCookiePolicy decides the Secure flag and Domain of cookies the
// gate writes. Behind a TLS-terminating proxy the request arrives over
// plain HTTP, so forwarded headers are honored from trusted proxies only.
type SecureCookiePolicy struct {
	// Domain, when set, is applied to every cookie.
	Domain string

	trusted *proxyMatcher
}

// NewSecureCookiePolicy builds a policy. trustedProxies holds IPs and
// CIDRs; invalid entries are logged and skipped.
func NewSecureCookiePolicy(domain string, trustedProxies []string, logger *slog.Logger) *SecureCookiePolicy {
	return &SecureCookiePolicy{
		Domain:  domain,
		trusted: newProxyMatcher(trustedProxies, logger),
	}
}

// ApplyCookiePolicy implements CookiePolicy.
func (p *SecureCookiePolicy) ApplyCookiePolicy(r *http.Request, cookie *http.Cookie) (*http.Cookie, error) {
	out := *cookie
	out.Secure = p.IsRequestSecure(r)
	if p.Domain != "" {
		out.Domain = p.Domain
	}
	return &out, nil
}

// IsRequestSecure reports whether r reached us over HTTPS.
func (p *SecureCookiePolicy) IsRequestSecure(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if !p.trusted.IsTrusted(remoteIPFromRequest(r)) {
		return false
	}

	if proto := forwardedProto(r.Header.Get("Forwarded")); proto != "" {
		return isSecureProto(proto)
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return isSecureProto(proto)
	}
	return false
}

func forwardedProto(header string) string {
	first := firstHeaderValue(header)
	if first == "" {
		return ""
	}
	for _, param := range strings.Split(first, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "proto") {
			return strings.ToLower(strings.Trim(strings.TrimSpace(value), "\""))
		}
	}
	return ""
}

func firstHeaderValue(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.ToLower(strings.Trim(strings.TrimSpace(first), "\""))
}

func isSecureProto(proto string) bool {
	return proto == "https" || proto == "wss"
}

func remoteIPFromRequest(r *http.Request) net.IP {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return nil
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	return net.ParseIP(host)
}

type proxyMatcher struct {
	ips  map[string]struct{}
	nets []*net.IPNet
}

func newProxyMatcher(entries []string, logger *slog.Logger) *proxyMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &proxyMatcher{ips: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn("invalid trusted proxy CIDR", "entry", entry, "error", err)
				continue
			}
			m.nets = append(m.nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.Warn("invalid trusted proxy IP", "entry", entry)
			continue
		}
		m.ips[ip.String()] = struct{}{}
	}
	if len(m.ips) == 0 && len(m.nets) == 0 {
		return nil
	}
	return m
}

func (m *proxyMatcher) IsTrusted(ip net.IP) bool {
	if m == nil || ip == nil {
		return false
	}
	if _, ok := m.ips[ip.String()]; ok {
		return true
	}
	for _, network := range m.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
