package utils

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta describes the client that issued a request. It is attached to
// admin activity notifications.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func RequestMetaFrom(r *http.Request) RequestMeta {
	return RequestMeta{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP prefers the first X-Forwarded-For hop and falls back to the
// connection address.
func ClientIP(r *http.Request) string {
	raw := ""
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		raw = strings.Split(forwarded, ",")[0]
	}
	if strings.TrimSpace(raw) == "" {
		raw = r.RemoteAddr
		if host, _, err := net.SplitHostPort(raw); err == nil {
			raw = host
		}
	}
	return NormalizeIP(raw)
}

// NormalizeIP strips IPv4-mapped prefixes and maps the IPv6 loopback to
// 127.0.0.1.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	if ip == "::1" {
		return "127.0.0.1"
	}
	return strings.TrimPrefix(ip, "::ffff:")
}
