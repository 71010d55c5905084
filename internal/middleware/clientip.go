package middleware

import (
	"net"
	"net/http"
	"strings"
)

// DefaultClientIP is used when no address can be determined.
const DefaultClientIP = "127.0.0.1"

// ClientIP extracts the client address. Order: first X-Forwarded-For entry,
// X-Real-IP, CF-Connecting-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return DefaultClientIP
}

// RemoteIP returns the host part of r.RemoteAddr, which chimiddleware.RealIP
// rewrites when mounted in front. Unlike ClientIP it never reads request
// headers itself, so a client cannot pick its own key.
func RemoteIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return DefaultClientIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
