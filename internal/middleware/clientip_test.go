package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 198.51.100.4 "}, "10.0.0.2:1234", "198.51.100.4"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.1"}, "", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.1"}, "10.0.0.2:1234", "198.51.100.1"},
		{"real ip wins over cloudflare", map[string]string{"X-Real-IP": "198.51.100.1", "CF-Connecting-IP": "192.0.2.9"}, "", "198.51.100.1"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "192.0.2.9"}, "10.0.0.2:1234", "192.0.2.9"},
		{"remote addr with port", nil, "192.0.2.33:5555", "192.0.2.33"},
		{"remote addr ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "192.0.2.34", "192.0.2.34"},
		{"nothing", nil, "", DefaultClientIP},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/api/country-info", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"with port", "192.0.2.33:5555", "192.0.2.33"},
		{"ipv6", "[2001:db8::1]:443", "2001:db8::1"},
		{"rewritten by RealIP", "198.51.100.4", "198.51.100.4"},
		{"empty", "", DefaultClientIP},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("POST", "/api/clicks", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "203.0.113.99")

			if got := RemoteIP(req); got != tt.want {
				t.Errorf("RemoteIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
