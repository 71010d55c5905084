package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const gameOrigin = "https://play.catclicker.example"

func serveCORS(origins []string, method, path, origin string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORS_GameFrontend(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		path       string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"leaderboard read from the game", []string{gameOrigin}, http.MethodGet, "/api/countries/top", gameOrigin, http.StatusOK, gameOrigin},
		{"click batch preflight from the game", []string{gameOrigin}, http.MethodOptions, "/api/clicks", gameOrigin, http.StatusNoContent, gameOrigin},
		{"click batch preflight from a clone site", []string{gameOrigin}, http.MethodOptions, "/api/clicks", "https://clicker-clone.example", http.StatusForbidden, ""},
		{"clone site read gets no grant", []string{gameOrigin}, http.MethodGet, "/api/countries/top", "https://clicker-clone.example", http.StatusOK, ""},
		{"no configured origins grants nothing", nil, http.MethodGet, "/api/session", gameOrigin, http.StatusOK, ""},
		{"origin compared without case", []string{"HTTPS://PLAY.CATCLICKER.EXAMPLE"}, http.MethodGet, "/api/country-info", gameOrigin, http.StatusOK, gameOrigin},
		{"embedding anywhere with star", []string{"*"}, http.MethodGet, "/api/countries/CZ", "https://fan-page.example", http.StatusOK, "https://fan-page.example"},
		{"regional subdomain", []string{"*.catclicker.example"}, http.MethodGet, "/api/countries/top", "https://cz.catclicker.example", http.StatusOK, "https://cz.catclicker.example"},
		{"lookalike domain is not a subdomain", []string{"*.catclicker.example"}, http.MethodGet, "/api/countries/top", "https://evilcatclicker.example", http.StatusOK, ""},
		{"bare pattern domain is not a subdomain", []string{"*.catclicker.example"}, http.MethodGet, "/api/countries/top", "https://.catclicker.example", http.StatusOK, ""},
		{"same-origin stats call", []string{gameOrigin}, http.MethodGet, "/api/users/s1/stats", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.origins, tt.method, tt.path, tt.origin)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORS_ClickPreflightHeaders(t *testing.T) {
	rec := serveCORS([]string{gameOrigin}, http.MethodOptions, "/api/clicks", gameOrigin)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Errorf("expected Content-Type allowed for JSON batches, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORS_ExposesRateLimitHeaders(t *testing.T) {
	rec := serveCORS([]string{gameOrigin}, http.MethodPost, "/api/clicks", gameOrigin)

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Retry-After", "X-RateLimit-Remaining"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("expected %s exposed so the game can back off, got %q", h, exposed)
		}
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("expected no credentials grant for the public API")
	}
}
