package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	const admin = "https://admin.live-links.example"

	tests := []struct {
		name        string
		allowed     []string
		method      string
		path        string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantHeaders string
		wantVary    bool
	}{
		{
			name:        "configured admin origin",
			allowed:     []string{" " + admin + " "},
			method:      http.MethodGet,
			path:        "/v1/scraped-links",
			origin:      admin,
			wantStatus:  http.StatusOK,
			wantOrigin:  admin,
			wantHeaders: "Authorization,Content-Type,Accept,Range",
			wantVary:    true,
		},
		{
			name:        "player preflight on the relay",
			allowed:     []string{"*"},
			method:      http.MethodOptions,
			path:        "/proxy",
			origin:      "https://player.example",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "*",
			wantHeaders: "Authorization,Content-Type,Accept,Range",
		},
		{
			name:       "unknown origin gets no grant",
			allowed:    []string{admin},
			method:     http.MethodPost,
			path:       "/v1/scan",
			origin:     "https://elsewhere.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "request without origin passes through",
			allowed:    []string{admin},
			method:     http.MethodGet,
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed, next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, tt.wantVary, rec.Header().Get("Vary") == "Origin")
			assert.Equal(t, tt.method != http.MethodOptions, reached, "preflight must not reach the handler")
		})
	}
}
