package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/2389/airway-api/internal/auth"
	"github.com/2389/airway-api/internal/config"
)

func TestRequestID_Generated(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "")
	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36, "expected a uuid, got %q", id)
}

func TestRequestID_Propagated(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "", RequestIDHeader, "req-123")
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = do(t, srv, http.MethodGet, "/health", "", RequestIDHeader, strings.Repeat("x", 200))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "oversized ids are replaced")
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	srv := newTestServerWith(t, testConfig(t), NewMemoryStores(), logger)

	do(t, srv, http.MethodGet, "/todos/7", "", RequestIDHeader, "trace-me")

	var line string
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if gjson.Get(l, "msg").String() == "http request" {
			line = l
		}
	}
	require.NotEmpty(t, line, "no access log line in:\n%s", buf.String())

	assert.Equal(t, "http", gjson.Get(line, "component").String())
	assert.Equal(t, "GET", gjson.Get(line, "method").String())
	assert.Equal(t, "/todos/7", gjson.Get(line, "path").String())
	assert.Equal(t, int64(http.StatusNotFound), gjson.Get(line, "status").Int())
	assert.Equal(t, "trace-me", gjson.Get(line, "request_id").String())
}

func TestCORS_DefaultEchoesOriginWithCredentials(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "ETag")
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodOptions, "/todos/1", "",
		"Origin", "http://example.com",
		"Access-Control-Request-Method", "PATCH",
		"Access-Control-Request-Headers", "Content-Type, Authorization",
	)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_Restricted(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	})

	rec := do(t, srv, http.MethodGet, "/health", "", "Origin", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, srv, http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A preflight from a disallowed origin falls through to the mux
	rec = do(t, srv, http.MethodOptions, "/todos", "",
		"Origin", "https://evil.example.com",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"*"}}
	})

	rec := do(t, srv, http.MethodGet, "/health", "", "Origin", "http://anywhere.test")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthServer(t *testing.T) (*Server, string) {
	t.Helper()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.JWTSecret = testSecret
	})
	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)
	return srv, token
}

func TestAuth_WritesRequireToken(t *testing.T) {
	srv, _ := newAuthServer(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/todos", `{"title":"x"}`},
		{http.MethodPut, "/todos/1", `{"title":"x"}`},
		{http.MethodPatch, "/todos/1", `{"title":"x"}`},
		{http.MethodDelete, "/todos/1", ""},
		{http.MethodPost, "/timeline/milestones", `{"title":"x","due_date":"2025-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, gjson.Get(rec.Body.String(), "detail").String())
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuth_ReadsStayPublic(t *testing.T) {
	srv, _ := newAuthServer(t)

	for _, path := range []string{"/todos", "/timeline/milestones", "/timeline/overview", "/health"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	srv, token := newAuthServer(t)

	rec := do(t, srv, http.MethodPost, "/todos", `{"title":"x"}`, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/todos", `{"title":"x"}`, "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_SubjectInAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg := testConfig(t)
	cfg.Auth.JWTSecret = testSecret
	srv := newTestServerWith(t, cfg, NewMemoryStores(), logger)

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)

	do(t, srv, http.MethodPost, "/todos", `{"title":"x"}`, "Authorization", "Bearer "+token)
	assert.Contains(t, buf.String(), `"subject":"alice"`)
}
