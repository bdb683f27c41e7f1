package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const testAdminKey = "test-secret-key-12345"

// mockHandler is a simple handler that records if it was called
func mockHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}), &called
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var logBuf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logBuf, nil)))
	t.Cleanup(func() { slog.SetDefault(oldLogger) })
	return &logBuf
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		adminKey string
		headers  map[string]string
		wantCall bool
	}{
		{"bearer token", testAdminKey, map[string]string{"Authorization": "Bearer " + testAdminKey}, true},
		{"x-api-key header", testAdminKey, map[string]string{"X-API-Key": testAdminKey}, true},
		{"x-api-key wins over bad bearer", testAdminKey, map[string]string{"X-API-Key": testAdminKey, "Authorization": "Bearer nope"}, true},
		{"missing header", testAdminKey, nil, false},
		{"wrong token", testAdminKey, map[string]string{"Authorization": "Bearer wrong-token"}, false},
		{"wrong x-api-key", testAdminKey, map[string]string{"X-API-Key": "wrong-token"}, false},
		{"no bearer prefix", testAdminKey, map[string]string{"Authorization": testAdminKey}, false},
		{"empty bearer", testAdminKey, map[string]string{"Authorization": "Bearer "}, false},
		{"unconfigured key rejects empty header", "", nil, false},
		{"unconfigured key rejects empty bearer", "", map[string]string{"Authorization": "Bearer "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, called := mockHandler()
			mw := AuthMiddleware(tt.adminKey)(handler)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/backup", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			mw.ServeHTTP(w, req)

			if *called != tt.wantCall {
				t.Errorf("handler called = %v, want %v", *called, tt.wantCall)
			}
			wantStatus := http.StatusOK
			if !tt.wantCall {
				wantStatus = http.StatusUnauthorized
			}
			if w.Code != wantStatus {
				t.Errorf("status = %d, want %d", w.Code, wantStatus)
			}
		})
	}
}

func TestAuthMiddleware_ResponseFormat_RFC7807(t *testing.T) {
	handler, _ := mockHandler()
	mw := AuthMiddleware(testAdminKey)(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/import", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()

	mw.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal response as RFC 7807: %v", err)
	}
	if p.Type != "https://wortschatz.dev/errors/unauthorized" {
		t.Errorf("type = %v, want https://wortschatz.dev/errors/unauthorized", p.Type)
	}
	if p.Instance != "/api/v1/admin/import" {
		t.Errorf("instance = %v, want /api/v1/admin/import", p.Instance)
	}
}

func TestAuthMiddleware_NoKeyLeak(t *testing.T) {
	logBuf := captureLogs(t)
	handler, _ := mockHandler()
	mw := AuthMiddleware(testAdminKey)(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/backup", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()

	mw.ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), testAdminKey) {
		t.Error("response body contains the expected admin key - security violation!")
	}
	if strings.Contains(logBuf.String(), testAdminKey) {
		t.Error("log output contains the expected admin key - security violation!")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		auth     string
		expected string
	}{
		{"valid bearer", "", "Bearer abc123", "abc123"},
		{"x-api-key", "abc123", "", "abc123"},
		{"x-api-key trimmed", "  abc123 ", "", "abc123"},
		{"x-api-key preferred", "abc123", "Bearer xyz789", "abc123"},
		{"missing headers", "", "", ""},
		{"no bearer prefix", "", "abc123", ""},
		{"empty after bearer", "", "Bearer ", ""},
		{"whitespace after bearer", "", "Bearer    ", ""},
		{"lowercase bearer", "", "bearer abc123", ""},
		{"basic auth", "", "Basic abc123", ""},
		{"token with spaces trimmed", "", "Bearer  abc123 ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}

			if got := extractAPIKey(req); got != tt.expected {
				t.Errorf("extractAPIKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected bool
	}{
		{"equal strings", "abc123", "abc123", true},
		{"different strings", "abc123", "xyz789", false},
		{"different lengths", "abc", "abcdef", false},
		{"empty strings", "", "", true},
		{"one empty", "abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := constantTimeEqual(tt.a, tt.b); got != tt.expected {
				t.Errorf("constantTimeEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestLoggingMiddleware_NoAuthHeaderLeak(t *testing.T) {
	logBuf := captureLogs(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	req.Header.Set("X-API-Key", testAdminKey)
	w := httptest.NewRecorder()

	LoggingMiddleware(inner).ServeHTTP(w, req)

	logOutput := logBuf.String()
	if strings.Contains(logOutput, testAdminKey) {
		t.Error("log output contains the admin key - security violation!")
	}
	if !strings.Contains(logOutput, `"msg":"request"`) {
		t.Errorf("expected request log line, got: %s", logOutput)
	}
}

func TestLoggingMiddleware_RequestIDAndLesson(t *testing.T) {
	logBuf := captureLogs(t)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(LoggingMiddleware)
	router.Get("/vocab/{lesson}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/vocab/lesson03", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not a single JSON line: %v\n%s", err, logBuf.String())
	}
	if entry["request_id"] == nil || entry["request_id"] == "" {
		t.Error("expected request_id in log entry")
	}
	if entry["lesson"] != "lesson03" {
		t.Errorf("lesson = %v, want lesson03", entry["lesson"])
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	logBuf := captureLogs(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	LoggingMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(logBuf.String(), `"level":"ERROR"`) {
		t.Errorf("expected ERROR level for 503, got: %s", logBuf.String())
	}
}

func TestLogLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{200, slog.LevelInfo},
		{201, slog.LevelInfo},
		{204, slog.LevelInfo},
		{304, slog.LevelInfo},
		{400, slog.LevelWarn},
		{401, slog.LevelWarn},
		{409, slog.LevelWarn},
		{422, slog.LevelWarn},
		{500, slog.LevelError},
		{503, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := logLevelForStatus(tt.status); got != tt.want {
				t.Errorf("logLevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestGetRequestID_NoContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if reqID := GetRequestID(req.Context()); reqID != "" {
		t.Errorf("GetRequestID without context = %q, want empty string", reqID)
	}
}

// --- RecoveryMiddleware Tests ---

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	handler, _ := mockHandler()
	w := httptest.NewRecorder()
	RecoveryMiddleware(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lessons", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", w.Body.String(), "OK")
	}
}

func TestRecoveryMiddleware_Panic(t *testing.T) {
	logBuf := captureLogs(t)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	RecoveryMiddleware(panicHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lessons", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal response as RFC 7807: %v", err)
	}
	if p.Type != "https://wortschatz.dev/errors/internal-error" {
		t.Errorf("type = %v, want https://wortschatz.dev/errors/internal-error", p.Type)
	}
	if strings.Contains(w.Body.String(), "something went wrong") {
		t.Error("panic message leaked to client")
	}
	if !strings.Contains(logBuf.String(), "panic recovered") {
		t.Error("expected 'panic recovered' in log output")
	}
}

// --- DeleteRateLimiter Tests ---

func TestDeleteRateLimiter_BurstThenRefill(t *testing.T) {
	// Given: A bucket of 2 with a controllable clock
	now := time.Unix(1_700_000_000, 0)
	l := NewDeleteRateLimiter(2, time.Second)
	l.now = func() time.Time { return now }

	// When/Then: The burst is spent, then refused
	if !l.Allow() || !l.Allow() {
		t.Fatal("expected the first two requests to pass")
	}
	if l.Allow() {
		t.Fatal("expected third request to be refused")
	}

	// When: One refill interval passes
	now = now.Add(time.Second)

	// Then: Exactly one more request passes
	if !l.Allow() {
		t.Error("expected a token after one refill interval")
	}
	if l.Allow() {
		t.Error("expected only one token after one refill interval")
	}
}

func TestDeleteRateLimiter_Middleware429(t *testing.T) {
	l := NewDeleteRateLimiter(1, time.Hour)
	handler, _ := mockHandler()
	mw := l.Middleware(handler)

	w := httptest.NewRecorder()
	mw.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/vocab/lesson01/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	mw.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/vocab/lesson01/1", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
