package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/policykeeper/policykeeper/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/v1/policies", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestBasicAuth(t *testing.T) {
	check := func(_ context.Context, username, password string) bool {
		return username == "admin" && password == "admin123"
	}
	mw := BasicAuth(check)(okHandler())

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/policies", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing credentials: got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}

	req := httptest.NewRequest("GET", "/v1/policies", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/v1/policies", nil)
	req.SetBasicAuth("admin", "admin123")
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid credentials: got %d", rec.Code)
	}
}

func TestAdminSecret(t *testing.T) {
	mw := AdminSecret("s3cret")(okHandler())

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/admin/reset", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing secret: got %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/v1/admin/reset", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid secret: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	AdminSecret("")(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unset secret must refuse: got %d", rec.Code)
	}
}

func TestRedisRateLimitRPM(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	mgr, err := ratelimit.NewManager("redis://"+s.Addr(), 5)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	mw := RedisRateLimit(mgr)(okHandler())
	req := httptest.NewRequest("GET", "/v1/policies", nil)
	req.RemoteAddr = "10.0.0.1:54321"

	var last int
	for i := 0; i < 7; i++ {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding rpm, got %d", last)
	}

	// A different client has its own window.
	other := httptest.NewRequest("GET", "/v1/policies", nil)
	other.RemoteAddr = "10.0.0.2:54321"
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fresh client to pass, got %d", rec.Code)
	}

	// Window reset clears the bucket.
	s.FastForward(time.Minute)
	s.FlushAll()
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", rec.Code)
	}
}

func TestRedisRateLimitNilManagerPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	RedisRateLimit(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/v1/policies", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil manager must pass through, got %d", rec.Code)
	}
}
