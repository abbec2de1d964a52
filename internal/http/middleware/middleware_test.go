package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func csrfRouter(origins ...string) *gin.Engine {
	r := gin.New()
	r.Use(CSRF(CSRFConfig{AllowedOrigins: origins}))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/x", ok)
	r.POST("/x", ok)
	return r
}

func TestCSRF(t *testing.T) {
	r := csrfRouter("https://app.example.com/")

	cases := []struct {
		name    string
		method  string
		headers map[string]string
		want    int
	}{
		{"safe method", http.MethodGet, nil, http.StatusOK},
		{"allowed origin", http.MethodPost, map[string]string{"Origin": "https://APP.example.com"}, http.StatusOK},
		{"foreign origin", http.MethodPost, map[string]string{"Origin": "https://evil.example.com"}, http.StatusForbidden},
		{"allowed referer", http.MethodPost, map[string]string{"Referer": "https://app.example.com/login?next=/"}, http.StatusOK},
		{"foreign referer", http.MethodPost, map[string]string{"Referer": "https://evil.example.com/page"}, http.StatusForbidden},
		{"missing headers", http.MethodPost, nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/x", nil)
		for k, v := range tc.headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestCSRF_DisabledWithoutOrigins(t *testing.T) {
	r := csrfRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through when no origins configured, got %d", w.Code)
	}
}

func TestStoreTimeout_SetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(StoreTimeout(time.Second))
	var hasDeadline bool
	r.GET("/x", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !hasDeadline {
		t.Fatalf("expected request context deadline")
	}

	r = gin.New()
	r.Use(StoreTimeout(0))
	r.GET("/x", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if hasDeadline {
		t.Fatalf("expected no deadline when timeout disabled")
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	manager := ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsConfig{Limit: 2}), func() time.Time { return now }, nil)

	r := gin.New()
	r.Use(RateLimit(manager))
	r.POST("/api/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/signup", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("/api/login", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != "1700000001" {
		t.Fatalf("expected reset at next window, got %q", got)
	}
	if code := do("/api/login", "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("expected other client unaffected, got %d", code)
	}
	if code := do("/api/signup", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected other route unaffected, got %d", code)
	}

	now = now.Add(time.Second)
	if code := do("/api/login", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected next window to allow, got %d", code)
	}
}

func TestRateLimit_NilManager(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}
