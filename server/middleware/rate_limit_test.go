package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	if !rl.Allow("client-a") {
		t.Error("first request within burst should be allowed")
	}
	if !rl.Allow("client-a") {
		t.Error("second request within burst should be allowed")
	}
	if rl.Allow("client-a") {
		t.Error("request over burst should be rejected")
	}

	// Keys are independent limiters.
	if !rl.Allow("client-b") {
		t.Error("different client should have its own budget")
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 20; i++ {
		if !rl.Allow("client") {
			t.Fatalf("request %d within default burst should be allowed", i)
		}
	}
	if rl.Allow("client") {
		t.Error("request over default burst should be rejected")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	handler := NewRateLimiter(1, 1).Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/insights/query", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		return rec.Code
	}

	if got := do(); got != http.StatusOK {
		t.Errorf("first request status = %d, want %d", got, http.StatusOK)
	}
	if got := do(); got != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", got, http.StatusTooManyRequests)
	}
}
