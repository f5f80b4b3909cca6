package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestClientIP_IgnoresHeadersByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "192.168.1.1", clientIP(req, false))
}

func TestClientIP_TrustedProxy_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", clientIP(req, true))
}

func TestClientIP_TrustedProxy_XRealIP_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "9.10.11.12", clientIP(req, true))
}

func TestClientIP_TrustedProxy_XForwardedFor_TakesPrecedenceOverXRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	req.Header.Set("X-Real-Ip", "2.2.2.2")
	assert.Equal(t, "1.1.1.1", clientIP(req, true))
}

func TestClientIP_RemoteAddr_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", clientIP(req, true))
}

func serveFrom(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestLimit_BlocksAfterBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, rate.Limit(0.001), 2, false).Limit(http.HandlerFunc(okHandler))

	codes := []int{
		serveFrom(h, "7.7.7.7:1000", ""),
		serveFrom(h, "7.7.7.7:1001", ""),
		serveFrom(h, "7.7.7.7:1002", ""),
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, serveFrom(h, "8.8.8.8:1000", ""))
}

func TestLimit_RotatingForwardedFor_DoesNotResetBucket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, rate.Limit(0.001), 1, false).Limit(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, serveFrom(h, "7.7.7.7:1000", "1.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "7.7.7.7:1000", "1.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "7.7.7.7:1000", "1.0.0.3"))
}

func TestLimit_TrustedProxy_KeysOnForwardedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, rate.Limit(0.001), 1, true).Limit(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000", "1.0.0.1"))
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000", "1.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.1:1000", "1.0.0.1"))
}

func TestEvict_DropsIdleClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, rate.Limit(1), 1, false)
	rl.get("1.1.1.1")
	rl.limiters["1.1.1.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.get("2.2.2.2")

	rl.evict(10 * time.Minute)
	assert.NotContains(t, rl.limiters, "1.1.1.1")
	assert.Contains(t, rl.limiters, "2.2.2.2")
}

func TestCleanup_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{limiters: make(map[string]*ipLimiter)}
	done := make(chan struct{})
	go func() {
		rl.cleanup(ctx, time.Hour, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not return after cancel")
	}
}
