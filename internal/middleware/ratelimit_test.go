package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitRouter(t *testing.T, maxPerWindow int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := config.RateLimitRuntimeConfig{Enable: true, Max: maxPerWindow, Window: time.Minute}

	r := gin.New()
	r.Use(RateLimit(rdb, cfg, nil))
	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "pong"})
	})
	return r, mr
}

func pingWith(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitThrottlesAnonymousTraffic(t *testing.T) {
	r, _ := newRateLimitRouter(t, 2)

	assert.Equal(t, http.StatusOK, pingWith(r, "").Code)
	assert.Equal(t, http.StatusOK, pingWith(r, "").Code)

	w := pingWith(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "too many requests")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimitBypassesAuthenticatedTraffic(t *testing.T) {
	r, _ := newRateLimitRouter(t, 1)

	token := "Bearer " + signedToken(t, "user-1")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, pingWith(r, token).Code)
	}

	// An invalid token does not count as authenticated.
	assert.Equal(t, http.StatusOK, pingWith(r, "Bearer garbage").Code)
	assert.Equal(t, http.StatusTooManyRequests, pingWith(r, "Bearer garbage").Code)
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	r, mr := newRateLimitRouter(t, 1)
	mr.Close()

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusOK, pingWith(r, "").Code)
	}
}

func TestRateLimitKeysOnClientIP(t *testing.T) {
	r, _ := newRateLimitRouter(t, 1)

	ping := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, ping("198.51.100.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, ping("198.51.100.1:4001"))

	// Another address has its own counter.
	assert.Equal(t, http.StatusOK, ping("198.51.100.2:4000"))
}
