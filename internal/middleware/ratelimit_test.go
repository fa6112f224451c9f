package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_MemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mw, err := NewRateLimiter(RateLimitConfig{
		Rate:      "2-M",
		StoreType: RateLimitStoreMemory,
	})
	require.NoError(t, err)

	r := gin.New()
	r.POST("/session/refresh", mw, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/session/refresh", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestNewRateLimiter_InvalidRate(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{
		Rate:      "not-a-rate",
		StoreType: RateLimitStoreMemory,
	})
	assert.Error(t, err)
}

func TestNewRateLimiter_RedisWithoutClient(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{
		Rate:      "10-M",
		StoreType: RateLimitStoreRedis,
	})
	assert.Error(t, err)
}
