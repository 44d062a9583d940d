package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
)

func hitN(t *testing.T, h http.Handler, n int, ip string) []int {
	t.Helper()
	codes := make([]int, 0, n)
	for range n {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}

func limited(store limiter.Store) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return RateLimit(RateLimitConfig{RequestsPerPeriod: 2, Store: store})(ok)
}

func TestRateLimit_MemoryStore(t *testing.T) {
	h := limited(NewMemoryStore())
	require.Equal(t, []int{200, 200, 429}, hitN(t, h, 3, "10.0.0.1"))
	require.Equal(t, []int{200}, hitN(t, h, 1, "10.0.0.2"))
}

func TestRateLimit_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)

	h := limited(store)
	require.Equal(t, []int{200, 200, 429}, hitN(t, h, 3, "10.0.0.1"))
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore("redis://" + addr)
	require.Error(t, err)
}
