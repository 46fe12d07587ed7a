package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type observed struct {
	handler string
	status  int
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []observed
}

func (f *fakeObserver) ObserveRequest(handler string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, observed{handler: handler, status: status})
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	log, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/v1/orders", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/orders/abc", nil),
		httptest.NewRequest(http.MethodPost, "/v1/orders", nil),
		httptest.NewRequest(http.MethodGet, "/boom", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "/v1/orders/:id", entries[0].Data["route"])
	assert.Equal(t, "/v1/orders/abc", entries[0].Data["path"])
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
	assert.Equal(t, logrus.ErrorLevel, entries[2].Level)
	assert.Equal(t, http.StatusInternalServerError, entries[2].Data["status"])
}

func TestRequestMetrics_UsesRouteTemplate(t *testing.T) {
	obs := &fakeObserver{}

	r := gin.New()
	r.Use(RequestMetrics(obs))
	r.GET("/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/orders/o-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, obs.calls, 2)
	assert.Equal(t, observed{handler: "/v1/orders/:id", status: http.StatusOK}, obs.calls[0])
	assert.Equal(t, observed{handler: "unmatched", status: http.StatusNotFound}, obs.calls[1])
}

func TestIdempotencyMiddleware_NoClientPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyMiddleware(nil))
	calls := 0
	r.POST("/v1/orders", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
		req.Header.Set(idempotencyHeader, "k-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyCacheKey_ScopedByRoute(t *testing.T) {
	a := idempotencyCacheKey(http.MethodPost, "/v1/orders", "k")
	b := idempotencyCacheKey(http.MethodPost, "/v1/orders/o-1/sessions", "k")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "idempotency:POST:/v1/orders:k", a)
}
