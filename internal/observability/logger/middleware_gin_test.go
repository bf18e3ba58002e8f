package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func captureGlobal(t *testing.T, level zap.AtomicLevel) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGinMiddlewareLogsKeysNotValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := captureGlobal(t, zap.NewAtomicLevelAt(zap.DebugLevel))

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/api/customers", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/customers?email=alice@example.com&name=Alice", nil)
	req.Header.Set("X-Request-Id", "req-7")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-7", w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "customers", fields["resource"])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, []interface{}{"email", "name"}, fields["query_keys"])
	for _, value := range fields {
		if s, ok := value.(string); ok {
			assert.NotContains(t, s, "alice@example.com")
		}
	}
}

func TestGinMiddlewareLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := captureGlobal(t, zap.NewAtomicLevelAt(zap.DebugLevel))

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(err error) (string, string) { return "validation_error", "invalid_email" },
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/orders/:id/products", func(c *gin.Context) {
		_ = c.Error(errors.New("bad product id"))
		c.Status(http.StatusBadRequest)
	})
	r.POST("/api/jobs/:name/run", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/orders/9/products", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/jobs/heartbeat/run", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)

	assert.Equal(t, zap.DebugLevel, entries[1].Level)
	order := entries[1].ContextMap()
	assert.Equal(t, "9", order["entity_id"])
	assert.Equal(t, "invalid_email", order["error_code"])

	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "heartbeat", entries[2].ContextMap()["job"])
}
