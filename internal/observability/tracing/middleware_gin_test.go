package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]string {
	out := make(map[attribute.Key]string, len(attrs))
	for _, attr := range attrs {
		out[attr.Key] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsCRMResource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/customers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/jobs/:name/run", func(c *gin.Context) {
		_ = c.Error(errors.New("lease lost for low_stock_replenish"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/customers/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/jobs/low_stock_replenish/run", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	customer := spans[0]
	assert.Equal(t, "HTTP GET /api/customers/:id", customer.Name())
	attrs := attrMap(customer.Attributes())
	assert.Equal(t, "customers", attrs["crm.resource"])
	assert.Equal(t, "42", attrs["crm.entity_id"])
	assert.Equal(t, "200", attrs["http.status_code"])
	assert.Equal(t, codes.Unset, customer.Status().Code)

	job := spans[1]
	assert.Equal(t, "HTTP POST /api/jobs/:name/run", job.Name())
	attrs = attrMap(job.Attributes())
	assert.Equal(t, "jobs", attrs["crm.resource"])
	assert.Equal(t, "low_stock_replenish", attrs["crm.job"])
	assert.Equal(t, codes.Error, job.Status().Code)
	require.Len(t, job.Events(), 1)
	for _, attr := range job.Events()[0].Attributes {
		assert.NotContains(t, attr.Value.Emit(), "lease lost")
	}
}

func TestGinMiddlewareNamesUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET unmatched", spans[0].Name())
}
