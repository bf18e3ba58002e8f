package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/crm/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "crm/http"

// GinMiddleware opens a server span per request. The span is named after the
// route template, and carries the CRM resource plus the entity id or job name
// taken from the path.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(httpTracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			span.SetName("HTTP " + method + " unmatched")
			span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
			return
		}

		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(routeAttributes(c, route)...)

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
	}
}

func routeAttributes(c *gin.Context, route string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", c.Writer.Status()),
	}
	if resource := obscontext.ResourceFromRoute(route); resource != "" {
		attrs = append(attrs, attribute.String("crm.resource", resource))
	}
	if id := strings.TrimSpace(c.Param("id")); id != "" {
		attrs = append(attrs, attribute.String("crm.entity_id", id))
	}
	if job := strings.TrimSpace(c.Param("name")); job != "" {
		attrs = append(attrs, attribute.String("crm.job", job))
	}
	return SafeAttributes(attrs...)
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
