// Package context carries request-scoped correlation values.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type jobRunKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithJobRun tags scheduler work with its job name and run id.
func WithJobRun(ctx context.Context, job, runID string) context.Context {
	return context.WithValue(ctx, jobRunKey{}, [2]string{job, runID})
}

func JobRunFromContext(ctx context.Context) (job string, runID string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(jobRunKey{}).([2]string)
	if !ok {
		return "", ""
	}
	return value[0], value[1]
}

// ResourceFromRoute returns the collection a route serves, "customers" for
// "/api/customers/:id". Routes outside /api have no resource.
func ResourceFromRoute(route string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(route), "/api/")
	if !ok {
		return ""
	}
	resource, _, _ := strings.Cut(rest, "/")
	return resource
}
