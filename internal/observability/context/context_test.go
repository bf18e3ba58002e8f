package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(WithRequestID(context.Background(), "  ")))
}

func TestJobRunFromContext(t *testing.T) {
	job, run := JobRunFromContext(context.Background())
	assert.Empty(t, job)
	assert.Empty(t, run)

	job, run = JobRunFromContext(WithJobRun(context.Background(), "heartbeat", "01J"))
	assert.Equal(t, "heartbeat", job)
	assert.Equal(t, "01J", run)
}

func TestResourceFromRoute(t *testing.T) {
	assert.Equal(t, "customers", ResourceFromRoute("/api/customers/:id"))
	assert.Equal(t, "orders", ResourceFromRoute("/api/orders"))
	assert.Equal(t, "jobs", ResourceFromRoute("/api/jobs/:name/run"))
	assert.Empty(t, ResourceFromRoute("/health"))
	assert.Empty(t, ResourceFromRoute("unknown"))
}
