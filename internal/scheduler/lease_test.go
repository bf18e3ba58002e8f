package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLeaseHoldsKeyUntilRelease(t *testing.T) {
	lease := NewLocalLease()
	ctx := context.Background()

	token, err := lease.Acquire(ctx, "crm:scheduler:lease:heartbeat", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := lease.Acquire(ctx, "crm:scheduler:lease:heartbeat", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	other, err := lease.Acquire(ctx, "crm:scheduler:lease:order_reminders", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, other)

	// a stale token does not free the key
	require.NoError(t, lease.Release(ctx, "crm:scheduler:lease:heartbeat", "stale"))
	again, err = lease.Acquire(ctx, "crm:scheduler:lease:heartbeat", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, lease.Release(ctx, "crm:scheduler:lease:heartbeat", token))
	again, err = lease.Acquire(ctx, "crm:scheduler:lease:heartbeat", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, again)
}

func TestLocalLeaseExpires(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	lease := NewLocalLease()
	lease.now = func() time.Time { return now }
	ctx := context.Background()

	token, err := lease.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	now = now.Add(time.Minute)
	next, err := lease.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, next)
	assert.NotEqual(t, token, next)

	_, err = lease.Acquire(ctx, "", time.Minute)
	assert.Error(t, err)
	_, err = lease.Acquire(ctx, "job", 0)
	assert.Error(t, err)
}

func TestManualRunDefersWhileScheduledRunHoldsLease(t *testing.T) {
	lease := NewLocalLease()
	f := setupScheduler(t, testJobsConfig(), func(p *Params) { p.Lease = lease })
	ctx := context.Background()

	token, err := lease.Acquire(ctx, DefaultConfig().LeasePrefix+JobLowStockReplenish, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	run, err := f.sched.RunJob(ctx, JobLowStockReplenish, "")
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Nil(t, run)

	require.NoError(t, lease.Release(ctx, DefaultConfig().LeasePrefix+JobLowStockReplenish, token))
	run, err = f.sched.RunJob(ctx, JobLowStockReplenish, "")
	require.NoError(t, err)
	require.NotNil(t, run)
}
