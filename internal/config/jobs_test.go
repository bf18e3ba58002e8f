package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultJobsConfigIsValid(t *testing.T) {
	cfg := DefaultJobsConfig()
	require.NoError(t, validateJobsConfig(cfg))
	assert.Equal(t, 10, cfg.LowStock.Threshold)
	assert.Equal(t, 10, cfg.LowStock.RestockAmount)
	assert.Equal(t, 5*time.Minute, cfg.Heartbeat.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.Reminders.Lookback)
}

func TestValidateJobsConfigRejectsNonPositiveValues(t *testing.T) {
	cfg := DefaultJobsConfig()
	cfg.LowStock.RestockAmount = 0
	assert.Error(t, validateJobsConfig(cfg))

	cfg = DefaultJobsConfig()
	cfg.Heartbeat.Interval = 0
	assert.Error(t, validateJobsConfig(cfg))
}

func TestNewJobsConfigHolderFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewJobsConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultJobsConfig(), holder.Get())
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("CRM_TEST_FLAG", "yes")
	assert.True(t, getenvBool("CRM_TEST_FLAG", false))
	t.Setenv("CRM_TEST_FLAG", "garbage")
	assert.True(t, getenvBool("CRM_TEST_FLAG", true))
}
