package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// JobsConfig controls the scheduled jobs. It is hot reloaded from jobs.yml.
type JobsConfig struct {
	LowStock  LowStockJobConfig  `mapstructure:"lowStock"`
	Heartbeat HeartbeatJobConfig `mapstructure:"heartbeat"`
	Reminders ReminderJobConfig  `mapstructure:"reminders"`
}

type LowStockJobConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	Threshold     int           `mapstructure:"threshold"`
	RestockAmount int           `mapstructure:"restockAmount"`
	LogPath       string        `mapstructure:"logPath"`
}

type HeartbeatJobConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	ProbeURL string        `mapstructure:"probeURL"`
	LogPath  string        `mapstructure:"logPath"`
}

type ReminderJobConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
	LogPath  string        `mapstructure:"logPath"`
}

func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		LowStock: LowStockJobConfig{
			Enabled:       true,
			Interval:      12 * time.Hour,
			Threshold:     10,
			RestockAmount: 10,
			LogPath:       "/tmp/low_stock_updates_log.txt",
		},
		Heartbeat: HeartbeatJobConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
			ProbeURL: "http://localhost:8080/health",
			LogPath:  "/tmp/crm_heartbeat_log.txt",
		},
		Reminders: ReminderJobConfig{
			Enabled:  true,
			Interval: 24 * time.Hour,
			Lookback: 7 * 24 * time.Hour,
			LogPath:  "/tmp/order_reminders_log.txt",
		},
	}
}

type JobsConfigHolder struct {
	current atomic.Value // holds JobsConfig
}

// NewStaticJobsConfigHolder returns a holder that never reloads.
func NewStaticJobsConfigHolder(cfg JobsConfig) *JobsConfigHolder {
	holder := &JobsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewJobsConfigHolder(log *zap.Logger) (*JobsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("jobs")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/crm")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultJobsConfig()
	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}
	if found {
		if err := v.UnmarshalKey("jobs", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateJobsConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticJobsConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	log = log.Named("config.jobs")
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultJobsConfig()
		if err := v.UnmarshalKey("jobs", &updated); err != nil {
			log.Warn("jobs config reload failed", zap.Error(err))
			return
		}
		if err := validateJobsConfig(updated); err != nil {
			log.Warn("invalid jobs config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("jobs config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *JobsConfigHolder) Get() JobsConfig {
	return h.current.Load().(JobsConfig)
}

func validateJobsConfig(cfg JobsConfig) error {
	if cfg.LowStock.Threshold <= 0 {
		return errors.New("jobs.lowStock.threshold must be positive")
	}
	if cfg.LowStock.RestockAmount <= 0 {
		return errors.New("jobs.lowStock.restockAmount must be positive")
	}
	if cfg.LowStock.Interval <= 0 || cfg.Heartbeat.Interval <= 0 || cfg.Reminders.Interval <= 0 {
		return errors.New("jobs intervals must be positive")
	}
	if cfg.Reminders.Lookback <= 0 {
		return errors.New("jobs.reminders.lookback must be positive")
	}
	return nil
}
