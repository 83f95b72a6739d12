package config

import (
	"path/filepath"
	"time"

	"github.com/ankisyncd/ankisyncd-go/internal/bytesize"
)

// Media zip validation bounds (ankisyncd/sync_app.py _check_zip_data).
const (
	defaultMediaMaxMeta  = bytesize.ByteSize(100_000)
	defaultMediaMaxTotal = bytesize.ByteSize(100 * 1024 * 1024)
)

// Worker pool inactivity monitor defaults (ankisyncd/thread.py).
const (
	defaultMonitorFrequency  = 15 * time.Second
	defaultMonitorInactivity = 90 * time.Second
)

func defaultConfig() *Config {
	dataRoot := filepath.Join(getConfigDir(), "data")
	return &Config{
		Host:              "0.0.0.0",
		Port:              27701,
		BaseURL:           "sync/",
		BaseMediaURL:      "msync/",
		DataRoot:          dataRoot,
		SessionManager:    "memory",
		UserManager:       "sqlite",
		FullSyncManager:   "default",
		MediaMaxMeta:      defaultMediaMaxMeta,
		MediaMaxTotal:     defaultMediaMaxTotal,
		MonitorFrequency:  defaultMonitorFrequency,
		MonitorInactivity: defaultMonitorInactivity,
		Database: DatabaseConfig{
			SQLitePath: filepath.Join(getConfigDir(), "ankisyncd.db"),
			SSLMode:    "disable",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}
