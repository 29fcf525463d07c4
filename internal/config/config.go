// Package config holds wpg settings. Values come, in increasing precedence,
// from defaults, the nearest .wpgraph/config.yaml, the user config
// directory, WPG_* environment variables and command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ProjectDirName is the per-project directory holding config.yaml and the database.
const ProjectDirName = ".wpgraph"

// Keys understood by wpg.
const (
	KeyBackend        = "backend"
	KeyDB             = "db"
	KeyDSN            = "dsn"
	KeyActor          = "actor"
	KeyRole           = "role"
	KeyWorkflowFile   = "workflow-file"
	KeyWorkflowWatch  = "workflow-watch"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyJSON           = "json"
	KeyMaxParallel    = "propagation.max-parallel"
	KeyConnectTimeout = "connect-timeout"

	KeyOtelEnabled         = "otel.enabled"
	KeyOtelStdout          = "otel.stdout"
	KeyOtelServiceName     = "otel.service-name"
	KeyOtelEndpoint        = "otel.endpoint"
	KeyOtelMetricsEndpoint = "otel.metrics-endpoint"
	KeyOtelMetricInterval  = "otel.metric-interval"
)

var (
	mu sync.RWMutex
	v  *viper.Viper
)

// Initialize sets up the viper singleton. It is safe to call again; each call
// starts from a fresh instance so tests can change the environment in between.
func Initialize() error {
	nv := viper.New()
	nv.SetConfigType("yaml")

	nv.SetDefault(KeyBackend, "sqlite")
	nv.SetDefault(KeyDB, "")
	nv.SetDefault(KeyDSN, "")
	nv.SetDefault(KeyActor, "")
	nv.SetDefault(KeyRole, "member")
	nv.SetDefault(KeyWorkflowFile, "")
	nv.SetDefault(KeyWorkflowWatch, false)
	nv.SetDefault(KeyLogLevel, "warn")
	nv.SetDefault(KeyLogFormat, "console")
	nv.SetDefault(KeyJSON, false)
	nv.SetDefault(KeyMaxParallel, 8)
	nv.SetDefault(KeyConnectTimeout, 10*time.Second)
	nv.SetDefault(KeyOtelEnabled, false)
	nv.SetDefault(KeyOtelStdout, false)
	nv.SetDefault(KeyOtelServiceName, "wpg")
	nv.SetDefault(KeyOtelEndpoint, "")
	nv.SetDefault(KeyOtelMetricsEndpoint, "")
	nv.SetDefault(KeyOtelMetricInterval, 30*time.Second)

	// WPG_WORKFLOW_FILE, WPG_PROPAGATION_MAX_PARALLEL, ...
	nv.SetEnvPrefix("WPG")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()
	// The standard OTel variables work too; the WPG_ spelling wins.
	_ = nv.BindEnv(KeyOtelEndpoint, "WPG_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = nv.BindEnv(KeyOtelMetricsEndpoint, "WPG_OTEL_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")

	if path := findConfigFile(); path != "" {
		nv.SetConfigFile(path)
		if err := nv.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	mu.Lock()
	v = nv
	mu.Unlock()
	return nil
}

// findConfigFile returns the project config walking up from the working
// directory, falling back to the user config directory.
func findConfigFile() string {
	if p, err := FindConfigYAMLPath(); err == nil {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "wpgraph", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindConfigYAMLPath walks up from the working directory to the nearest
// .wpgraph/config.yaml.
func FindConfigYAMLPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		p := filepath.Join(dir, ProjectDirName, "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s/config.yaml found in current directory or parents", ProjectDirName)
}

// ConfigFileUsed returns the config file that was loaded, if any.
func ConfigFileUsed() string {
	return get().ConfigFileUsed()
}

// ResetForTesting drops the singleton so the next access re-initializes.
func ResetForTesting() {
	mu.Lock()
	v = nil
	mu.Unlock()
}

func get() *viper.Viper {
	mu.RLock()
	cur := v
	mu.RUnlock()
	if cur != nil {
		return cur
	}
	if err := Initialize(); err != nil {
		// A broken config file still leaves defaults and env usable.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		mu.Lock()
		if v == nil {
			v = viper.New()
		}
		mu.Unlock()
	}
	mu.RLock()
	defer mu.RUnlock()
	return v
}

// Viper exposes the singleton, mainly for flag binding.
func Viper() *viper.Viper { return get() }

func GetString(key string) string          { return get().GetString(key) }
func GetBool(key string) bool              { return get().GetBool(key) }
func GetInt(key string) int                { return get().GetInt(key) }
func GetDuration(key string) time.Duration { return get().GetDuration(key) }
func GetStringSlice(key string) []string   { return get().GetStringSlice(key) }
func IsSet(key string) bool                { return get().IsSet(key) }
func Set(key string, value interface{})    { get().Set(key, value) }
func AllSettings() map[string]interface{}  { return get().AllSettings() }
