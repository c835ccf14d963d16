// v2
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime settings required by the telemetry
// aggregation service. Values can be provided by environment variables, a
// properties file, or fall back to sensible defaults so the service can
// boot with minimal setup.
type Config struct {
	// ListenAddress defines the TCP address used by the HTTP server.
	ListenAddress string
	// LogFilePath is the path to the log file, mirrored to stdout.
	LogFilePath string
	// HTTPReadTimeout bounds the time to read incoming requests.
	HTTPReadTimeout time.Duration
	// HTTPWriteTimeout bounds the time to write responses.
	HTTPWriteTimeout time.Duration
	// ShutdownTimeout limits graceful shutdown attempts.
	ShutdownTimeout time.Duration
	// RequestTimeout is the per-request deadline applied to aggregation
	// queries so a slow scan surfaces a timeout instead of blocking.
	RequestTimeout time.Duration
	// PropertiesPath records the path used to load property values.
	PropertiesPath string

	// CacheTTL bounds how long aggregation results are served from cache.
	CacheTTL time.Duration
	// ClockSkew tolerates readings observed slightly in the future.
	ClockSkew time.Duration
	// TopDefaultLimit is the ranking size when the client sends none.
	TopDefaultLimit int
	// ReadingsDefaultLimit is the listing size when the client sends none.
	ReadingsDefaultLimit int
	// MaxLimit caps any client-supplied limit.
	MaxLimit int

	// KafkaBrokers lists the bootstrap brokers for the telemetry topic.
	// Empty disables the Kafka consumer entirely (standalone mode).
	KafkaBrokers []string
	// TelemetryTopic carries raw readings from the ingestion transport.
	TelemetryTopic string
	// KafkaGroupID is the consumer group identifier used for checkpointing.
	KafkaGroupID string

	// PostgresDSN selects the durable reading store. Empty keeps readings
	// in memory.
	PostgresDSN string

	// RegistryBaseURL points at the device-management service. Empty falls
	// back to the static fixture registry.
	RegistryBaseURL string
	// RegistryTimeout bounds each registry call.
	RegistryTimeout time.Duration
	// StaticDevicesPath locates the JSON fixture used by the static registry.
	StaticDevicesPath string

	// CORSAllowedOrigins lists origins allowed by the browser dashboard.
	CORSAllowedOrigins []string
}

const (
	defaultListenAddress = ":8085"
	defaultLogFile       = "logs/telemetry.log"
	defaultReadTimeout   = 5 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultShutdown      = 5 * time.Second
	defaultRequest       = 10 * time.Second
	defaultPropsPath     = "telemetry.properties"
	defaultCacheTTL      = 5 * time.Minute
	defaultClockSkew     = 2 * time.Minute
	defaultTopLimit      = 5
	defaultReadingsLimit = 100
	defaultMaxLimit      = 1000
	defaultTopic         = "telemetry.readings"
	defaultGroupID       = "telemetry-aggregator"
	defaultRegTimeout    = 10 * time.Second
)

// Load resolves configuration by layering defaults, an optional properties
// file, and finally environment variables. The properties file location can
// be overridden with TELEMETRY_PROPERTIES_PATH.
func Load() (Config, error) {
	cfg := Config{
		ListenAddress:        defaultListenAddress,
		LogFilePath:          filepath.Clean(defaultLogFile),
		HTTPReadTimeout:      defaultReadTimeout,
		HTTPWriteTimeout:     defaultWriteTimeout,
		ShutdownTimeout:      defaultShutdown,
		RequestTimeout:       defaultRequest,
		CacheTTL:             defaultCacheTTL,
		ClockSkew:            defaultClockSkew,
		TopDefaultLimit:      defaultTopLimit,
		ReadingsDefaultLimit: defaultReadingsLimit,
		MaxLimit:             defaultMaxLimit,
		TelemetryTopic:       defaultTopic,
		KafkaGroupID:         defaultGroupID,
		RegistryTimeout:      defaultRegTimeout,
		CORSAllowedOrigins:   []string{"*"},
	}

	propsPath := strings.TrimSpace(os.Getenv("TELEMETRY_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		// Close errors are ignored because configuration loading has
		// already completed and there is no logger available yet.
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	switch key {
	case "listen_address":
		if value == "" {
			return errors.New("listen_address cannot be empty")
		}
		cfg.ListenAddress = value
	case "log_path":
		if value == "" {
			return errors.New("log_path cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(value)
	case "http_read_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPReadTimeout = d
	case "http_write_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPWriteTimeout = d
	case "shutdown_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	case "request_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.RequestTimeout = d
	case "cache_ttl_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.CacheTTL = d
	case "clock_skew_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.ClockSkew = d
	case "top_default_limit":
		n, err := parsePositiveInt(value)
		if err != nil {
			return err
		}
		cfg.TopDefaultLimit = n
	case "readings_default_limit":
		n, err := parsePositiveInt(value)
		if err != nil {
			return err
		}
		cfg.ReadingsDefaultLimit = n
	case "max_limit":
		n, err := parsePositiveInt(value)
		if err != nil {
			return err
		}
		cfg.MaxLimit = n
	case "kafka_brokers":
		cfg.KafkaBrokers = splitAndTrim(value)
	case "telemetry_topic":
		if value == "" {
			return errors.New("telemetry_topic cannot be empty")
		}
		cfg.TelemetryTopic = value
	case "kafka_group_id":
		if value == "" {
			return errors.New("kafka_group_id cannot be empty")
		}
		cfg.KafkaGroupID = value
	case "postgres_dsn":
		cfg.PostgresDSN = value
	case "registry_base_url":
		cfg.RegistryBaseURL = value
	case "registry_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.RegistryTimeout = d
	case "static_devices_path":
		cfg.StaticDevicesPath = filepath.Clean(value)
	case "cors_allowed_origins":
		origins := splitAndTrim(value)
		if len(origins) == 0 {
			return errors.New("cors_allowed_origins cannot be empty")
		}
		cfg.CORSAllowedOrigins = origins
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return nil
}

func applyEnv(cfg *Config) error {
	type envEntry struct {
		name string
		key  string
	}
	entries := []envEntry{
		{"TELEMETRY_LISTEN_ADDRESS", "listen_address"},
		{"TELEMETRY_LOG_PATH", "log_path"},
		{"TELEMETRY_HTTP_READ_TIMEOUT_MS", "http_read_timeout_ms"},
		{"TELEMETRY_HTTP_WRITE_TIMEOUT_MS", "http_write_timeout_ms"},
		{"TELEMETRY_SHUTDOWN_TIMEOUT_MS", "shutdown_timeout_ms"},
		{"TELEMETRY_REQUEST_TIMEOUT_MS", "request_timeout_ms"},
		{"TELEMETRY_CACHE_TTL_MS", "cache_ttl_ms"},
		{"TELEMETRY_CLOCK_SKEW_MS", "clock_skew_ms"},
		{"TELEMETRY_TOP_DEFAULT_LIMIT", "top_default_limit"},
		{"TELEMETRY_READINGS_DEFAULT_LIMIT", "readings_default_limit"},
		{"TELEMETRY_MAX_LIMIT", "max_limit"},
		{"TELEMETRY_KAFKA_BROKERS", "kafka_brokers"},
		{"TELEMETRY_TOPIC", "telemetry_topic"},
		{"TELEMETRY_KAFKA_GROUP_ID", "kafka_group_id"},
		{"TELEMETRY_POSTGRES_DSN", "postgres_dsn"},
		{"TELEMETRY_REGISTRY_BASE_URL", "registry_base_url"},
		{"TELEMETRY_REGISTRY_TIMEOUT_MS", "registry_timeout_ms"},
		{"TELEMETRY_STATIC_DEVICES_PATH", "static_devices_path"},
		{"TELEMETRY_CORS_ALLOWED_ORIGINS", "cors_allowed_origins"},
	}
	for _, e := range entries {
		v, ok := lookupEnvTrimmed(e.name)
		if !ok {
			continue
		}
		if err := setProperty(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
	}
	return nil
}

func lookupEnvTrimmed(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func parsePositiveMillis(value string) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid millisecond value: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be positive")
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be positive")
	}
	return n, nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
