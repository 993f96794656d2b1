package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/streamgate/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config holds the complete gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Origin      OriginConfig      `yaml:"origin" json:"origin"`
	Resolver    ResolverConfig    `yaml:"resolver" json:"resolver"`
	Proxy       ProxyConfig       `yaml:"proxy" json:"proxy"`
	Interceptor InterceptorConfig `yaml:"interceptor" json:"interceptor"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host string `yaml:"host" json:"host" env:"STREAMGATE_HOST" default:"0.0.0.0"`
	Port int    `yaml:"port" json:"port" env:"STREAMGATE_PORT" default:"8080"`
	// PublicURL is the client-facing base used to build proxy-wrapped URLs.
	PublicURL       string        `yaml:"public_url" json:"public_url" env:"STREAMGATE_PUBLIC_URL"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" env:"STREAMGATE_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" env:"STREAMGATE_WRITE_TIMEOUT" default:"0s"` // 0: streams are unbounded
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"STREAMGATE_SHUTDOWN_TIMEOUT" default:"5s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins" env:"STREAMGATE_ALLOWED_ORIGINS"`
}

// OriginConfig describes the authenticated media object store
type OriginConfig struct {
	BaseURL      string `yaml:"base_url" json:"base_url" env:"STREAMGATE_ORIGIN_URL" default:"http://localhost:9000/media"`
	APIKey       string `yaml:"api_key" json:"api_key,omitempty" env:"STREAMGATE_API_KEY"`
	APIKeyHeader string `yaml:"api_key_header" json:"api_key_header" env:"STREAMGATE_API_KEY_HEADER" default:"x-api-key"`
}

// ResolverConfig controls source resolution
type ResolverConfig struct {
	ProbeTimeout     time.Duration `yaml:"probe_timeout" json:"probe_timeout" env:"STREAMGATE_PROBE_TIMEOUT" default:"800ms"`
	DefaultExtension string        `yaml:"default_extension" json:"default_extension" env:"STREAMGATE_DEFAULT_EXTENSION" default:"mp4"`
}

// ProxyConfig controls the streaming proxy
type ProxyConfig struct {
	DefaultContentType    string        `yaml:"default_content_type" json:"default_content_type" env:"STREAMGATE_DEFAULT_CONTENT_TYPE" default:"video/mp4"`
	ErrorBodyLimit        int           `yaml:"error_body_limit" json:"error_body_limit" env:"STREAMGATE_ERROR_BODY_LIMIT" default:"512"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" json:"response_header_timeout" env:"STREAMGATE_RESPONSE_HEADER_TIMEOUT" default:"15s"`
}

// InterceptorConfig controls the direct-to-origin credential channel.
// When AllowDirectOrigin is set, the origin credential is pushed to every
// client that opens /api/credentials/ws. Server.AllowedOrigins only limits
// browser origins; clients that send no Origin header are always served,
// so keep the gateway on a trusted network when enabling it.
type InterceptorConfig struct {
	AllowDirectOrigin bool `yaml:"allow_direct_origin" json:"allow_direct_origin" env:"STREAMGATE_ALLOW_DIRECT_ORIGIN" default:"false"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"STREAMGATE_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"STREAMGATE_LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"STREAMGATE_METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" json:"path" env:"STREAMGATE_METRICS_PATH" default:"/metrics"`
}

// ListenAddr returns host:port for the HTTP listener.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ConfigManager manages configuration with hot-reload support
type ConfigManager struct {
	config     *Config
	configPath string
	watchers   []ConfigWatcher
	mu         sync.RWMutex
	loadMu     sync.Mutex
}

// ConfigWatcher is called when configuration changes. It must not call
// LoadConfig.
type ConfigWatcher func(oldConfig, newConfig *Config)

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config:   DefaultConfig(),
		watchers: make([]ConfigWatcher, 0),
	}
}

// DefaultConfig returns the default gateway configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Origin: OriginConfig{
			BaseURL:      "http://localhost:9000/media",
			APIKeyHeader: "x-api-key",
		},
		Resolver: ResolverConfig{
			ProbeTimeout:     800 * time.Millisecond,
			DefaultExtension: "mp4",
		},
		Proxy: ProxyConfig{
			DefaultContentType:    "video/mp4",
			ErrorBodyLimit:        512,
			ResponseHeaderTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Loads are serialized and watchers run synchronously, in load order, before
// LoadConfig returns, so the last successful load is the last one applied.
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.loadMu.Lock()
	defer cm.loadMu.Unlock()

	newConfig := DefaultConfig()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		logger.Info("Configuration loaded from file: %s", configPath)
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	applyDerivedConfig(newConfig)

	if err := Validate(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.mu.Lock()
	oldConfig := *cm.config
	cm.config = newConfig
	cm.configPath = configPath
	watchers := append([]ConfigWatcher(nil), cm.watchers...)
	cm.mu.Unlock()

	// cm.mu is released so watchers may call GetConfig.
	for _, watcher := range watchers {
		watcher(&oldConfig, newConfig)
	}
	return nil
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	configCopy.Server.AllowedOrigins = append([]string(nil), cm.config.Server.AllowedOrigins...)
	return &configCopy
}

// ConfigPath returns the file the configuration was last loaded from.
func (cm *ConfigManager) ConfigPath() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// AddWatcher adds a configuration change watcher
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
}

// loadStructFromEnv overrides fields from their env tag. Defaults come from
// DefaultConfig; the default tag documents them.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		value := os.Getenv(envTag)
		if value == "" {
			continue
		}

		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		values := strings.Split(value, ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func applyDerivedConfig(config *Config) {
	config.Origin.BaseURL = strings.TrimRight(config.Origin.BaseURL, "/")

	if config.Server.PublicURL == "" {
		host := config.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "localhost"
		}
		config.Server.PublicURL = "http://" + net.JoinHostPort(host, strconv.Itoa(config.Server.Port))
	}
	config.Server.PublicURL = strings.TrimRight(config.Server.PublicURL, "/")

	if config.Server.AllowedOrigins == nil {
		config.Server.AllowedOrigins = []string{"*"}
	}
	config.Resolver.DefaultExtension = strings.TrimPrefix(strings.ToLower(config.Resolver.DefaultExtension), ".")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// AddWatcher adds a global configuration watcher
func AddWatcher(watcher ConfigWatcher) {
	GetConfigManager().AddWatcher(watcher)
}
