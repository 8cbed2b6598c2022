package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of everything loaded from shopdesk.yaml. Values layer in
// order: built-in defaults, the file, then SHOPDESK_* environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// AppConfig identifies this Shopdesk installation. The ID ends up in MQTT
// topics and audit records, so it must be stable across restarts.
type AppConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig holds SQLite settings. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StorageConfig points at the S3-compatible bucket that holds customer
// document files. BasePath is the key prefix all objects live under.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	BasePath  string `yaml:"base_path"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

// MQTTConfig covers the broker link to the SMS gateway. Disabled installs
// run without messaging.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	ClientID string `yaml:"client_id"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes the backoff between reconnect attempts, in
// seconds. MaxAttempts of zero means retry forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig holds the HTTP listener settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ReadDuration returns the read timeout as a time.Duration.
func (t APITimeoutConfig) ReadDuration() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteDuration returns the write timeout as a time.Duration.
func (t APITimeoutConfig) WriteDuration() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleDuration returns the idle timeout as a time.Duration.
func (t APITimeoutConfig) IdleDuration() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the browser push channel. Intervals and timeouts
// are in seconds, message size in bytes.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig holds the metrics sink connection. Optional.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	APIKey    APIKeyConfig    `yaml:"api_key"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig holds token signing settings. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// APIKeyConfig gates service-to-service calls that carry no user token.
type APIKeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads and validates the YAML configuration file at path, applying
// defaults and environment overrides along the way.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App = AppConfig{ID: "shopdesk-001", Name: "Shopdesk", Timezone: "UTC"}
	cfg.Database = DatabaseConfig{Path: "./data/shopdesk.db", WALMode: true, BusyTimeout: 5}
	cfg.Storage = StorageConfig{
		Endpoint: "localhost:9000",
		Bucket:   "shopdesk-documents",
		BasePath: "customer_submissions/",
		Region:   "us-east-1",
	}
	cfg.MQTT = MQTTConfig{
		Broker:    MQTTBrokerConfig{ClientID: "shopdesk-core", Host: "localhost", Port: 1883},
		QoS:       1,
		Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
	}
	cfg.API = APIConfig{
		Host:     "0.0.0.0",
		Port:     8080,
		Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
	}
	cfg.WebSocket = WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
	cfg.Security = SecurityConfig{
		JWT:       JWTConfig{AccessTokenTTL: 30, RefreshTokenTTL: 10080},
		APIKey:    APIKeyConfig{Enabled: true},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
	}
	return cfg
}

// applyEnvOverrides maps SHOPDESK_SECTION_KEY environment variables onto
// config fields. Secrets (JWT secret, API key, storage and MQTT credentials)
// should always come from the environment in production rather than the file.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"SHOPDESK_DATABASE_PATH":      &cfg.Database.Path,
		"SHOPDESK_STORAGE_ENDPOINT":   &cfg.Storage.Endpoint,
		"SHOPDESK_STORAGE_ACCESS_KEY": &cfg.Storage.AccessKey,
		"SHOPDESK_STORAGE_SECRET_KEY": &cfg.Storage.SecretKey,
		"SHOPDESK_STORAGE_BUCKET":     &cfg.Storage.Bucket,
		"SHOPDESK_MQTT_HOST":          &cfg.MQTT.Broker.Host,
		"SHOPDESK_MQTT_USERNAME":      &cfg.MQTT.Auth.Username,
		"SHOPDESK_MQTT_PASSWORD":      &cfg.MQTT.Auth.Password,
		"SHOPDESK_API_HOST":           &cfg.API.Host,
		"SHOPDESK_INFLUXDB_TOKEN":     &cfg.InfluxDB.Token,
		"SHOPDESK_JWT_SECRET":         &cfg.Security.JWT.Secret,
		"SHOPDESK_API_KEY":            &cfg.Security.APIKey.Key,
	}
	for name, dst := range overrides {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// Validate checks required fields and security-sensitive settings, returning
// every problem found in a single error.
func (c *Config) Validate() error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	require(c.App.ID != "", "app.id is required")
	require(c.Database.Path != "", "database.path is required")
	require(c.Storage.Endpoint != "", "storage.endpoint is required")
	require(c.Storage.Bucket != "", "storage.bucket is required")
	require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	require(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")

	// Customer records and documents sit behind these tokens. Empty or weak
	// secrets would allow attackers to forge tokens and read personal data.
	const minJWTSecretLength = 32
	switch {
	case c.Security.JWT.Secret == "":
		errs = append(errs, "security.jwt.secret is required (set SHOPDESK_JWT_SECRET environment variable)")
	case len(c.Security.JWT.Secret) < minJWTSecretLength:
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	require(!c.Security.APIKey.Enabled || c.Security.APIKey.Key != "",
		"security.api_key.key is required when API key checks are enabled (set SHOPDESK_API_KEY environment variable)")
	require(!c.Security.RateLimit.Enabled || c.Security.RateLimit.RequestsPerMinute >= 1,
		"security.rate_limit.requests_per_minute must be at least 1")

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
