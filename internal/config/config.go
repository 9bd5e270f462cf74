// Package config provides configuration management for the catalog service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Accepted values for database.ssl_mode.
const (
	SSLModeDisable    = "disable"
	SSLModeRequire    = "require"
	SSLModeVerifyCA   = "verify-ca"
	SSLModeVerifyFull = "verify-full"
)

// Notification driver names.
const (
	NotifyDriverLog   = "log"
	NotifyDriverSMTP  = "smtp"
	NotifyDriverKafka = "kafka"
)

const envPrefix = "CATALOG"

// Config is the full service configuration. Every key can be set in
// config.yaml or through a CATALOG_<SECTION>_<KEY> environment variable.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Import   ImportConfig   `mapstructure:"import"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	// SMTP is only read when notify.driver is smtp.
	SMTP SMTPConfig `mapstructure:"smtp"`
	// Kafka is only read when notify.driver is kafka.
	Kafka KafkaConfig `mapstructure:"kafka"`
	CORS  CORSConfig  `mapstructure:"cors"`
}

// ServerConfig configures the API and metrics listeners.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool and schema migrations.
type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	// Password comes only from CATALOG_DATABASE_PASSWORD.
	Password string `mapstructure:"-"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`

	// Pool sizing and connection recycling. Zero values keep the pgx defaults.
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`

	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations when the server starts.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig mirrors observability.LoggingConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// StorageConfig controls where PDFs live and how large an archive may be.
type StorageConfig struct {
	PDFDir string `mapstructure:"pdf_dir"`
	// ScratchDir holds per-import extraction directories. Empty means os.TempDir().
	ScratchDir      string `mapstructure:"scratch_dir"`
	MaxArchiveBytes int64  `mapstructure:"max_archive_bytes"`
	// MaxEntryBytes caps one decompressed archive member.
	MaxEntryBytes int64 `mapstructure:"max_entry_bytes"`
}

type ImportConfig struct {
	// RequireYear skips yearless records instead of attaching them to the earliest edition.
	RequireYear    bool  `mapstructure:"require_year"`
	MaxBibTeXBytes int64 `mapstructure:"max_bibtex_bytes"`
	// RateLimit and RateBurst throttle POST /imports per client.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type NotifyConfig struct {
	Driver string `mapstructure:"driver"`
	// RatePerSecond of zero sends without throttling.
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	From string `mapstructure:"from"`
	// Username empty means the relay accepts unauthenticated mail.
	Username string `mapstructure:"username"`
	// Password comes only from CATALOG_SMTP_PASSWORD.
	Password string `mapstructure:"-"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Address returns the SMTP server address.
func (c *SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load merges defaults, an optional config.yaml and CATALOG_* environment
// variables, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catalog-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// loadSecrets reads the password fields, which are never taken from config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(envPrefix + "_DATABASE_PASSWORD")
	cfg.SMTP.Password = os.Getenv(envPrefix + "_SMTP_PASSWORD")
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.http_port":        8080,
	"server.metrics_port":     9091,
	"server.read_timeout":     "60s",
	"server.write_timeout":    "120s",
	"server.shutdown_timeout": "30s",

	"database.host":                "localhost",
	"database.port":                5432,
	"database.user":                "catalog",
	"database.name":                "catalog",
	"database.ssl_mode":            SSLModeRequire,
	"database.max_conns":           20,
	"database.min_conns":           2,
	"database.max_conn_lifetime":   "1h",
	"database.max_conn_idle_time":  "30m",
	"database.health_check_period": "30s",
	"database.connect_timeout":     "10s",
	"database.migration_path":      "migrations",
	"database.migration_auto_run":  false,

	"logging.level":       "info",
	"logging.format":      "json",
	"logging.output":      "stdout",
	"logging.add_source":  false,
	"logging.time_format": time.RFC3339,

	"metrics.enabled":   true,
	"metrics.path":      "/metrics",
	"metrics.namespace": "catalog",

	"storage.pdf_dir":           "data/pdfs",
	"storage.scratch_dir":       "",
	"storage.max_archive_bytes": 256 << 20,
	"storage.max_entry_bytes":   64 << 20,

	"import.require_year":     false,
	"import.max_bibtex_bytes": 4 << 20,
	"import.rate_limit":       1.0,
	"import.rate_burst":       2,

	"notify.driver":          NotifyDriverLog,
	"notify.rate_per_second": 5.0,
	"notify.burst":           5,
	"notify.send_timeout":    "10s",

	"smtp.host":     "",
	"smtp.port":     587,
	"smtp.from":     "catalog@localhost",
	"smtp.username": "",

	"kafka.brokers":       []string{"localhost:9092"},
	"kafka.topic":         "catalog.notifications",
	"kafka.batch_size":    100,
	"kafka.batch_timeout": "10ms",

	"cors.allowed_origins": []string{"*"},
	"cors.max_age":         300,
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Database.validate(),
		c.Logging.validate(),
		c.Storage.validate(),
		c.Import.validate(),
		c.validateNotify(),
	)
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func (c *ServerConfig) validate() error {
	var errs []error
	if !validPort(c.HTTPPort) {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if !validPort(c.MetricsPort) {
		errs = append(errs, fmt.Errorf("invalid metrics port: %d", c.MetricsPort))
	}
	return errors.Join(errs...)
}

func (c *DatabaseConfig) validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if !validPort(c.Port) {
		errs = append(errs, fmt.Errorf("invalid database port: %d", c.Port))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("database name is required"))
	}
	switch c.SSLMode {
	case SSLModeDisable, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
	default:
		errs = append(errs, fmt.Errorf("invalid database ssl_mode: %q", c.SSLMode))
	}
	if c.MaxConns < c.MinConns {
		errs = append(errs, fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns))
	}
	return errors.Join(errs...)
}

var logLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}

func (c *LoggingConfig) validate() error {
	level := strings.ToLower(c.Level)
	for _, l := range logLevels {
		if level == l {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s", c.Level)
}

func (c *StorageConfig) validate() error {
	var errs []error
	if c.PDFDir == "" {
		errs = append(errs, errors.New("storage pdf_dir is required"))
	}
	if c.MaxArchiveBytes <= 0 {
		errs = append(errs, errors.New("storage max_archive_bytes must be positive"))
	}
	if c.MaxEntryBytes <= 0 {
		errs = append(errs, errors.New("storage max_entry_bytes must be positive"))
	}
	return errors.Join(errs...)
}

func (c *ImportConfig) validate() error {
	var errs []error
	if c.MaxBibTeXBytes <= 0 {
		errs = append(errs, errors.New("import max_bibtex_bytes must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("import rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

// validateNotify checks the notify section and the transport section its driver needs.
func (c *Config) validateNotify() error {
	var errs []error
	if c.Notify.RatePerSecond < 0 {
		errs = append(errs, errors.New("notify rate_per_second must not be negative"))
	}

	switch strings.ToLower(c.Notify.Driver) {
	case NotifyDriverLog:
	case NotifyDriverSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, fmt.Errorf("notify driver %q requires smtp.host to be set", c.Notify.Driver))
		}
		if !validPort(c.SMTP.Port) {
			errs = append(errs, fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port))
		}
	case NotifyDriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("notify driver %q requires at least one kafka broker", c.Notify.Driver))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, fmt.Errorf("notify driver %q requires kafka.topic to be set", c.Notify.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid notify driver: %s", c.Notify.Driver))
	}
	return errors.Join(errs...)
}
