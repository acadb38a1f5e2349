package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Token     TokenConfig     `yaml:"token" envconfig:"TOKEN"`
	Client    ClientConfig    `yaml:"client" envconfig:"CLIENT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains license authority HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" desc:"HTTP listen port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" desc:"per-request deadline on license endpoints"`
	Concurrency     string        `yaml:"concurrency" envconfig:"CONCURRENCY" desc:"legacy (whole-collection writes) or optimistic (versioned writes)"`
	ConflictRetries int           `yaml:"conflict_retries" envconfig:"CONFLICT_RETRIES" desc:"attempts per request in optimistic mode"`
	EngineDir       string        `yaml:"engine_dir" envconfig:"ENGINE_DIR" desc:"directory served behind the session gate at /engine/"`
	Language        string        `yaml:"language" envconfig:"LANGUAGE" desc:"language of error messages (en, ar)"`
}

// StoreConfig selects and configures the license store backend
type StoreConfig struct {
	Backend  string            `yaml:"backend" envconfig:"BACKEND" desc:"memory, http, sheets or redis"`
	SeedFile string            `yaml:"seed_file" envconfig:"SEED_FILE" desc:"JSON records loaded into the memory backend at startup"`
	HTTP     HTTPStoreConfig   `yaml:"http" envconfig:"HTTP"`
	Sheets   SheetsStoreConfig `yaml:"sheets" envconfig:"SHEETS"`
	Redis    RedisStoreConfig  `yaml:"redis" envconfig:"REDIS"`
}

// HTTPStoreConfig configures the JSON document service backend
type HTTPStoreConfig struct {
	URL       string        `yaml:"url" envconfig:"URL" desc:"document URL (GET reads, PUT replaces)"`
	MasterKey string        `yaml:"master_key" envconfig:"MASTER_KEY"`
	KeyHeader string        `yaml:"key_header" envconfig:"KEY_HEADER"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// SheetsStoreConfig configures the Google Sheets backend
type SheetsStoreConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	SheetName       string `yaml:"sheet_name" envconfig:"SHEET_NAME"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" desc:"service account JSON"`
}

// RedisStoreConfig configures the Redis backend
type RedisStoreConfig struct {
	URL string `yaml:"url" envconfig:"URL" desc:"redis://host:port/db"`
	Key string `yaml:"key" envconfig:"KEY" desc:"hash holding one field per license"`
}

// TokenConfig configures session token issuance and the session cookie
type TokenConfig struct {
	Mode       string        `yaml:"mode" envconfig:"MODE" desc:"unsigned or signed"`
	Secret     string        `yaml:"secret" envconfig:"SECRET" desc:"signing secret, at least 32 bytes, signed mode only"`
	CookieName string        `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	MaxAge     time.Duration `yaml:"max_age" envconfig:"MAX_AGE"`
	Secure     bool          `yaml:"secure" envconfig:"SECURE" desc:"set the Secure cookie attribute"`
}

// ClientConfig contains configuration for the vidgate client
type ClientConfig struct {
	AuthorityURL string        `yaml:"authority_url" envconfig:"AUTHORITY_URL"`
	StateDir     string        `yaml:"state_dir" envconfig:"STATE_DIR" desc:"where the session, device id and last key are persisted"`
	SessionTTL   time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Language     string        `yaml:"language" envconfig:"LANGUAGE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Output      string `yaml:"output" envconfig:"OUTPUT" desc:"console, file or both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName     string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment     string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TracesEnabled   bool    `yaml:"traces_enabled" envconfig:"TRACES_ENABLED"`
	MetricsEnabled  bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TraceSampleRate float64 `yaml:"trace_sample_rate" envconfig:"TRACE_SAMPLE_RATE"`
}

// Load loads configuration from defaults, the config file and environment variables
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration using an explicit YAML file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; Default() supplies the rest.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}

	switch c.Store.Backend {
	case StoreMemory, StoreHTTP, StoreSheets, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Server.Concurrency {
	case ConcurrencyLegacy:
	case ConcurrencyOptimistic:
		if c.Store.Backend == StoreHTTP || c.Store.Backend == StoreSheets {
			return fmt.Errorf("optimistic concurrency needs a versioned store, %q is not", c.Store.Backend)
		}
		if c.Server.ConflictRetries < 1 {
			return fmt.Errorf("conflict retries must be at least 1")
		}
	default:
		return fmt.Errorf("unknown concurrency mode %q", c.Server.Concurrency)
	}

	switch c.Token.Mode {
	case TokenUnsigned:
	case TokenSigned:
		if len(c.Token.Secret) < MinSigningSecretLen {
			return fmt.Errorf("signed tokens need a secret of at least %d bytes", MinSigningSecretLen)
		}
	default:
		return fmt.Errorf("unknown token mode %q", c.Token.Mode)
	}

	if c.Token.CookieName == "" {
		return fmt.Errorf("token cookie name must be set")
	}
	if c.Client.SessionTTL <= 0 {
		return fmt.Errorf("client session ttl must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/vidgate.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// DefaultStateDir returns the per-user directory for persisted client state
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// Usage writes the table of recognised environment variables to w
func Usage(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(EnvPrefix, Default(), tw, envconfig.DefaultTableFormat); err != nil {
		return err
	}
	return tw.Flush()
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
			Concurrency:     ConcurrencyLegacy,
			ConflictRetries: DefaultConflictRetries,
			EngineDir:       "engine",
			Language:        "en",
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			HTTP: HTTPStoreConfig{
				KeyHeader: "X-Master-Key",
				Timeout:   10 * time.Second,
			},
			Sheets: SheetsStoreConfig{
				SheetName: "Licenses",
			},
			Redis: RedisStoreConfig{
				Key: "vidgate:licenses",
			},
		},
		Token: TokenConfig{
			Mode:       TokenUnsigned,
			CookieName: DefaultCookieName,
			MaxAge:     SessionCookieMaxAge,
		},
		Client: ClientConfig{
			AuthorityURL: "http://localhost:8080",
			StateDir:     DefaultStateDir(),
			SessionTTL:   DefaultSessionTTL,
			Timeout:      DefaultClientTimeout,
			Language:     "en",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/vidgate.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:     AppName,
			Environment:     "production",
			TracesEnabled:   false,
			MetricsEnabled:  true,
			TraceSampleRate: 1.0,
		},
	}
}
