package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// CredentialsStartup uses the Zendesk credentials loaded at process start.
	CredentialsStartup = "startup"
	// CredentialsTrigger uses the credentials carried by the latest accepted tick.
	CredentialsTrigger = "trigger"
)

type Config struct {
	Server         ServerConfig         `toml:"server"`
	Zendesk        ZendeskConfig        `toml:"zendesk"`
	Scheduler      SchedulerConfig      `toml:"scheduler"`
	Relay          RelayConfig          `toml:"relay"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
	Storage        StorageConfig        `toml:"storage"`
	Logging        LoggingConfig        `toml:"logging"`

	// Environment is set from the -mode flag, never from the file.
	Environment string `toml:"-"`
}

type ServerConfig struct {
	Name                   string   `toml:"name"`
	Port                   int      `toml:"port"`
	PublicURL              string   `toml:"public_url"`
	RateLimitRequests      int      `toml:"rate_limit_requests"`
	RateLimitWindowSeconds int      `toml:"rate_limit_window_seconds"`
	CORSAllowedOrigins     []string `toml:"cors_allowed_origins"`
}

type ZendeskConfig struct {
	BaseURL            string `toml:"base_url"`
	Email              string `toml:"email"`
	APIToken           string `toml:"api_token"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	Credentials        string `toml:"credentials"`
	MetricsConcurrency int    `toml:"metrics_concurrency"`
}

type SchedulerConfig struct {
	IntervalMinutes int  `toml:"interval_minutes"`
	RefreshOnStart  bool `toml:"refresh_on_start"`
}

type RelayConfig struct {
	EventName      string `toml:"event_name"`
	Username       string `toml:"username"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type CircuitBreakerConfig struct {
	Enabled            bool `toml:"enabled"`
	MaxFailures        int  `toml:"max_failures"`
	OpenTimeoutSeconds int  `toml:"open_timeout_seconds"`
	MaxAccounts        int  `toml:"max_accounts"`
}

type StorageConfig struct {
	DatabasePath  string `toml:"database_path"`
	RetentionDays int    `toml:"retention_days"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execDir, execName := executableLocation()

	return &Config{
		Server: ServerConfig{
			Name:                   execName,
			Port:                   8080,
			RateLimitRequests:      0,
			RateLimitWindowSeconds: 60,
			CORSAllowedOrigins:     []string{"*"},
		},
		Zendesk: ZendeskConfig{
			TimeoutSeconds:     30,
			Credentials:        CredentialsStartup,
			MetricsConcurrency: 4,
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 5,
		},
		Relay: RelayConfig{
			EventName:      "Zendesk feedback",
			Username:       "zendesk-feedback-monitor",
			TimeoutSeconds: 30,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:            true,
			MaxFailures:        5,
			OpenTimeoutSeconds: 60,
			MaxAccounts:        64,
		},
		Storage: StorageConfig{
			DatabasePath:  filepath.Join(execDir, "data", execName+".db"),
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
		Environment: "development",
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		configFile = findConfigFile()
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func findConfigFile() string {
	execDir, execName := executableLocation()

	possiblePaths := []string{
		filepath.Join(execDir, execName+".toml"),
		filepath.Join(execDir, "config.toml"),
		"config.toml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func executableLocation() (string, string) {
	execPath, err := os.Executable()
	if err != nil {
		return ".", "zendesk-feedback-monitor"
	}
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]
	return filepath.Dir(execPath), execName
}

func applyEnvOverrides(config *Config) {
	// Same variable names the Telex integration was deployed with.
	if baseURL := os.Getenv("ZENDESK_URL"); baseURL != "" {
		config.Zendesk.BaseURL = baseURL
	}
	if email := os.Getenv("ZENDESK_EMAIL"); email != "" {
		config.Zendesk.Email = email
	}
	if token := os.Getenv("ZENDESK_API_TOKEN"); token != "" {
		config.Zendesk.APIToken = token
	}
	if source := os.Getenv("ZENDESK_CREDENTIALS"); source != "" {
		config.Zendesk.Credentials = strings.ToLower(source)
	}

	if interval := os.Getenv("FETCH_INTERVAL_MINUTES"); interval != "" {
		if minutes, err := strconv.Atoi(interval); err == nil {
			config.Scheduler.IntervalMinutes = minutes
		}
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Server.Port = portNum
		}
	}
	if publicURL := os.Getenv("PUBLIC_URL"); publicURL != "" {
		config.Server.PublicURL = publicURL
	}
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("server rate_limit_requests must not be negative")
	}
	if c.Server.RateLimitWindowSeconds <= 0 {
		c.Server.RateLimitWindowSeconds = 60
	}

	switch c.Zendesk.Credentials {
	case CredentialsStartup, CredentialsTrigger:
	case "":
		c.Zendesk.Credentials = CredentialsStartup
	default:
		return fmt.Errorf("invalid zendesk credentials source: %s", c.Zendesk.Credentials)
	}
	if c.Zendesk.TimeoutSeconds < 0 {
		return fmt.Errorf("zendesk timeout_seconds must not be negative")
	}
	if c.Zendesk.MetricsConcurrency <= 0 {
		c.Zendesk.MetricsConcurrency = 1
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval_minutes must be positive")
	}

	if c.CircuitBreaker.MaxFailures <= 0 {
		c.CircuitBreaker.MaxFailures = 5
	}
	if c.CircuitBreaker.OpenTimeoutSeconds <= 0 {
		c.CircuitBreaker.OpenTimeoutSeconds = 60
	}
	if c.CircuitBreaker.MaxAccounts <= 0 {
		c.CircuitBreaker.MaxAccounts = 64
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// HasStartupCredentials reports whether a complete credential set was configured.
func (c *Config) HasStartupCredentials() bool {
	return c.Zendesk.BaseURL != "" && c.Zendesk.Email != "" && c.Zendesk.APIToken != ""
}
