package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"chartsignal/pkg/chartsignal"
)

const envPrefix = "CHARTSIGNAL_"

// Config is the service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	WebDir       string   `toml:"web_dir"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// ProviderConfig selects the inference provider.
type ProviderConfig struct {
	Name    string   `toml:"name"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level         string `toml:"level"`
	Format        string `toml:"format"`
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"`
}

// Duration is a time.Duration written as "30s" in TOML and env values.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return parsed, nil
}

// credentialEnv lists provider-native credential variables consulted when
// CHARTSIGNAL_PROVIDER_API_KEY is unset.
var credentialEnv = map[string][]string{
	chartsignal.ProviderGateway:   {"AI_GATEWAY_API_KEY", "LOVABLE_API_KEY"},
	chartsignal.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	chartsignal.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			MaxBodyBytes: 64 << 20,
			WriteTimeout: Duration{150 * time.Second},
		},
		Provider: ProviderConfig{
			Name: chartsignal.ProviderGateway,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			RetentionDays: 7,
		},
	}
}

// Load builds the configuration with priority:
// defaults -> env file -> TOML file -> environment.
// envFile defaults to ".env"; a missing env file is ignored, a missing TOML
// file named explicitly is an error.
func Load(path, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	config := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CHARTSIGNAL_* environment variable overrides to config.
func applyEnvOverrides(config *Config) error {
	if host := getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %sSERVER_PORT %q: %w", envPrefix, port, err)
		}
		config.Server.Port = p
	}
	if webDir := getenv("WEB_DIR"); webDir != "" {
		config.Server.WebDir = webDir
	}
	if maxBody := getenv("MAX_BODY_BYTES"); maxBody != "" {
		n, err := strconv.ParseInt(maxBody, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_BODY_BYTES %q: %w", envPrefix, maxBody, err)
		}
		config.Server.MaxBodyBytes = n
	}
	if name := getenv("PROVIDER"); name != "" {
		config.Provider.Name = name
	}
	if baseURL := getenv("PROVIDER_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if model := getenv("PROVIDER_MODEL"); model != "" {
		config.Provider.Model = model
	}
	if apiKey := getenv("PROVIDER_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if timeout := getenv("PROVIDER_TIMEOUT"); timeout != "" {
		d, err := parseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %sPROVIDER_TIMEOUT: %w", envPrefix, err)
		}
		config.Provider.Timeout = Duration{d}
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if dir := getenv("LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}
	if days := getenv("LOG_RETENTION_DAYS"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid %sLOG_RETENTION_DAYS %q: %w", envPrefix, days, err)
		}
		config.Logging.RetentionDays = n
	}

	config.Provider.Name = strings.ToLower(strings.TrimSpace(config.Provider.Name))
	if strings.TrimSpace(config.Provider.APIKey) == "" {
		for _, key := range credentialEnv[config.Provider.Name] {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				config.Provider.APIKey = value
				break
			}
		}
	}
	return nil
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// A negative port leaves the configured port unchanged.
func ApplyFlagOverrides(config *Config, host string, port int, webDir string) {
	if host != "" {
		config.Server.Host = host
	}
	if port >= 0 {
		config.Server.Port = port
	}
	if webDir != "" {
		config.Server.WebDir = webDir
	}
}

// Validate reports settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive"))
	}
	if c.Server.WriteTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must not be negative"))
	}
	if !chartsignal.IsKnownProvider(c.Provider.Name) {
		errs = append(errs, fmt.Errorf("provider.name %q is not one of: %s", c.Provider.Name, strings.Join(chartsignal.Providers(), ", ")))
	}
	if c.Provider.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must not be negative"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Logging.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("logging.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}

// MissingCredential reports whether no provider credential was configured.
func (c *Config) MissingCredential() bool {
	return strings.TrimSpace(c.Provider.APIKey) == ""
}

// ProviderSettings converts the provider section for chartsignal.NewInvoker.
func (c *Config) ProviderSettings() chartsignal.ProviderConfig {
	return chartsignal.ProviderConfig{
		Name:    c.Provider.Name,
		BaseURL: c.Provider.BaseURL,
		Model:   c.Provider.Model,
		APIKey:  c.Provider.APIKey,
		Timeout: c.Provider.Timeout.Duration,
	}
}
