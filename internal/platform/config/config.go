package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultFunnelID   = "fastingkit"
	defaultFunnelName = "Fasting Kit"
	defaultBasePath   = "/"

	defaultSessionTTL           = 2 * time.Hour
	defaultResolvePollInterval  = time.Second
	defaultResolvePollAttempts  = 30
	defaultBridgeRequestTimeout = 30 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server ServerConfig
	Bridge BridgeConfig
	Funnel FunnelConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BridgeConfig locates the remote pricing/checkout backend.
type BridgeConfig struct {
	// SiteBase is the storefront origin hosting the Bridge and the hosted
	// payment confirmation page.
	SiteBase string
	// BaseURL is the Bridge REST root. Defaults to SiteBase + the Bridge
	// namespace when unset.
	BaseURL string
	// RequestTimeout bounds individual Bridge round trips at the transport
	// level; the client itself never retries.
	RequestTimeout time.Duration
}

// FunnelConfig identifies this funnel and its return URLs.
type FunnelConfig struct {
	ID         string
	Name       string
	AppOrigin  string
	BasePath   string
	SessionTTL time.Duration
	// ResolvePollInterval and ResolvePollAttempts bound the order-resolution
	// polling loop.
	ResolvePollInterval time.Duration
	ResolvePollAttempts int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "FUNNEL_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "FUNNEL_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "FUNNEL_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "FUNNEL_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Bridge: BridgeConfig{
			SiteBase:       strings.TrimRight(stringWithDefault(lookup, "FUNNEL_SITE_BASE", ""), "/"),
			BaseURL:        strings.TrimRight(stringWithDefault(lookup, "FUNNEL_BRIDGE_BASE_URL", ""), "/"),
			RequestTimeout: durationWithDefault(lookup, "FUNNEL_BRIDGE_REQUEST_TIMEOUT", defaultBridgeRequestTimeout),
		},
		Funnel: FunnelConfig{
			ID:                  stringWithDefault(lookup, "FUNNEL_ID", defaultFunnelID),
			Name:                stringWithDefault(lookup, "FUNNEL_NAME", defaultFunnelName),
			AppOrigin:           strings.TrimRight(stringWithDefault(lookup, "FUNNEL_APP_ORIGIN", ""), "/"),
			BasePath:            stringWithDefault(lookup, "FUNNEL_APP_BASEPATH", defaultBasePath),
			SessionTTL:          durationWithDefault(lookup, "FUNNEL_CHECKOUT_SESSION_TTL", defaultSessionTTL),
			ResolvePollInterval: durationWithDefault(lookup, "FUNNEL_RESOLVE_POLL_INTERVAL", defaultResolvePollInterval),
			ResolvePollAttempts: intWithDefault(lookup, "FUNNEL_RESOLVE_POLL_ATTEMPTS", defaultResolvePollAttempts),
		},
	}

	// The Bridge namespace lives under the storefront unless overridden.
	if cfg.Bridge.BaseURL == "" && cfg.Bridge.SiteBase != "" {
		cfg.Bridge.BaseURL = cfg.Bridge.SiteBase + "/wp-json/hp-funnel/v1"
	}
	if !strings.HasPrefix(cfg.Funnel.BasePath, "/") {
		cfg.Funnel.BasePath = "/" + cfg.Funnel.BasePath
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SuccessReturnURL is where the hosted payment page sends the buyer after a
// successful charge: the funnel's upsell step.
func (c FunnelConfig) SuccessReturnURL() string {
	base := c.BasePath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return c.AppOrigin + base + "upsell"
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Bridge.SiteBase == "" {
		missing = append(missing, "Bridge.SiteBase")
	} else if _, err := url.Parse(cfg.Bridge.SiteBase); err != nil {
		missing = append(missing, "Bridge.SiteBase")
	}
	if cfg.Bridge.BaseURL == "" {
		missing = append(missing, "Bridge.BaseURL")
	}
	if cfg.Funnel.ID == "" {
		missing = append(missing, "Funnel.ID")
	}
	if cfg.Funnel.AppOrigin == "" {
		missing = append(missing, "Funnel.AppOrigin")
	}
	if cfg.Funnel.ResolvePollAttempts <= 0 {
		missing = append(missing, "Funnel.ResolvePollAttempts")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
