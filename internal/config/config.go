package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hansbyte/pairgate/pkg/api"
)

type (
	// Config holds configuration settings for the pairing service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Sessions
		SessionRoot    string
		DefaultNumber  string
		ClientDriver   string
		ClientName     string
		ProtocolDomain string

		// Export
		BucketURL     string
		PublicBaseURL string
		TokenPrefix   string

		// Pairing & Retry
		Retry          api.RetryConfig
		PairDelay      int64
		StabilizeDelay int64

		ShutdownTimeout time.Duration
	}
)

const (
	DefaultPairDelay       = 2 * api.Second
	DefaultStabilizeDelay  = 10 * api.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultSessionRoot    = "./sessions"
	DefaultNumber         = "15550000000"
	DefaultClientDriver   = "sim"
	DefaultClientName     = "HANS-BYTE"
	DefaultProtocolDomain = "s.whatsapp.net"

	DefaultBucketURL     = "file:///tmp/pairgate/exports?create_dir=1"
	DefaultPublicBaseURL = "https://mega.nz/file/"
	DefaultTokenPrefix   = "HANS-BYTE~"

	DefaultMaxRetries  = 5
	DefaultBackoff     = 10 * api.Second
	DefaultMaxBackoff  = 60 * api.Second
	DefaultBackoffType = api.BackoffTypeFixed

	MaxRetryCount = 1000
	MaxDelay      = 10 * api.Minute // in ms
	MaxBackoffCap = 24 * 60 * api.Minute
)

var (
	ErrInvalidAPIPort       = errors.New("invalid API port")
	ErrInvalidDefaultNumber = errors.New(
		"default number must contain only digits",
	)
	ErrSessionRootEmpty  = errors.New("session root cannot be empty")
	ErrClientDriverEmpty = errors.New("client driver cannot be empty")
	ErrBucketURLEmpty    = errors.New("bucket URL cannot be empty")
	ErrInvalidMaxRetries = errors.New("max retries cannot be zero")
	ErrInvalidBackoff    = errors.New("reconnect backoff must be positive")
	ErrInvalidMaxBackoff = errors.New(
		"max backoff must be >= reconnect backoff",
	)
	ErrInvalidBackoffType = errors.New("invalid backoff type")
	ErrNegativeDelay      = errors.New("delays cannot be negative")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// API server, session handling, export, and retry behavior
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:        DefaultAPIPort,
		APIHost:        DefaultAPIHost,
		LogLevel:       "info",
		SessionRoot:    DefaultSessionRoot,
		DefaultNumber:  DefaultNumber,
		ClientDriver:   DefaultClientDriver,
		ClientName:     DefaultClientName,
		ProtocolDomain: DefaultProtocolDomain,
		BucketURL:      DefaultBucketURL,
		PublicBaseURL:  DefaultPublicBaseURL,
		TokenPrefix:    DefaultTokenPrefix,
		Retry: api.RetryConfig{
			MaxRetries:  DefaultMaxRetries,
			BackoffMs:   DefaultBackoff,
			MaxBackoff:  DefaultMaxBackoff,
			BackoffType: DefaultBackoffType,
		},
		PairDelay:       DefaultPairDelay,
		StabilizeDelay:  DefaultStabilizeDelay,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if sessionRoot := os.Getenv("SESSION_ROOT"); sessionRoot != "" {
		c.SessionRoot = sessionRoot
	}
	if number := os.Getenv("DEFAULT_NUMBER"); number != "" {
		c.DefaultNumber = number
	}
	if driver := os.Getenv("CLIENT_DRIVER"); driver != "" {
		c.ClientDriver = driver
	}
	if name := os.Getenv("CLIENT_NAME"); name != "" {
		c.ClientName = name
	}
	if domain := os.Getenv("PROTOCOL_DOMAIN"); domain != "" {
		c.ProtocolDomain = domain
	}
	if bucketURL := os.Getenv("BUCKET_URL"); bucketURL != "" {
		c.BucketURL = bucketURL
	}
	if baseURL := os.Getenv("PUBLIC_BASE_URL"); baseURL != "" {
		c.PublicBaseURL = baseURL
	}
	if prefix := os.Getenv("TOKEN_PREFIX"); prefix != "" {
		c.TokenPrefix = prefix
	}
	if backoffType := os.Getenv("RECONNECT_BACKOFF_TYPE"); backoffType != "" {
		c.Retry.BackoffType = backoffType
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}

	if err := loadEnvInt(
		"PAIR_DELAY", &c.PairDelay, -1, MaxDelay,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STABILIZE_DELAY", &c.StabilizeDelay, -1, MaxDelay,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"MAX_RETRIES", &c.Retry.MaxRetries, 0, MaxRetryCount,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RECONNECT_BACKOFF", &c.Retry.BackoffMs, 0, MaxBackoffCap,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RECONNECT_MAX_BACKOFF", &c.Retry.MaxBackoff, 0, MaxBackoffCap,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if !api.SessionID(c.DefaultNumber).IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDefaultNumber, c.DefaultNumber)
	}

	if c.SessionRoot == "" {
		return ErrSessionRootEmpty
	}

	if c.ClientDriver == "" {
		return ErrClientDriverEmpty
	}

	if c.BucketURL == "" {
		return ErrBucketURLEmpty
	}

	if c.PairDelay < 0 || c.StabilizeDelay < 0 {
		return ErrNegativeDelay
	}

	if c.Retry.MaxRetries == 0 {
		return ErrInvalidMaxRetries
	}

	if c.Retry.BackoffMs <= 0 {
		return ErrInvalidBackoff
	}

	if c.Retry.MaxBackoff < c.Retry.BackoffMs {
		return ErrInvalidMaxBackoff
	}

	if c.Retry.BackoffType != api.BackoffTypeFixed &&
		c.Retry.BackoffType != api.BackoffTypeLinear &&
		c.Retry.BackoffType != api.BackoffTypeExponential {
		return fmt.Errorf("%w: %s",
			ErrInvalidBackoffType, c.Retry.BackoffType)
	}

	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
