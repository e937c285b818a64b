package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "ExonVC Invest"
	defaultAppEnv        = "development"
	defaultLogLevel      = "info"
	defaultAPIBaseURL    = "https://invest.exonvc.ir"
	defaultHTTPTimeout   = 30 * time.Second
	defaultStubPort      = "8080"
	defaultShutdownDelay = 10 * time.Second
	defaultOTPTTL        = 5 * time.Minute
	defaultOTPPerMinute  = 5

	httpTimeoutSecondsEnvVar = "HTTP_TIMEOUT_SECONDS"
	httpTimeoutDurEnvVar     = "HTTP_TIMEOUT"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
)

// Config captures runtime configuration for the client and the local
// identity stub, loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	LogLevel    string
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Session persistence. SessionFile is the bbolt database holding the
	// credential pair; SessionRedisURL switches persistence to Redis when
	// set. SessionKey, when non-empty, enables encryption at rest.
	SessionFile     string
	SessionRedisURL string
	SessionKey      string

	// Identity stub server settings.
	StubPort       string
	StubTokenKey   string
	OTPTTL         time.Duration
	OTPPerMinute   int
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIBaseURL:      getEnv("EXONVC_API_URL", defaultAPIBaseURL),
		HTTPTimeout:     defaultHTTPTimeout,
		SessionRedisURL: os.Getenv("EXONVC_SESSION_REDIS_URL"),
		SessionKey:      os.Getenv("EXONVC_SESSION_KEY"),
		StubPort:        getEnv("PORT", defaultStubPort),
		StubTokenKey:    getEnv("EXONVC_STUB_TOKEN_KEY", "exonvc-identity-stub-key"),
		OTPTTL:          defaultOTPTTL,
		OTPPerMinute:    defaultOTPPerMinute,
		ShutdownPeriod:  defaultShutdownDelay,
	}

	if v := os.Getenv(httpTimeoutSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", httpTimeoutSecondsEnvVar, err)
		}
		cfg.HTTPTimeout = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(httpTimeoutDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", httpTimeoutDurEnvVar, err)
		}
		cfg.HTTPTimeout = d
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv("EXONVC_OTP_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EXONVC_OTP_TTL: %w", err)
		}
		cfg.OTPTTL = d
	}

	if v := os.Getenv("EXONVC_OTP_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EXONVC_OTP_PER_MINUTE: %w", err)
		}
		cfg.OTPPerMinute = n
	}

	cfg.SessionFile = os.Getenv("EXONVC_SESSION_FILE")
	if cfg.SessionFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.SessionFile = filepath.Join(home, ".exonvc", "session.db")
	}

	return cfg, nil
}

// StubAddress returns the stub listen address in the format Fiber expects.
func (c Config) StubAddress() string {
	if strings.HasPrefix(c.StubPort, ":") {
		return c.StubPort
	}
	return fmt.Sprintf(":%s", c.StubPort)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
