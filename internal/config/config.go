// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all service configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Remote  RemoteConfig
	Preview PreviewConfig
	Session SessionConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	remote, err := loadRemoteConfig()
	if err != nil {
		return nil, err
	}

	preview, err := loadPreviewConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Log:     logCfg,
		Remote:  remote,
		Preview: preview,
		Session: session,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: pretty,
	}, nil
}

// RemoteConfig describes the upstream transformation/delivery service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadRemoteConfig() (RemoteConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("REMOTE_BASE_URL"))
	if baseURL == "" {
		return RemoteConfig{}, fmt.Errorf("REMOTE_BASE_URL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 30 * time.Second
	if override, err := parseOptionalIntEnv("REMOTE_TIMEOUT_SECONDS"); err != nil {
		return RemoteConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return RemoteConfig{}, fmt.Errorf("REMOTE_TIMEOUT_SECONDS must be positive")
		}
		timeout = time.Duration(*override) * time.Second
	}

	return RemoteConfig{BaseURL: baseURL, Timeout: timeout}, nil
}

// PreviewConfig tunes the preview pipeline.
type PreviewConfig struct {
	Debounce time.Duration
}

func loadPreviewConfig() (PreviewConfig, error) {
	debounce := 500 * time.Millisecond
	if override, err := parseOptionalIntEnv("PREVIEW_DEBOUNCE_MS"); err != nil {
		return PreviewConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return PreviewConfig{}, fmt.Errorf("PREVIEW_DEBOUNCE_MS must be positive")
		}
		debounce = time.Duration(*override) * time.Millisecond
	}
	return PreviewConfig{Debounce: debounce}, nil
}

// SessionConfig tunes the sign-in probe retry schedule.
type SessionConfig struct {
	MaxAttempts int
	Delays      []time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	attempts := 3
	if override, err := parseOptionalIntEnv("SESSION_MAX_ATTEMPTS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("SESSION_MAX_ATTEMPTS must be positive")
		}
		attempts = *override
	}

	delays := []time.Duration{time.Second, 2 * time.Second}
	if raw := strings.TrimSpace(os.Getenv("SESSION_RETRY_DELAYS")); raw != "" {
		parsed, err := parseDurationList(raw)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_RETRY_DELAYS value %q: %w", raw, err)
		}
		delays = parsed
	}

	return SessionConfig{MaxAttempts: attempts, Delays: delays}, nil
}

// parseDurationList parses a comma-separated list like "1s,2s,5s".
func parseDurationList(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative duration %s", d)
		}
		delays = append(delays, d)
	}
	return delays, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
