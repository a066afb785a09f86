// Package config assembles daemon settings from defaults, an optional YAML file
// and FOCUS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the focus client.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		URL        string `yaml:"url"`
		SocketPath string `yaml:"socket_path"`
	} `yaml:"server"`

	Reconnect struct {
		Attempts int           `yaml:"attempts"`
		Delay    time.Duration `yaml:"delay"`
		Cooldown time.Duration `yaml:"cooldown"`
		// Upgrade is how often a long-polling connection retries the websocket.
		Upgrade time.Duration `yaml:"upgrade"`
	} `yaml:"reconnect"`

	Commands struct {
		Timeout        time.Duration `yaml:"timeout"`
		ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	} `yaml:"commands"`

	Sequencer struct {
		StepDelay   time.Duration `yaml:"step_delay"`
		SettleDelay time.Duration `yaml:"settle_delay"`
		EmptyDelay  time.Duration `yaml:"empty_delay"`
		StallAfter  time.Duration `yaml:"stall_after"`
	} `yaml:"sequencer"`

	HistoryCapacity int `yaml:"history_capacity"`

	View struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"view"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Stream        string `yaml:"stream"`
	} `yaml:"nats"`
}

// Default returns the built-in settings.
func Default() Config {
	var c Config
	c.LogLevel = "info"
	c.Server.URL = "http://localhost:8000"
	c.Server.SocketPath = "/socket.io/"
	c.Reconnect.Attempts = 5
	c.Reconnect.Delay = time.Second
	c.Reconnect.Cooldown = 10 * time.Second
	c.Reconnect.Upgrade = 30 * time.Second
	c.Commands.Timeout = 10 * time.Second
	c.Commands.ConfirmTimeout = 5 * time.Second
	c.Sequencer.StepDelay = 1200 * time.Millisecond
	c.Sequencer.SettleDelay = 3 * time.Second
	c.Sequencer.EmptyDelay = 2 * time.Second
	c.Sequencer.StallAfter = time.Minute
	c.HistoryCapacity = 60
	c.View.Addr = "127.0.0.1:8090"
	c.View.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	c.NATS.SubjectPrefix = "focus.events"
	return c
}

// Load builds the configuration. FOCUS_CONFIG names an optional YAML file.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("FOCUS_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep their value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if c.Reconnect.Attempts < 1 {
		errs = append(errs, fmt.Errorf("reconnect attempts must be at least 1, got %d", c.Reconnect.Attempts))
	}
	if c.Reconnect.Delay <= 0 || c.Reconnect.Cooldown <= 0 {
		errs = append(errs, errors.New("reconnect delay and cooldown must be positive"))
	}
	if c.Sequencer.StallAfter > 0 && c.Sequencer.StallAfter <= c.Sequencer.StepDelay {
		errs = append(errs, fmt.Errorf("sequencer stall_after (%s) must exceed step_delay (%s)", c.Sequencer.StallAfter, c.Sequencer.StepDelay))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("history capacity must be at least 1, got %d", c.HistoryCapacity))
	}
	return errors.Join(errs...)
}

func applyEnv(c *Config) {
	c.LogLevel = getEnv("FOCUS_LOG_LEVEL", c.LogLevel)

	c.Server.URL = getEnv("FOCUS_SERVER_URL", c.Server.URL)
	c.Server.SocketPath = getEnv("FOCUS_SOCKET_PATH", c.Server.SocketPath)

	c.Reconnect.Attempts = getEnvAsInt("FOCUS_RECONNECT_ATTEMPTS", c.Reconnect.Attempts)
	c.Reconnect.Delay = getEnvAsDuration("FOCUS_RECONNECT_DELAY", c.Reconnect.Delay)
	c.Reconnect.Cooldown = getEnvAsDuration("FOCUS_RECONNECT_COOLDOWN", c.Reconnect.Cooldown)
	c.Reconnect.Upgrade = getEnvAsDuration("FOCUS_RECONNECT_UPGRADE", c.Reconnect.Upgrade)

	c.Commands.Timeout = getEnvAsDuration("FOCUS_COMMAND_TIMEOUT", c.Commands.Timeout)
	c.Commands.ConfirmTimeout = getEnvAsDuration("FOCUS_CONFIRM_TIMEOUT", c.Commands.ConfirmTimeout)

	c.Sequencer.StepDelay = getEnvAsDuration("FOCUS_STEP_DELAY", c.Sequencer.StepDelay)
	c.Sequencer.SettleDelay = getEnvAsDuration("FOCUS_SETTLE_DELAY", c.Sequencer.SettleDelay)
	c.Sequencer.EmptyDelay = getEnvAsDuration("FOCUS_EMPTY_DELAY", c.Sequencer.EmptyDelay)
	c.Sequencer.StallAfter = getEnvAsDuration("FOCUS_STALL_AFTER", c.Sequencer.StallAfter)

	c.HistoryCapacity = getEnvAsInt("FOCUS_HISTORY_CAPACITY", c.HistoryCapacity)

	c.View.Addr = getEnv("FOCUS_VIEW_ADDR", c.View.Addr)
	c.View.AllowedOrigins = getEnvAsList("FOCUS_VIEW_ORIGINS", c.View.AllowedOrigins)

	c.NATS.URL = getEnv("FOCUS_NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("FOCUS_NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.Stream = getEnv("FOCUS_NATS_STREAM", c.NATS.Stream)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, skipping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
