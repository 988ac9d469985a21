// Package config loads the server configuration from an optional .env file
// and the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"livedom/core/dlog"
	"livedom/dom/push"
	"livedom/dom/scheduling"
)

// Config is the server configuration.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogCaller  bool

	SSEHeartbeat time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PushTopicPrefix string
	PushFormat      push.EncodingFormat

	TaskZones         []scheduling.ZoneSpec
	ThreadZones       []scheduling.ZoneSpec
	DefaultTaskZone   string
	DefaultThreadZone string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr:        ":8080",
		LogLevel:          "info",
		SSEHeartbeat:      15 * time.Second,
		PushTopicPrefix:   "livedom",
		PushFormat:        push.EncodingFormatJSON,
		TaskZones:         scheduling.DefaultTaskZones(),
		ThreadZones:       scheduling.DefaultThreadZones(),
		DefaultTaskZone:   scheduling.ZoneMedium,
		DefaultThreadZone: scheduling.ZoneMedium,
	}
}

// Load reads envFile if it exists, then overrides the defaults with the
// environment. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "failed to load %s", envFile)
			}
		}
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("LOG_CALLER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, "LOG_CALLER")
		}
		cfg.LogCaller = b
	}

	if v, ok := get("SSE_HEARTBEAT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "SSE_HEARTBEAT")
		}
		if d <= 0 {
			return nil, errors.Errorf("SSE_HEARTBEAT: %s is not positive", v)
		}
		cfg.SSEHeartbeat = d
	}

	if v, ok := get("REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	if v, ok := get("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "REDIS_DB")
		}
		cfg.RedisDB = n
	}

	if v, ok := get("PUSH_TOPIC_PREFIX"); ok {
		cfg.PushTopicPrefix = v
	}
	if v, ok := get("PUSH_FORMAT"); ok {
		cfg.PushFormat = push.EncodingFormat(v)
	}

	if v, ok := get("SCHEDULER_TASK_ZONES"); ok {
		zones, err := scheduling.ParseZoneSpecs(v)
		if err != nil {
			return nil, errors.Wrap(err, "SCHEDULER_TASK_ZONES")
		}
		cfg.TaskZones = zones
	}
	if v, ok := get("SCHEDULER_THREAD_ZONES"); ok {
		zones, err := scheduling.ParseZoneSpecs(v)
		if err != nil {
			return nil, errors.Wrap(err, "SCHEDULER_THREAD_ZONES")
		}
		cfg.ThreadZones = zones
	}
	if v, ok := get("SCHEDULER_DEFAULT_TASK_ZONE"); ok {
		cfg.DefaultTaskZone = v
	}
	if v, ok := get("SCHEDULER_DEFAULT_THREAD_ZONE"); ok {
		cfg.DefaultThreadZone = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be checked while parsing.
func (c *Config) Validate() error {
	if _, err := dlog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	if _, err := push.GetEncoderDecoder(c.PushFormat); err != nil {
		return errors.Wrap(err, "PUSH_FORMAT")
	}
	if !hasZone(c.TaskZones, c.DefaultTaskZone) {
		return errors.Errorf("SCHEDULER_DEFAULT_TASK_ZONE: zone %q is not configured", c.DefaultTaskZone)
	}
	if !hasZone(c.ThreadZones, c.DefaultThreadZone) {
		return errors.Errorf("SCHEDULER_DEFAULT_THREAD_ZONE: zone %q is not configured", c.DefaultThreadZone)
	}
	return nil
}

// SchedulerOptions returns the scheduler options of the configuration.
func (c *Config) SchedulerOptions() *scheduling.Options {
	opts := scheduling.NewOptions()
	opts.TaskZones = c.TaskZones
	opts.ThreadZones = c.ThreadZones
	opts.DefaultTaskZone = c.DefaultTaskZone
	opts.DefaultThreadZone = c.DefaultThreadZone
	return opts
}

func hasZone(zones []scheduling.ZoneSpec, name string) bool {
	for _, z := range zones {
		if z.Name == name {
			return true
		}
	}
	return false
}
