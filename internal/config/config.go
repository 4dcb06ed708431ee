package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobarin/montage/internal/timeline"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port           string
	APIKey         string // empty = no auth, dev mode
	AllowedOrigins string // comma-separated; empty = *, dev mode

	DatabaseURL string
	RedisURL    string

	// Worker
	MaxConcurrentJobs int
	TempDir           string

	// Engine
	FFmpegPath       string
	ProbeTimeout     time.Duration
	FreezeShortClips bool
	FontsDir         string

	// Pacing
	TargetSegmentSeconds float64
	MaxTransitionSeconds float64

	S3    S3Config
	Kafka KafkaConfig

	LogLevel  string
	LogFormat string // "json" or "console"
}

type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
}

// Enabled reports whether finished videos can be published.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

type KafkaConfig struct {
	Brokers []string
	Group   string
	Topic   string
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// Load reads .env (when present), then the optional config file, then the
// environment. Environment variables win over the file. configFile may be
// empty, in which case montage.yaml is looked up in the working directory.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("montage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:                 v.GetString("port"),
		APIKey:               v.GetString("api_key"),
		AllowedOrigins:       v.GetString("allowed_origins"),
		DatabaseURL:          v.GetString("database_url"),
		RedisURL:             v.GetString("redis_url"),
		MaxConcurrentJobs:    v.GetInt("max_concurrent_jobs"),
		TempDir:              v.GetString("temp_dir"),
		FFmpegPath:           v.GetString("ffmpeg_path"),
		ProbeTimeout:         v.GetDuration("probe_timeout"),
		FreezeShortClips:     v.GetBool("freeze_short_clips"),
		FontsDir:             v.GetString("fonts_dir"),
		TargetSegmentSeconds: v.GetFloat64("target_segment_seconds"),
		MaxTransitionSeconds: v.GetFloat64("max_transition_seconds"),
		S3: S3Config{
			Bucket:   v.GetString("s3_bucket"),
			Region:   v.GetString("s3_region"),
			Prefix:   v.GetString("s3_prefix"),
			Endpoint: v.GetString("s3_endpoint"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Group:   v.GetString("kafka_group"),
			Topic:   v.GetString("render_topic"),
		},
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.MaxConcurrentJobs > 3 {
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.TargetSegmentSeconds <= 0 {
		return nil, fmt.Errorf("TARGET_SEGMENT_SECONDS must be positive")
	}
	if cfg.MaxTransitionSeconds < 0 {
		return nil, fmt.Errorf("MAX_TRANSITION_SECONDS must not be negative")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("max_concurrent_jobs", 2)
	v.SetDefault("temp_dir", "/tmp/montage")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("probe_timeout", "30s")
	v.SetDefault("freeze_short_clips", true)
	v.SetDefault("target_segment_seconds", timeline.DefaultPacing.TargetSegment)
	v.SetDefault("max_transition_seconds", timeline.DefaultPacing.MaxTransition)
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_prefix", "renders")
	v.SetDefault("kafka_group", "montage")
	v.SetDefault("render_topic", "render-requests")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	// Keys without a default still need registering for AutomaticEnv lookups.
	for _, key := range []string{"api_key", "allowed_origins", "database_url", "fonts_dir", "s3_bucket", "s3_endpoint", "kafka_brokers"} {
		v.SetDefault(key, "")
	}
}

// ValidateServer checks what the API server needs beyond the CLI.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// Pacing is the planner configuration.
func (c *Config) Pacing() timeline.Pacing {
	p := timeline.DefaultPacing
	p.TargetSegment = c.TargetSegmentSeconds
	p.MaxTransition = c.MaxTransitionSeconds
	return p
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
