package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	CORSOrigins string `yaml:"cors_origins"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	Quota   QuotaConfig   `yaml:"quota"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Fetcher FetcherConfig `yaml:"fetcher"`
	Upload  UploadConfig  `yaml:"upload"`
	AMQP    AMQPConfig    `yaml:"amqp"`
	History HistoryConfig `yaml:"history"`

	// InfoRatePerMin throttles metadata lookups per client IP.
	InfoRatePerMin int `yaml:"info_rate_per_min"`

	// Warnings lists values that validate replaced. Logged once the logger exists.
	Warnings []string `yaml:"-"`
}

type QuotaConfig struct {
	MaxPerDay int64         `yaml:"max_per_day"`
	Timezone  string        `yaml:"timezone"`
	Timeout   time.Duration `yaml:"timeout"`
}

type JobsConfig struct {
	WorkDir         string        `yaml:"work_dir"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	QueueWait       time.Duration `yaml:"queue_wait"`
	Timeout         time.Duration `yaml:"timeout"`
	ArtifactTTL     time.Duration `yaml:"artifact_ttl"`
	DefaultFormat   string        `yaml:"default_format"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

type FetcherConfig struct {
	YtDlpPath     string `yaml:"ytdlp_path"`
	YouTubeNative bool   `yaml:"youtube_native"`
}

type UploadConfig struct {
	CloudName     string `yaml:"cloudinary_cloud_name"`
	APIKey        string `yaml:"cloudinary_api_key"`
	APISecret     string `yaml:"cloudinary_api_secret"`
	Folder        string `yaml:"folder"`
	PublicDir     string `yaml:"public_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// Cloudinary reports whether durable uploads go to Cloudinary rather than the local public dir.
func (u UploadConfig) Cloudinary() bool {
	return u.CloudName != "" && u.APIKey != "" && u.APISecret != ""
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads .env, then an optional YAML file named by CONFIG_FILE, then
// environment overrides. Environment always wins over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	base := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		base = fromFile
	}

	cfg := &Config{
		Port:        getEnv("PORT", or(base.Port, "8000")),
		Environment: getEnv("ENVIRONMENT", or(base.Environment, "development")),
		LogLevel:    getEnv("LOG_LEVEL", or(base.LogLevel, "info")),
		CORSOrigins: getEnv("CORS_ORIGINS", or(base.CORSOrigins, "*")),
		DatabaseURL: getEnv("DATABASE_URL", base.DatabaseURL),
		RedisURL:    getEnv("REDIS_URL", base.RedisURL),
		Quota: QuotaConfig{
			MaxPerDay: int64(getEnvInt("MAX_DOWNLOADS_PER_DAY", int(base.Quota.MaxPerDay))),
			Timezone:  getEnv("QUOTA_TIMEZONE", base.Quota.Timezone),
			Timeout:   getEnvDuration("QUOTA_TIMEOUT", base.Quota.Timeout),
		},
		Jobs: JobsConfig{
			WorkDir:         getEnv("WORK_DIR", base.Jobs.WorkDir),
			MaxConcurrent:   getEnvInt("MAX_CONCURRENT_JOBS", base.Jobs.MaxConcurrent),
			QueueWait:       getEnvDuration("JOB_QUEUE_WAIT", base.Jobs.QueueWait),
			Timeout:         getEnvDuration("JOB_TIMEOUT", base.Jobs.Timeout),
			ArtifactTTL:     getEnvDuration("ARTIFACT_TTL", base.Jobs.ArtifactTTL),
			DefaultFormat:   getEnv("DEFAULT_FORMAT", base.Jobs.DefaultFormat),
			JanitorInterval: getEnvDuration("JANITOR_INTERVAL", base.Jobs.JanitorInterval),
		},
		Fetcher: FetcherConfig{
			YtDlpPath:     getEnv("YTDLP_PATH", base.Fetcher.YtDlpPath),
			YouTubeNative: getEnvBool("YOUTUBE_NATIVE", base.Fetcher.YouTubeNative),
		},
		Upload: UploadConfig{
			CloudName:     getEnv("CLOUDINARY_CLOUD_NAME", base.Upload.CloudName),
			APIKey:        getEnv("CLOUDINARY_API_KEY", base.Upload.APIKey),
			APISecret:     getEnv("CLOUDINARY_API_SECRET", base.Upload.APISecret),
			Folder:        getEnv("UPLOAD_FOLDER", base.Upload.Folder),
			PublicDir:     getEnv("PUBLIC_DIR", base.Upload.PublicDir),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", base.Upload.PublicBaseURL),
		},
		AMQP: AMQPConfig{
			URL:        getEnv("AMQP_URL", base.AMQP.URL),
			Exchange:   getEnv("AMQP_EXCHANGE", base.AMQP.Exchange),
			RoutingKey: getEnv("AMQP_ROUTING_KEY", base.AMQP.RoutingKey),
			QueueName:  getEnv("AMQP_QUEUE", base.AMQP.QueueName),
		},
		History: HistoryConfig{
			DefaultLimit: getEnvInt("HISTORY_DEFAULT_LIMIT", base.History.DefaultLimit),
			MaxLimit:     getEnvInt("HISTORY_MAX_LIMIT", base.History.MaxLimit),
		},
		InfoRatePerMin: getEnvInt("INFO_RATE_PER_MIN", base.InfoRatePerMin),
	}

	cfg.setDefaults()
	validate(cfg)
	return cfg, nil
}

// LoadFile parses a YAML config file. ${VAR} references are expanded from the environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Location resolves the quota time zone. Unknown names fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) setDefaults() {
	if c.Quota.MaxPerDay == 0 {
		c.Quota.MaxPerDay = 5
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "UTC"
	}
	if c.Quota.Timeout == 0 {
		c.Quota.Timeout = 2 * time.Second
	}
	if c.Jobs.WorkDir == "" {
		c.Jobs.WorkDir = filepath.Join(os.TempDir(), "socio-jobs")
	}
	if c.Jobs.MaxConcurrent == 0 {
		c.Jobs.MaxConcurrent = 3
	}
	if c.Jobs.QueueWait == 0 {
		c.Jobs.QueueWait = 10 * time.Second
	}
	if c.Jobs.Timeout == 0 {
		c.Jobs.Timeout = 10 * time.Minute
	}
	if c.Jobs.ArtifactTTL == 0 {
		c.Jobs.ArtifactTTL = 24 * time.Hour
	}
	if c.Jobs.DefaultFormat == "" {
		c.Jobs.DefaultFormat = "best[height<=720]"
	}
	if c.Jobs.JanitorInterval == 0 {
		c.Jobs.JanitorInterval = 15 * time.Minute
	}
	if c.Fetcher.YtDlpPath == "" {
		c.Fetcher.YtDlpPath = "yt-dlp"
	}
	if c.Upload.Folder == "" {
		c.Upload.Folder = "downloads"
	}
	if c.Upload.PublicDir == "" {
		c.Upload.PublicDir = "public"
	}
	if c.Upload.PublicBaseURL == "" {
		c.Upload.PublicBaseURL = "http://localhost:" + c.Port
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "socio"
	}
	if c.AMQP.RoutingKey == "" {
		c.AMQP.RoutingKey = "jobs"
	}
	if c.AMQP.QueueName == "" {
		c.AMQP.QueueName = "socio_jobs"
	}
	if c.History.DefaultLimit == 0 {
		c.History.DefaultLimit = 20
	}
	if c.History.MaxLimit == 0 {
		c.History.MaxLimit = 100
	}
	if c.InfoRatePerMin == 0 {
		c.InfoRatePerMin = 30
	}
}

// validate keeps the server from starting with values that cannot work.
func validate(cfg *Config) {
	if cfg.Quota.MaxPerDay < 1 {
		cfg.warn("MAX_DOWNLOADS_PER_DAY must be at least 1, resetting to 5")
		cfg.Quota.MaxPerDay = 5
	}
	if cfg.Jobs.MaxConcurrent < 1 {
		cfg.warn("MAX_CONCURRENT_JOBS must be at least 1, resetting to 3")
		cfg.Jobs.MaxConcurrent = 3
	}
	if cfg.History.MaxLimit < 1 {
		cfg.History.MaxLimit = 100
	}
	if cfg.History.DefaultLimit < 1 || cfg.History.DefaultLimit > cfg.History.MaxLimit {
		cfg.History.DefaultLimit = min(20, cfg.History.MaxLimit)
	}
	if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
		cfg.warn(fmt.Sprintf("unknown QUOTA_TIMEZONE %q, using UTC", cfg.Quota.Timezone))
		cfg.Quota.Timezone = "UTC"
	}
	cfg.Upload.PublicBaseURL = strings.TrimRight(cfg.Upload.PublicBaseURL, "/")
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
