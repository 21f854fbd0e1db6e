package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"newspulse/internal/ratelimiter"
	"newspulse/internal/retry"
)

type Config struct {
	DBPath          string `env:"DB_PATH"          envDefault:"newspulse.sqlite"`
	LogLevel        string `env:"LOG_LEVEL"        envDefault:"info"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
	HFToken         string `env:"HF_TOKEN,unset"`

	Feed     Feed     `envPrefix:"FEED_"`
	Article  Article  `envPrefix:"ARTICLE_"`
	OpenAI   OpenAI   `envPrefix:"OPENAI_"`
	Emotion  Emotion  `envPrefix:"EMOTION_"`
	Delays   Delays   `envPrefix:"DELAY_"`
	Retry    Retry    `envPrefix:"RETRY_"`
	Schedule Schedule `envPrefix:"SCHEDULE_"`
}

type Feed struct {
	BaseURL   string        `env:"BASE_URL"   envDefault:"https://news.google.com/rss/search"`
	Language  string        `env:"LANGUAGE"   envDefault:"en-US"`
	Region    string        `env:"REGION"     envDefault:"US"`
	Edition   string        `env:"EDITION"    envDefault:"US:en"`
	UserAgent string        `env:"USER_AGENT"`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"10s"`
}

type Article struct {
	MaxChars int           `env:"MAX_CHARS" envDefault:"5000"`
	Timeout  time.Duration `env:"TIMEOUT"   envDefault:"20s"`
}

type OpenAI struct {
	APIKey          string        `env:"API_KEY,unset"`
	Model           string        `env:"MODEL"`
	ReasoningEffort string        `env:"REASONING_EFFORT" envDefault:"low"`
	Flex            bool          `env:"FLEX"`
	Topic           string        `env:"TOPIC"`
	CacheSize       int           `env:"CACHE_SIZE"       envDefault:"1024"`
	CacheTTL        time.Duration `env:"CACHE_TTL"        envDefault:"24h"`
}

type Emotion struct {
	Model    string        `env:"MODEL"    envDefault:"Panda0116/emotion-classification-model"`
	Endpoint string        `env:"ENDPOINT" envDefault:"https://router.huggingface.co/hf-inference/models/"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}

// Delays are the minimum intervals between two calls to one service.
type Delays struct {
	Query   time.Duration `env:"QUERY"   envDefault:"1s"`
	Article time.Duration `env:"ARTICLE" envDefault:"2s"`
	Summary time.Duration `env:"SUMMARY" envDefault:"1s"`
	Score   time.Duration `env:"SCORE"   envDefault:"100ms"`
}

type Retry struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	Delay       time.Duration `env:"DELAY"        envDefault:"2s"`
	MaxDelay    time.Duration `env:"MAX_DELAY"    envDefault:"30s"`
}

type Schedule struct {
	JobsFile string `env:"JOBS_FILE" envDefault:"jobs.yaml"`
	Timezone string `env:"TIMEZONE"  envDefault:"UTC"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Article.MaxChars <= 0 {
		return Config{}, fmt.Errorf("ARTICLE_MAX_CHARS must be positive (value = %d)", cfg.Article.MaxChars)
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	return level, nil
}

// Intervals maps pacing keys to the configured delays.
func (d Delays) Intervals() map[string]time.Duration {
	return map[string]time.Duration{
		ratelimiter.KeyFeed:    d.Query,
		ratelimiter.KeyArticle: d.Article,
		ratelimiter.KeyOpenAI:  d.Summary,
		ratelimiter.KeyEmotion: d.Score,
	}
}

func (r Retry) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		Delay:       r.Delay,
		Multiplier:  retry.DefaultMultiplier,
		MaxDelay:    r.MaxDelay,
	}
}
