package config

import (
	"log/slog"
	"testing"
	"time"

	"newspulse/internal/ratelimiter"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DBPath != "newspulse.sqlite" {
		t.Fatalf("unexpected DB path: %q", cfg.DBPath)
	}
	if cfg.Feed.Language != "en-US" || cfg.Feed.Region != "US" || cfg.Feed.Edition != "US:en" {
		t.Fatalf("unexpected feed locale: %+v", cfg.Feed)
	}
	if cfg.Article.MaxChars != 5000 {
		t.Fatalf("unexpected max chars: %d", cfg.Article.MaxChars)
	}

	intervals := cfg.Delays.Intervals()
	if intervals[ratelimiter.KeyArticle] != 2*time.Second {
		t.Fatalf("unexpected article delay: %v", intervals[ratelimiter.KeyArticle])
	}
	if intervals[ratelimiter.KeyOpenAI] != time.Second {
		t.Fatalf("unexpected summary delay: %v", intervals[ratelimiter.KeyOpenAI])
	}
	if intervals[ratelimiter.KeyEmotion] != 100*time.Millisecond {
		t.Fatalf("unexpected score delay: %v", intervals[ratelimiter.KeyEmotion])
	}

	policy := cfg.Retry.Policy()
	if policy.MaxAttempts != 3 || policy.Delay != 2*time.Second {
		t.Fatalf("unexpected retry policy: %+v", policy)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_FLEX", "true")
	t.Setenv("FEED_REGION", "GB")
	t.Setenv("DELAY_ARTICLE", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-test" || !cfg.OpenAI.Flex {
		t.Fatalf("unexpected OpenAI config: %+v", cfg.OpenAI)
	}
	if cfg.Feed.Region != "GB" {
		t.Fatalf("unexpected region: %q", cfg.Feed.Region)
	}
	if cfg.Delays.Article != 5*time.Second {
		t.Fatalf("unexpected article delay: %v", cfg.Delays.Article)
	}

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != slog.LevelDebug {
		t.Fatalf("unexpected level: %v", level)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-positive max chars", key: "ARTICLE_MAX_CHARS", value: "0"},
		{name: "bad duration", key: "DELAY_SCORE", value: "soon"},
		{name: "bad log level", key: "LOG_LEVEL", value: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
