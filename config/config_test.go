package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_PATH", "CHECK_INTERVAL_MINUTES", "MAX_MESSAGES_PER_WAVE",
		"WAVE_MIN_DELAY_SECONDS", "WAVE_MAX_DELAY_SECONDS", "FETCH_CONCURRENCY",
		"FETCH_TIMEOUT_SECONDS", "REDIS_ADDR", "REDIS_DB", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabasePath != "./products.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.CheckInterval != 12*time.Hour {
		t.Errorf("CheckInterval = %v, want 12h", cfg.CheckInterval)
	}
	if cfg.MaxMessagesPerWave != 30 || cfg.WaveMinDelay != 2*time.Second || cfg.WaveMaxDelay != 5*time.Second {
		t.Errorf("wave settings = %d %v %v", cfg.MaxMessagesPerWave, cfg.WaveMinDelay, cfg.WaveMaxDelay)
	}
	if cfg.FetchConcurrency != 0 || cfg.FetchTimeout != 30*time.Second {
		t.Errorf("fetch settings = %d %v", cfg.FetchConcurrency, cfg.FetchTimeout)
	}
	if cfg.RedisAddr != "" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("redis/log = %q %v", cfg.RedisAddr, cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DATABASE_PATH", "/data/bot.db")
	t.Setenv("CHECK_INTERVAL_MINUTES", "60")
	t.Setenv("MAX_MESSAGES_PER_WAVE", "10")
	t.Setenv("WAVE_MIN_DELAY_SECONDS", "1")
	t.Setenv("WAVE_MAX_DELAY_SECONDS", "3")
	t.Setenv("FETCH_CONCURRENCY", "8")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabasePath != "/data/bot.db" || cfg.CheckInterval != time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxMessagesPerWave != 10 || cfg.WaveMinDelay != time.Second || cfg.WaveMaxDelay != 3*time.Second {
		t.Errorf("wave settings = %d %v %v", cfg.MaxMessagesPerWave, cfg.WaveMinDelay, cfg.WaveMaxDelay)
	}
	if cfg.FetchConcurrency != 8 || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("CHECK_INTERVAL_MINUTES", "abc")
	t.Setenv("WAVE_MIN_DELAY_SECONDS", "")
	t.Setenv("WAVE_MAX_DELAY_SECONDS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CheckInterval != 12*time.Hour {
		t.Errorf("invalid interval should fall back to default, got %v", cfg.CheckInterval)
	}

	t.Setenv("WAVE_MIN_DELAY_SECONDS", "9")
	if _, err := Load(); err == nil {
		t.Error("Load() should reject min delay above max delay")
	}

	t.Setenv("WAVE_MIN_DELAY_SECONDS", "")
	t.Setenv("LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Error("Load() should reject an unknown LOG_LEVEL")
	}
}
