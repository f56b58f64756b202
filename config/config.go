package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	CheckInterval    time.Duration

	MaxMessagesPerWave int
	WaveMinDelay       time.Duration
	WaveMaxDelay       time.Duration

	FetchConcurrency int
	FetchTimeout     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel slog.Level
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN não configurado")
	}

	cfg := &Config{
		TelegramBotToken:   token,
		DatabasePath:       "./products.db",
		CheckInterval:      time.Duration(intEnv("CHECK_INTERVAL_MINUTES", 720)) * time.Minute,
		MaxMessagesPerWave: intEnv("MAX_MESSAGES_PER_WAVE", 30),
		WaveMinDelay:       time.Duration(intEnv("WAVE_MIN_DELAY_SECONDS", 2)) * time.Second,
		WaveMaxDelay:       time.Duration(intEnv("WAVE_MAX_DELAY_SECONDS", 5)) * time.Second,
		FetchTimeout:       time.Duration(intEnv("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}

	// 0 dispara todas as coletas de uma vez
	if v, err := strconv.Atoi(os.Getenv("FETCH_CONCURRENCY")); err == nil && v >= 0 {
		cfg.FetchConcurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && v >= 0 {
		cfg.RedisDB = v
	}

	if cfg.WaveMinDelay > cfg.WaveMaxDelay {
		return nil, fmt.Errorf("WAVE_MIN_DELAY_SECONDS (%v) maior que WAVE_MAX_DELAY_SECONDS (%v)", cfg.WaveMinDelay, cfg.WaveMaxDelay)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL inválido: %w", err)
		}
	}

	return cfg, nil
}

// intEnv lê um inteiro positivo; valores ausentes ou inválidos usam o padrão
func intEnv(key string, def int) int {
	if parsed, err := strconv.Atoi(os.Getenv(key)); err == nil && parsed > 0 {
		return parsed
	}
	return def
}
