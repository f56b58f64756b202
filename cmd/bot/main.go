package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bot-monitor/config"
	"bot-monitor/internal/bot"
	"bot-monitor/internal/database"
	"bot-monitor/internal/monitor"
	"bot-monitor/internal/notify"
	"bot-monitor/internal/scraper"
	"bot-monitor/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		logger.Info("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Erro ao carregar configurações", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Bot encerrado com erro", "error", err)
		os.Exit(1)
	}
	logger.Info("Bot encerrado")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Inicializar bot do Telegram
	telegramBot, err := bot.Init(cfg.TelegramBotToken, logger)
	if err != nil {
		return err
	}

	// Um único cliente HTTP compartilha o pool de conexões entre as coletas
	client := &http.Client{Timeout: cfg.FetchTimeout}
	registry := scraper.NewRegistry(client, logger)

	batcher := notify.NewBatcher(notify.NewTelegramSender(telegramBot), logger, notify.BatcherConfig{
		MaxPerWave: cfg.MaxMessagesPerWave,
		MinDelay:   cfg.WaveMinDelay,
		MaxDelay:   cfg.WaveMaxDelay,
	})

	fetcher := monitor.NewFetcher(registry, logger, cfg.FetchConcurrency)
	monitorInstance := monitor.New(db, fetcher, batcher, cfg.CheckInterval, logger)

	sessions := sessionStore(ctx, cfg, logger)

	// Iniciar monitoramento em background
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitorInstance.Start(ctx)
	}()

	// Atender comandos até o sinal de encerramento
	bot.NewHandler(telegramBot, db, registry, sessions, logger).Run(ctx)

	// O banco só é fechado depois que o ciclo em andamento termina
	logger.Info("Encerrando bot...")
	<-done
	return nil
}

// sessionStore usa o Redis quando configurado e cai para memória se a
// conexão falhar
func sessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) session.Store {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(session.DefaultTTL)
	}

	client, err := session.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis indisponível, sessões ficarão em memória", "error", err)
		return session.NewMemoryStore(session.DefaultTTL)
	}

	logger.Info("Sessões no Redis", "addr", cfg.RedisAddr)
	context.AfterFunc(ctx, func() { client.Close() })
	return session.NewRedisStore(client, session.DefaultTTL)
}
