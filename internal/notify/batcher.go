package notify

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinDelay = 2 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

// BatcherConfig controla o tamanho das ondas e a pausa entre elas
type BatcherConfig struct {
	MaxPerWave int
	MinDelay   time.Duration
	MaxDelay   time.Duration
}

// Report resume uma entrega
type Report struct {
	Waves   int
	Sent    int
	Failed  int
	Pending int // Notificações não enviadas por cancelamento
}

// Batcher entrega conjuntos de notificações em ondas
type Batcher struct {
	sender Sender
	logger *slog.Logger
	cfg    BatcherConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBatcher cria um Batcher. Valores zerados na configuração usam os padrões
// de 30 mensagens por onda e pausa entre 2 e 5 segundos.
func NewBatcher(sender Sender, logger *slog.Logger, cfg BatcherConfig) *Batcher {
	if cfg.MaxPerWave <= 0 {
		cfg.MaxPerWave = MaxMessagesPerSecond
	}
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay, cfg.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	return &Batcher{
		sender: sender,
		logger: logger,
		cfg:    cfg,
		sleep:  sleepContext,
	}
}

// Dispatch envia todas as notificações do conjunto. Cada onda tem no máximo
// MaxPerWave mensagens e nunca duas para o mesmo destinatário; falhas
// individuais são registradas e não são reenviadas. O conjunto recebido não é
// alterado. Só retorna erro quando o contexto é cancelado.
func (b *Batcher) Dispatch(ctx context.Context, notifications Set) (Report, error) {
	remaining := make(Set, len(notifications))
	for n := range notifications {
		remaining.Add(n)
	}

	var report Report
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			report.Pending = len(remaining)
			return report, err
		}

		wave := ChooseWave(remaining, b.cfg.MaxPerWave)
		sent, failed := b.sendWave(ctx, wave)
		report.Waves++
		report.Sent += sent
		report.Failed += failed

		for _, n := range wave {
			delete(remaining, n)
		}

		b.logger.Debug("Onda de notificações enviada",
			"wave", report.Waves,
			"size", len(wave),
			"failed", failed,
			"remaining", len(remaining))

		if len(remaining) == 0 {
			break
		}
		if err := b.sleep(ctx, b.delay()); err != nil {
			report.Pending = len(remaining)
			return report, err
		}
	}

	return report, nil
}

func (b *Batcher) sendWave(ctx context.Context, wave []Notification) (int, int) {
	var sent, failed atomic.Int64
	var g errgroup.Group

	for _, n := range wave {
		g.Go(func() error {
			if err := b.sender.Send(ctx, n.ReceiverID, n.Message); err != nil {
				failed.Add(1)
				if errors.Is(err, ErrRecipientBlocked) {
					b.logger.Warn("Usuário bloqueou o bot", "receiver_id", n.ReceiverID, "error", err)
				} else {
					b.logger.Error("Falha ao enviar notificação", "receiver_id", n.ReceiverID, "error", err)
				}
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(sent.Load()), int(failed.Load())
}

func (b *Batcher) delay() time.Duration {
	lo, hi := b.cfg.MinDelay, b.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
