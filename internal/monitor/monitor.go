package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bot-monitor/internal/diff"
	"bot-monitor/internal/models"
	"bot-monitor/internal/notify"
	"bot-monitor/internal/render"
)

// DefaultInterval é o intervalo padrão entre ciclos de verificação
const DefaultInterval = 12 * time.Hour

// Store é o armazenamento usado pelo monitor
type Store interface {
	TrackedProducts(ctx context.Context) ([]models.Product, error)
	Subscriptions(ctx context.Context) ([]models.Subscription, error)
	UpsertProducts(ctx context.Context, products []models.Product) error
	DeleteOptionsByID(ctx context.Context, ids []int64) error
	DeleteProductsByID(ctx context.Context, ids []int64) error
}

// Dispatcher entrega um conjunto de notificações
type Dispatcher interface {
	Dispatch(ctx context.Context, notifications notify.Set) (notify.Report, error)
}

// Monitor gerencia o monitoramento periódico de produtos
type Monitor struct {
	store      Store
	fetcher    *Fetcher
	dispatcher Dispatcher
	remover    *Remover
	interval   time.Duration
	logger     *slog.Logger
}

// New cria uma nova instância do monitor
func New(store Store, fetcher *Fetcher, dispatcher Dispatcher, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		store:      store,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		remover:    NewRemover(store, dispatcher, logger),
		interval:   interval,
		logger:     logger,
	}
}

// Start executa um ciclo imediatamente e, ao fim de cada ciclo, espera o
// intervalo antes do próximo, até o contexto ser cancelado. Falhas de um
// ciclo são apenas registradas.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Monitor iniciado", "interval", m.interval)

	m.runLogged(ctx)

	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor encerrado")
			return
		case <-timer.C:
			m.runLogged(ctx)
			timer.Reset(m.interval)
		}
	}
}

func (m *Monitor) runLogged(ctx context.Context) {
	start := time.Now()
	if err := m.RunCycle(ctx); err != nil {
		m.logger.Error("Ciclo de verificação com falhas", "error", err, "duration", time.Since(start))
		return
	}
	m.logger.Info("Ciclo de verificação concluído", "duration", time.Since(start))
}

// RunCycle executa um ciclo completo: coleta, comparação, notificação,
// persistência e tratamento de produtos removidos do site.
func (m *Monitor) RunCycle(ctx context.Context) error {
	products, err := m.store.TrackedProducts(ctx)
	if err != nil {
		return fmt.Errorf("load tracked products: %w", err)
	}
	if len(products) == 0 {
		m.logger.Debug("Nenhum produto monitorado")
		return nil
	}

	subs, err := m.store.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	urls := make([]string, len(products))
	byURL := make(map[string]models.Product, len(products))
	for i, p := range products {
		urls[i] = p.URL
		byURL[p.URL] = p
	}

	scraped, unavailable := m.fetcher.FetchAll(ctx, urls)

	gone := make(map[string]bool, len(unavailable))
	for _, url := range unavailable {
		gone[url] = true
	}

	subscribers := models.SubscribersByProduct(subs)
	notifications := notify.NewSet()
	var updated []models.Product
	var outdated []int64

	for _, s := range scraped {
		old, ok := byURL[s.URL]
		if !ok || gone[s.URL] {
			continue
		}
		if !diff.OptionsChanged(old.Options, s.Options) {
			continue
		}

		m.logger.Info("Produto alterado", "product_id", old.ID, "url", old.URL)
		notifications.AddAll(subscribers[old.ID], render.ChangeMessage(s, old))
		updated = append(updated, diff.UpdateWith(old, s))
		outdated = append(outdated, diff.OutdatedOptionIDs(old, s)...)
	}

	var errs []error

	if len(notifications) > 0 {
		report, err := m.dispatcher.Dispatch(ctx, notifications)
		m.logger.Info("Notificações de alteração enviadas",
			"waves", report.Waves,
			"sent", report.Sent,
			"failed", report.Failed)
		if err != nil {
			errs = append(errs, fmt.Errorf("dispatch change notifications: %w", err))
		}
	}

	if err := m.store.UpsertProducts(ctx, updated); err != nil {
		m.logger.Error("Erro ao salvar produtos", "count", len(updated), "error", err)
		errs = append(errs, fmt.Errorf("save products: %w", err))
	}
	if err := m.store.DeleteOptionsByID(ctx, outdated); err != nil {
		m.logger.Error("Erro ao apagar opções", "count", len(outdated), "error", err)
		errs = append(errs, fmt.Errorf("delete outdated options: %w", err))
	}

	if len(unavailable) > 0 {
		if err := m.remover.Handle(ctx, unavailable, products, subs); err != nil {
			m.logger.Error("Erro ao remover produtos indisponíveis", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
