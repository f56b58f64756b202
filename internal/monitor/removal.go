package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"bot-monitor/internal/models"
	"bot-monitor/internal/notify"
	"bot-monitor/internal/render"
)

// ProductDeleter apaga produtos e, em cascata, suas opções e assinaturas
type ProductDeleter interface {
	DeleteProductsByID(ctx context.Context, ids []int64) error
}

// Remover trata produtos que saíram do site
type Remover struct {
	store      ProductDeleter
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewRemover cria um Remover
func NewRemover(store ProductDeleter, dispatcher Dispatcher, logger *slog.Logger) *Remover {
	return &Remover{store: store, dispatcher: dispatcher, logger: logger}
}

// Handle avisa os assinantes de cada produto indisponível e apaga esses
// produtos. Falhas de envio não impedem a remoção.
func (r *Remover) Handle(ctx context.Context, unavailable []string, products []models.Product, subs []models.Subscription) error {
	gone := make(map[string]bool, len(unavailable))
	for _, url := range unavailable {
		gone[url] = true
	}

	subscribers := models.SubscribersByProduct(subs)
	notifications := notify.NewSet()
	var ids []int64

	for _, p := range products {
		if !gone[p.URL] {
			continue
		}
		ids = append(ids, p.ID)
		notifications.AddAll(subscribers[p.ID], render.UnavailableMessage(p))
	}

	if len(ids) == 0 {
		return nil
	}

	if len(notifications) > 0 {
		report, err := r.dispatcher.Dispatch(ctx, notifications)
		if err != nil {
			r.logger.Warn("Aviso de remoção interrompido", "pending", report.Pending, "error", err)
		}
		r.logger.Info("Avisos de remoção enviados", "sent", report.Sent, "failed", report.Failed)
	}

	if err := r.store.DeleteProductsByID(ctx, ids); err != nil {
		return fmt.Errorf("delete unavailable products: %w", err)
	}

	r.logger.Info("Produtos indisponíveis removidos", "count", len(ids))
	return nil
}
