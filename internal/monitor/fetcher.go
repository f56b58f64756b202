package monitor

import (
	"context"
	"errors"
	"log/slog"

	"bot-monitor/internal/models"
	"bot-monitor/internal/scraper"

	"golang.org/x/sync/errgroup"
)

// Scraper baixa e interpreta a página de um produto
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.Product, error)
}

// Fetcher coleta vários produtos em paralelo
type Fetcher struct {
	scraper Scraper
	logger  *slog.Logger
	limit   int
}

// NewFetcher cria um Fetcher. limit <= 0 dispara todas as coletas de uma vez.
func NewFetcher(s Scraper, logger *slog.Logger, limit int) *Fetcher {
	return &Fetcher{scraper: s, logger: logger, limit: limit}
}

type fetchResult struct {
	product  *models.Product
	notFound bool
}

// FetchAll coleta todas as URLs e espera todas terminarem. Páginas que não
// existem mais são devolvidas em unavailable; outros erros são registrados e o
// produto fica de fora deste ciclo. A ordem de entrada é preservada.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) (scraped []models.Product, unavailable []string) {
	results := make([]fetchResult, len(urls))

	var g errgroup.Group
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}

	for i, url := range urls {
		g.Go(func() error {
			p, err := f.scraper.Scrape(ctx, url)
			switch {
			case errors.Is(err, scraper.ErrNotFound):
				f.logger.Info("Produto não encontrado no site", "url", url)
				results[i].notFound = true
			case err != nil:
				f.logger.Error("Erro ao coletar produto", "url", url, "error", err)
			case p == nil:
				f.logger.Error("Scraper não retornou produto", "url", url)
			default:
				p.URL = url
				results[i].product = p
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		switch {
		case r.notFound:
			unavailable = append(unavailable, urls[i])
		case r.product != nil:
			scraped = append(scraped, *r.product)
		}
	}

	f.logger.Info("Coleta concluída",
		"total", len(urls),
		"scraped", len(scraped),
		"unavailable", len(unavailable))
	return scraped, unavailable
}
