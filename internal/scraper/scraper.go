package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bot-monitor/internal/models"
)

var (
	// ErrNotFound indica que a página do produto não existe mais (404/410)
	ErrNotFound = errors.New("product page not found")
	// ErrUnsupported indica que nenhum scraper aceita a URL
	ErrUnsupported = errors.New("unsupported url")
)

// Scraper define a interface para scrapers de diferentes lojas
type Scraper interface {
	CanHandle(url string) bool
	Scrape(ctx context.Context, url string) (*models.Product, error)
}

// Registry mantém um registro de todos os scrapers disponíveis
type Registry struct {
	scrapers []Scraper
}

// NewRegistry cria um novo registro de scrapers. Todos compartilham o mesmo
// http.Client, e portanto o mesmo pool de conexões. O scraper genérico de
// JSON-LD fica por último.
func NewRegistry(client *http.Client, logger *slog.Logger) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &fetcher{client: client, logger: logger, retryDelay: time.Second}
	return NewRegistryWith(
		NewMercadoLivreScraper(f),
		NewJSONLDScraper(f),
	)
}

// NewRegistryWith cria um registro com os scrapers informados, na ordem de prioridade
func NewRegistryWith(scrapers ...Scraper) *Registry {
	return &Registry{scrapers: scrapers}
}

// FindScraper encontra o scraper apropriado para uma URL
func (r *Registry) FindScraper(url string) Scraper {
	for _, scraper := range r.scrapers {
		if scraper.CanHandle(url) {
			return scraper
		}
	}
	return nil
}

// Scrape coleta o produto usando o scraper apropriado para a URL
func (r *Registry) Scrape(ctx context.Context, url string) (*models.Product, error) {
	s := r.FindScraper(url)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, url)
	}
	return s.Scrape(ctx, url)
}
