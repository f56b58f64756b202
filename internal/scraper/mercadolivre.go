package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bot-monitor/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// MercadoLivreScraper implementa o scraper para Mercado Livre
type MercadoLivreScraper struct {
	f *fetcher
}

// NewMercadoLivreScraper cria uma nova instância do scraper do Mercado Livre
func NewMercadoLivreScraper(f *fetcher) *MercadoLivreScraper {
	return &MercadoLivreScraper{f: f}
}

// CanHandle verifica se o scraper pode lidar com a URL fornecida
func (m *MercadoLivreScraper) CanHandle(url string) bool {
	return strings.Contains(url, "mercadolivre.com.br") ||
		strings.Contains(url, "mercadolibre.com")
}

// Scrape extrai o produto do Mercado Livre. O JSON-LD da página é usado quando
// existe; caso contrário os dados vêm dos seletores da página de produto.
func (m *MercadoLivreScraper) Scrape(ctx context.Context, url string) (*models.Product, error) {
	doc, err := m.f.document(ctx, cleanURL(url))
	if err != nil {
		return nil, err
	}

	p, err := productFromJSONLD(doc, url)
	if err != nil {
		p, err = m.fromSelectors(doc, url)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}
	}

	if p.Title == "" || p.Title == "Produto sem nome" {
		p.Title = m.name(doc)
	}

	m.f.logger.Info("Produto coletado", "url", url, "title", p.Title, "options", len(p.Options))
	return p, nil
}

func (m *MercadoLivreScraper) fromSelectors(doc *goquery.Document, url string) (*models.Product, error) {
	price, err := m.price(doc)
	if err != nil {
		return nil, err
	}

	availability := strings.TrimSpace(doc.Find(".ui-pdp-stock-information__title").First().Text())
	if availability == "" {
		availability = "Em estoque"
	}
	if doc.Find(".ui-pdp-message--warning, .ui-pdp-shipping-message--out-of-stock").Length() > 0 {
		availability = "Esgotado"
	}

	image, _ := doc.Find("meta[property='og:image']").First().Attr("content")
	description := strings.TrimSpace(doc.Find(".ui-pdp-description__content").First().Text())

	return &models.Product{
		Title:       m.name(doc),
		Description: description,
		Image:       image,
		URL:         url,
		Options: []models.ProductOption{{
			Title:        "Único",
			Availability: availability,
			Price:        price,
		}},
	}, nil
}

func (m *MercadoLivreScraper) price(doc *goquery.Document) (decimal.Decimal, error) {
	// O preço promocional aparece na segunda linha do bloco de preço
	selectors := []string{
		".ui-pdp-price__second-line .andes-money-amount",
		".ui-pdp-price--size-large .andes-money-amount",
		"[data-testid='price'] .andes-money-amount",
		".ui-pdp-price__first-line .andes-money-amount",
	}

	for _, selector := range selectors {
		s := doc.Find(selector).First()
		if s.Length() == 0 {
			continue
		}
		fraction := strings.TrimSpace(s.Find(".andes-money-amount__fraction").First().Text())
		if fraction == "" {
			continue
		}
		cents := strings.TrimSpace(s.Find(".andes-money-amount__cents").First().Text())
		text := fraction
		if cents != "" {
			text += "," + cents
		}
		return ParsePrice(text)
	}

	if content, ok := doc.Find("meta[itemprop='price'], meta[property='product:price:amount']").First().Attr("content"); ok {
		if d, ok := decimalOf(content); ok {
			return d, nil
		}
	}

	return decimal.Zero, errors.New("preço não encontrado na página")
}

func (m *MercadoLivreScraper) name(doc *goquery.Document) string {
	nameSelectors := []string{
		"h1.ui-pdp-title",
		"h1[data-testid='title']",
		".ui-pdp-title",
		"h1",
	}

	for _, selector := range nameSelectors {
		if name := strings.TrimSpace(doc.Find(selector).First().Text()); name != "" {
			return name
		}
	}
	return "Produto sem nome"
}
