package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bot-monitor/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var errNoProductData = errors.New("dados do produto não encontrados na página")

var availabilityLabels = map[string]string{
	"InStock":             "Em estoque",
	"InStoreOnly":         "Somente na loja",
	"LimitedAvailability": "Estoque limitado",
	"OnlineOnly":          "Somente online",
	"OutOfStock":          "Esgotado",
	"SoldOut":             "Esgotado",
	"PreOrder":            "Pré-venda",
	"PreSale":             "Pré-venda",
	"BackOrder":           "Sob encomenda",
	"Discontinued":        "Fora de linha",
}

// JSONLDScraper lê os dados estruturados schema.org/Product presentes na
// maioria das lojas virtuais.
type JSONLDScraper struct {
	f *fetcher
}

// NewJSONLDScraper cria o scraper genérico
func NewJSONLDScraper(f *fetcher) *JSONLDScraper {
	return &JSONLDScraper{f: f}
}

// CanHandle aceita qualquer URL http(s)
func (s *JSONLDScraper) CanHandle(url string) bool {
	return strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")
}

// Scrape baixa a página e extrai o produto do JSON-LD
func (s *JSONLDScraper) Scrape(ctx context.Context, url string) (*models.Product, error) {
	doc, err := s.f.document(ctx, cleanURL(url))
	if err != nil {
		return nil, err
	}
	p, err := productFromJSONLD(doc, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	s.f.logger.Info("Produto coletado", "url", url, "title", p.Title, "options", len(p.Options))
	return p, nil
}

type ldNode = map[string]any

func productFromJSONLD(doc *goquery.Document, url string) (*models.Product, error) {
	var nodes []ldNode
	doc.Find("script[type='application/ld+json']").Each(func(i int, sel *goquery.Selection) {
		dec := json.NewDecoder(strings.NewReader(sel.Text()))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return
		}
		collectNodes(v, &nodes)
	})

	for _, n := range nodes {
		if hasType(n, "Product", "ProductGroup") {
			return productFromNode(n, url)
		}
	}
	return nil, errNoProductData
}

func collectNodes(v any, out *[]ldNode) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectNodes(item, out)
		}
	case map[string]any:
		*out = append(*out, t)
		if graph, ok := t["@graph"]; ok {
			collectNodes(graph, out)
		}
	}
}

func productFromNode(n ldNode, url string) (*models.Product, error) {
	p := &models.Product{
		Title:       str(n["name"]),
		Brand:       str(n["brand"]),
		Description: strings.TrimSpace(str(n["description"])),
		Image:       str(n["image"]),
		Category:    str(n["category"]),
		URL:         url,
	}

	if rating, ok := n["aggregateRating"].(map[string]any); ok {
		p.Rating = floatOf(rating["ratingValue"])
		p.Reviews = intOf(rating["reviewCount"])
		if p.Reviews == 0 {
			p.Reviews = intOf(rating["ratingCount"])
		}
	}

	if variants, ok := n["hasVariant"].([]any); ok {
		for _, v := range variants {
			variant, ok := v.(map[string]any)
			if !ok {
				continue
			}
			name := firstNonEmpty(str(variant["name"]), str(variant["sku"]))
			p.Options = append(p.Options, offerOptions(variant["offers"], name)...)
		}
	} else {
		p.Options = offerOptions(n["offers"], "")
	}

	if len(p.Options) == 0 {
		return nil, errors.New("nenhuma opção de compra encontrada")
	}
	if p.Title == "" {
		p.Title = "Produto sem nome"
	}
	p.Options = uniqueTitles(p.Options)
	return p, nil
}

// offerOptions converte offers (objeto, lista ou AggregateOffer) em opções.
// fallbackTitle é usado quando a oferta não tem nome próprio.
func offerOptions(v any, fallbackTitle string) []models.ProductOption {
	var offers []ldNode
	collectOffers(v, &offers)

	var opts []models.ProductOption
	for _, o := range offers {
		price, ok := decimalOf(o["price"])
		if !ok {
			if price, ok = decimalOf(o["lowPrice"]); !ok {
				continue
			}
		}

		title := firstNonEmpty(str(o["name"]), str(o["sku"]))
		if item, ok := o["itemOffered"].(map[string]any); ok && title == "" {
			title = str(item["name"])
		}
		if title == "" {
			title = firstNonEmpty(fallbackTitle, "Padrão")
		}

		opts = append(opts, models.ProductOption{
			Title:        title,
			Availability: availabilityLabel(str(o["availability"])),
			Price:        price,
		})
	}
	return opts
}

func collectOffers(v any, out *[]ldNode) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectOffers(item, out)
		}
	case map[string]any:
		if nested, ok := t["offers"]; ok && hasType(t, "AggregateOffer") {
			before := len(*out)
			collectOffers(nested, out)
			if len(*out) > before {
				return
			}
		}
		*out = append(*out, t)
	}
}

func uniqueTitles(opts []models.ProductOption) []models.ProductOption {
	seen := make(map[string]int, len(opts))
	for i := range opts {
		seen[opts[i].Title]++
		if n := seen[opts[i].Title]; n > 1 {
			opts[i].Title = fmt.Sprintf("%s (%d)", opts[i].Title, n)
		}
	}
	return opts
}

func availabilityLabel(v string) string {
	if v == "" {
		return "Desconhecida"
	}
	key := v
	if idx := strings.LastIndex(v, "/"); idx >= 0 {
		key = v[idx+1:]
	}
	if label, ok := availabilityLabels[key]; ok {
		return label
	}
	return v
}

func hasType(n ldNode, types ...string) bool {
	match := func(s string) bool {
		for _, t := range types {
			if s == t || strings.HasSuffix(s, "/"+t) {
				return true
			}
		}
		return false
	}

	switch t := n["@type"].(type) {
	case string:
		return match(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && match(s) {
				return true
			}
		}
	}
	return false
}

// str extrai texto de valores que podem vir como string, número, lista ou
// objeto com "name"/"url".
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []any:
		if len(t) > 0 {
			return str(t[0])
		}
	case map[string]any:
		return firstNonEmpty(str(t["name"]), str(t["url"]), str(t["@id"]))
	}
	return ""
}

func decimalOf(v any) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return decimal.Zero, false
	}
	if s == "" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}
	if d, err := ParsePrice(s); err == nil {
		return d, true
	}
	return decimal.Zero, false
}

func floatOf(v any) float64 {
	f, _ := strconv.ParseFloat(str(v), 64)
	return f
}

func intOf(v any) int {
	i, err := strconv.Atoi(str(v))
	if err != nil {
		return int(floatOf(v))
	}
	return i
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
