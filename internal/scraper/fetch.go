package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

const fetchAttempts = 3

type fetcher struct {
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
}

// document baixa a página e devolve o documento já parseado. Respostas 404 e
// 410 não são repetidas e retornam ErrNotFound.
func (f *fetcher) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	notFound := false

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

			start := time.Now()
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			f.logger.Debug("Página baixada",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"duration_ms", time.Since(start).Milliseconds())

			switch {
			case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
				notFound = true
				return retry.Unrecoverable(fmt.Errorf("status code: %d", resp.StatusCode))
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				return fmt.Errorf("status code: %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("status code: %d", resp.StatusCode))
			}

			d, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return fmt.Errorf("parse html: %w", err)
			}
			doc = d
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(f.retryDelay),
		retry.MaxDelay(10*f.retryDelay),
		retry.MaxJitter(f.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("Tentando baixar a página novamente", "url", pageURL, "attempt", n, "error", err)
		}),
	)

	if notFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pageURL)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return doc, nil
}

// cleanURL remove o fragmento da URL
func cleanURL(url string) string {
	parts := strings.Split(url, "#")
	return parts[0]
}
