package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"bot-monitor/internal/database"
	"bot-monitor/internal/models"
	"bot-monitor/internal/notify"
	"bot-monitor/internal/scraper"

	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	mu       sync.Mutex
	products map[string]models.Product
	errs     map[string]error
	calls    []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	p, ok := f.products[url]
	if !ok {
		return nil, errors.New("unexpected url")
	}
	return &p, nil
}

type memoryStore struct {
	products   []models.Product
	subs       []models.Subscription
	upserted   []models.Product
	deletedOpt []int64
	deletedIDs []int64
	upsertErr  error
}

func (s *memoryStore) TrackedProducts(context.Context) ([]models.Product, error) {
	return slices.Clone(s.products), nil
}

func (s *memoryStore) Subscriptions(context.Context) ([]models.Subscription, error) {
	return slices.Clone(s.subs), nil
}

func (s *memoryStore) UpsertProducts(_ context.Context, products []models.Product) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = append(s.upserted, products...)
	return nil
}

func (s *memoryStore) DeleteOptionsByID(_ context.Context, ids []int64) error {
	s.deletedOpt = append(s.deletedOpt, ids...)
	return nil
}

func (s *memoryStore) DeleteProductsByID(_ context.Context, ids []int64) error {
	s.deletedIDs = append(s.deletedIDs, ids...)
	s.products = slices.DeleteFunc(s.products, func(p models.Product) bool {
		return slices.Contains(ids, p.ID)
	})
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingSender) Send(_ context.Context, receiverID int64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notify.Notification{ReceiverID: receiverID, Message: message})
	return nil
}

func fastBatcher(sender notify.Sender) *notify.Batcher {
	return notify.NewBatcher(sender, discardLogger(), notify.BatcherConfig{
		MinDelay: time.Millisecond,
		MaxDelay: 2 * time.Millisecond,
	})
}

func opt(id int64, title, price string) models.ProductOption {
	return models.ProductOption{
		ID:           id,
		Title:        title,
		Availability: "Em estoque",
		Price:        decimal.RequireFromString(price),
	}
}

func newTestMonitor(store Store, s Scraper, sender notify.Sender) *Monitor {
	logger := discardLogger()
	return New(store, NewFetcher(s, logger, 0), fastBatcher(sender), time.Hour, logger)
}

func TestFetchAllSplitsResults(t *testing.T) {
	s := &fakeScraper{
		products: map[string]models.Product{
			"https://a": {Title: "A"},
			"https://c": {Title: "C"},
		},
		errs: map[string]error{
			"https://b": fmt.Errorf("get page: %w", scraper.ErrNotFound),
			"https://d": errors.New("connection reset"),
		},
	}

	f := NewFetcher(s, discardLogger(), 2)
	scraped, unavailable := f.FetchAll(context.Background(), []string{"https://a", "https://b", "https://c", "https://d"})

	if len(scraped) != 2 || scraped[0].URL != "https://a" || scraped[1].URL != "https://c" {
		t.Errorf("scraped = %+v", scraped)
	}
	if !slices.Equal(unavailable, []string{"https://b"}) {
		t.Errorf("unavailable = %v, want [https://b]", unavailable)
	}
	if len(s.calls) != 4 {
		t.Errorf("scrape calls = %d, want 4", len(s.calls))
	}
}

// Cenário A: aumento de preço em uma opção gera uma única notificação.
func TestRunCyclePriceIncrease(t *testing.T) {
	const url = "https://loja.example/racao"
	store := &memoryStore{
		products: []models.Product{{ID: 1, URL: url, Title: "Ração", Options: []models.ProductOption{
			opt(10, "A", "100"), opt(11, "B", "200"),
		}}},
		subs: []models.Subscription{{UserID: 42, ProductID: 1}},
	}
	s := &fakeScraper{products: map[string]models.Product{
		url: {URL: url, Title: "Ração", Options: []models.ProductOption{opt(0, "A", "150"), opt(0, "B", "200")}},
	}}
	sender := &recordingSender{}

	if err := newTestMonitor(store, s, sender).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].ReceiverID != 42 {
		t.Fatalf("sent = %+v, want one message to 42", sender.sent)
	}
	msg := sender.sent[0].Message
	if !strings.Contains(msg, "Preço aumentou para a opção A") {
		t.Errorf("message does not report the increase on A:\n%s", msg)
	}
	if strings.Contains(msg, "opção B") {
		t.Errorf("message mentions unchanged option B:\n%s", msg)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("upserted %d products, want 1", len(store.upserted))
	}
	got := store.upserted[0]
	if got.ID != 1 || got.Options[0].ID != 10 || got.Options[1].ID != 11 {
		t.Errorf("persisted ids = %d %+v, want old ids kept", got.ID, got.Options)
	}
	if !got.Options[0].Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("persisted price = %s, want 150", got.Options[0].Price)
	}
	if len(store.deletedOpt) != 0 {
		t.Errorf("deleted options = %v, want none", store.deletedOpt)
	}
}

// Cenário B: opção B some do site.
func TestRunCycleRemovedOption(t *testing.T) {
	const url = "https://loja.example/racao"
	store := &memoryStore{
		products: []models.Product{{ID: 1, URL: url, Title: "Ração", Options: []models.ProductOption{
			opt(10, "A", "100"), opt(11, "B", "200"),
		}}},
		subs: []models.Subscription{{UserID: 42, ProductID: 1}},
	}
	s := &fakeScraper{products: map[string]models.Product{
		url: {URL: url, Title: "Ração", Options: []models.ProductOption{opt(0, "A", "100")}},
	}}
	sender := &recordingSender{}

	if err := newTestMonitor(store, s, sender).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if !slices.Equal(store.deletedOpt, []int64{11}) {
		t.Errorf("deleted options = %v, want [11]", store.deletedOpt)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].Message, "Opção B foi removida") {
		t.Errorf("sent = %+v, want removal of option B", sender.sent)
	}
}

// Cenário C: 75 assinantes recebem exatamente uma mensagem cada.
func TestRunCycleManySubscribers(t *testing.T) {
	const url = "https://loja.example/racao"
	store := &memoryStore{
		products: []models.Product{{ID: 1, URL: url, Options: []models.ProductOption{opt(10, "A", "100")}}},
	}
	for i := range 75 {
		store.subs = append(store.subs, models.Subscription{UserID: int64(i + 1), ProductID: 1})
	}
	s := &fakeScraper{products: map[string]models.Product{
		url: {URL: url, Options: []models.ProductOption{opt(0, "A", "90")}},
	}}
	sender := &recordingSender{}

	if err := newTestMonitor(store, s, sender).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	seen := make(map[int64]int)
	for _, n := range sender.sent {
		seen[n.ReceiverID]++
	}
	if len(seen) != 75 {
		t.Fatalf("got %d receivers, want 75", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("receiver %d got %d messages", id, n)
		}
	}
}

// Cenário D: página removida leva o produto para o tratamento de remoção.
func TestRunCycleUnavailableProduct(t *testing.T) {
	const gone, kept = "https://loja.example/gone", "https://loja.example/kept"
	store := &memoryStore{
		products: []models.Product{
			{ID: 1, URL: gone, Title: "Antigo", Options: []models.ProductOption{opt(10, "A", "100")}},
			{ID: 2, URL: kept, Title: "Atual", Options: []models.ProductOption{opt(20, "A", "100")}},
		},
		subs: []models.Subscription{
			{UserID: 7, ProductID: 1},
			{UserID: 8, ProductID: 1},
			{UserID: 8, ProductID: 2},
		},
	}
	s := &fakeScraper{
		products: map[string]models.Product{kept: {URL: kept, Options: []models.ProductOption{opt(0, "A", "100")}}},
		errs:     map[string]error{gone: scraper.ErrNotFound},
	}
	sender := &recordingSender{}

	if err := newTestMonitor(store, s, sender).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if !slices.Equal(store.deletedIDs, []int64{1}) {
		t.Errorf("deleted products = %v, want [1]", store.deletedIDs)
	}
	if len(store.products) != 1 || store.products[0].ID != 2 {
		t.Errorf("remaining products = %+v", store.products)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	for _, n := range sender.sent {
		if !strings.Contains(n.Message, "Produto removido") {
			t.Errorf("message to %d = %q", n.ReceiverID, n.Message)
		}
	}
	if len(store.upserted) != 0 {
		t.Errorf("unchanged product was persisted: %+v", store.upserted)
	}
}

func TestRunCycleSkipsFailedFetch(t *testing.T) {
	const broken, changed = "https://loja.example/broken", "https://loja.example/changed"
	store := &memoryStore{
		products: []models.Product{
			{ID: 1, URL: broken, Options: []models.ProductOption{opt(10, "A", "100")}},
			{ID: 2, URL: changed, Options: []models.ProductOption{opt(20, "A", "100")}},
		},
		subs: []models.Subscription{{UserID: 1, ProductID: 1}, {UserID: 1, ProductID: 2}},
	}
	s := &fakeScraper{
		products: map[string]models.Product{changed: {URL: changed, Options: []models.ProductOption{opt(0, "A", "80")}}},
		errs:     map[string]error{broken: errors.New("timeout")},
	}
	sender := &recordingSender{}

	if err := newTestMonitor(store, s, sender).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.deletedIDs) != 0 {
		t.Errorf("a transient failure must not delete products: %v", store.deletedIDs)
	}
	if len(store.upserted) != 1 || store.upserted[0].ID != 2 {
		t.Errorf("upserted = %+v, want only product 2", store.upserted)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(sender.sent))
	}
}

func TestRunCycleReturnsStorageErrors(t *testing.T) {
	const url = "https://loja.example/racao"
	store := &memoryStore{
		products:  []models.Product{{ID: 1, URL: url, Options: []models.ProductOption{opt(10, "A", "100")}}},
		upsertErr: errors.New("disk full"),
	}
	s := &fakeScraper{products: map[string]models.Product{
		url: {URL: url, Options: []models.ProductOption{opt(0, "A", "120")}},
	}}

	err := newTestMonitor(store, s, &recordingSender{}).RunCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want the storage failure", err)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &memoryStore{}
	m := newTestMonitor(store, &fakeScraper{}, &recordingSender{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestRunCycleWithDatabase(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "products.db"), discardLogger())
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	const racao, sumiu = "https://loja.example/racao", "https://loja.example/sumiu"

	if err := db.SaveUser(ctx, models.User{ID: 42, FirstName: "Ana"}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []models.Product{
		{URL: racao, Title: "Ração", Options: []models.ProductOption{opt(0, "A", "100"), opt(0, "B", "200")}},
		{URL: sumiu, Title: "Sumiu", Options: []models.ProductOption{opt(0, "Único", "50")}},
	} {
		if _, err := db.AddProduct(ctx, 42, p); err != nil {
			t.Fatalf("AddProduct(%s) error = %v", p.URL, err)
		}
	}

	s := &fakeScraper{
		products: map[string]models.Product{
			racao: {URL: racao, Title: "Ração", Options: []models.ProductOption{opt(0, "A", "150")}},
		},
		errs: map[string]error{sumiu: scraper.ErrNotFound},
	}
	sender := &recordingSender{}

	if err := newTestMonitor(db, s, sender).RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	products, err := db.TrackedProducts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].URL != racao {
		t.Fatalf("tracked products = %+v, want only %s", products, racao)
	}
	if len(products[0].Options) != 1 || products[0].Options[0].Title != "A" ||
		!products[0].Options[0].Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("options = %+v, want only A at 150", products[0].Options)
	}

	subs, err := db.Subscriptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Errorf("subscriptions = %+v, want the removed product's link gone", subs)
	}
	if len(sender.sent) != 2 {
		t.Errorf("sent %d messages, want change + removal", len(sender.sent))
	}
}

// slowStore demora mais que o intervalo para carregar os produtos
type slowStore struct {
	memoryStore
	mu     sync.Mutex
	delay  time.Duration
	starts []time.Time
	ends   []time.Time
}

func (s *slowStore) TrackedProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.ends = append(s.ends, time.Now())
	s.mu.Unlock()
	return nil, nil
}

func TestStartWaitsIntervalAfterEachCycle(t *testing.T) {
	const interval = 30 * time.Millisecond
	store := &slowStore{delay: 2 * interval}
	logger := discardLogger()
	m := New(store, NewFetcher(&fakeScraper{}, logger, 0), fastBatcher(&recordingSender{}), interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * interval)
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.starts) < 2 {
		t.Fatalf("ran %d cycles, want at least 2", len(store.starts))
	}
	for i := 1; i < len(store.starts); i++ {
		if gap := store.starts[i].Sub(store.ends[i-1]); gap < interval {
			t.Errorf("cycle %d started %v after the previous one ended, want >= %v", i, gap, interval)
		}
	}
}
