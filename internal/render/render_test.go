package render

import (
	"strings"
	"testing"

	"bot-monitor/internal/models"

	"github.com/shopspring/decimal"
)

func product(options ...models.ProductOption) models.Product {
	return models.Product{
		ID:      1,
		Title:   "Ração <Premium>",
		URL:     "https://loja.example/racao",
		Options: options,
	}
}

func option(id int64, title, price string) models.ProductOption {
	return models.ProductOption{ID: id, Title: title, Availability: "Em estoque", Price: decimal.RequireFromString(price)}
}

func TestChangeMessagePriceIncrease(t *testing.T) {
	old := product(option(1, "A", "100"), option(2, "B", "200"))
	scraped := product(option(0, "A", "150"), option(0, "B", "200"))

	msg := ChangeMessage(scraped, old)

	if !strings.Contains(msg, "Preço aumentou para a opção A") {
		t.Errorf("missing price increase for A:\n%s", msg)
	}
	if strings.Contains(msg, "opção B") {
		t.Errorf("unchanged option B should not be mentioned:\n%s", msg)
	}
	if !strings.Contains(msg, "<s>R$ 100.00</s> R$ 150.00") {
		t.Errorf("missing old/new price line:\n%s", msg)
	}
	if !strings.Contains(msg, "Ração &lt;Premium&gt;") {
		t.Errorf("title should be escaped:\n%s", msg)
	}
}

func TestChangeMessageOptionRemoved(t *testing.T) {
	old := product(option(1, "A", "100"), option(2, "B", "200"))
	scraped := product(option(0, "A", "100"))

	msg := ChangeMessage(scraped, old)
	if !strings.Contains(msg, "Opção B foi removida") {
		t.Errorf("missing removal of B:\n%s", msg)
	}
	if strings.Contains(msg, "Preço") && strings.Contains(msg, "opção A") {
		t.Errorf("unchanged option A should not be reported:\n%s", msg)
	}
}

func TestChangeMessageAvailabilityAndPrice(t *testing.T) {
	old := product(option(1, "A", "100"))
	changed := option(0, "A", "90")
	changed.Availability = "Esgotado"
	added := option(0, "C", "10")

	msg := ChangeMessage(product(changed, added), old)

	for _, want := range []string{
		"Disponibilidade alterada e preço diminuiu para a opção A",
		"<s>Em estoque</s> Esgotado",
		"📉",
		"Nova opção C",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestUnavailableMessage(t *testing.T) {
	msg := UnavailableMessage(product())
	if !strings.Contains(msg, "não está mais disponível") || !strings.Contains(msg, "https://loja.example/racao") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestProductList(t *testing.T) {
	list := ProductList([]models.Product{
		{Title: "Um", URL: "https://a"},
		{Title: "Dois", URL: "https://b"},
	})
	if !strings.Contains(list, "<b>1.</b>") || !strings.Contains(list, "<b>2.</b> <a href=\"https://b\">Dois</a>") {
		t.Errorf("unexpected list:\n%s", list)
	}
}
