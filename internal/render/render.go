// Package render monta as mensagens HTML enviadas pelo bot do Telegram.
package render

import (
	"fmt"
	"strings"

	"bot-monitor/internal/diff"
	"bot-monitor/internal/models"

	"github.com/shopspring/decimal"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapa caracteres especiais do HTML aceito pelo Telegram
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// Price formata um preço com duas casas decimais
func Price(p decimal.Decimal) string {
	return "R$ " + p.StringFixed(2)
}

// ChangeMessage monta a notificação de mudança entre a versão antiga e a recém-coletada
func ChangeMessage(scraped, old models.Product) string {
	var b strings.Builder
	b.WriteString(title(scraped))

	changes := diff.Compare(old, scraped)
	for _, o := range changes.Added {
		b.WriteString(option(fmt.Sprintf("➕<b>Nova opção %s</b>\n", EscapeHTML(o.Title)), o))
	}
	for _, o := range changes.Removed {
		b.WriteString(option(fmt.Sprintf("➖<b>Opção %s foi removida</b>\n", EscapeHTML(o.Title)), o))
	}
	for _, c := range changes.Changed {
		b.WriteString(optionChange(c))
	}
	return b.String()
}

// UnavailableMessage avisa que o produto não existe mais na loja
func UnavailableMessage(p models.Product) string {
	return title(p) + "❗️Produto removido, não está mais disponível no site."
}

// ProductInfo renderiza todos os dados de um produto e suas opções
func ProductInfo(p models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<a href=\"%s\"><b>%s</b></a>\n", EscapeHTML(p.URL), EscapeHTML(p.Title))
	fmt.Fprintf(&b, "<b>Marca:</b> %s\n", EscapeHTML(p.Brand))
	fmt.Fprintf(&b, "<b>Categoria:</b> %s\n", EscapeHTML(p.Category))
	fmt.Fprintf(&b, "<b>Avaliação:</b> %.1f / 5.0\n", p.Rating)
	fmt.Fprintf(&b, "<b>Avaliações:</b> %d\n", p.Reviews)
	fmt.Fprintf(&b, "<b>Descrição:</b> %s\n\n", EscapeHTML(p.Description))
	for _, o := range p.Options {
		b.WriteString(option(fmt.Sprintf("<b>Opção:</b> %s\n", EscapeHTML(o.Title)), o))
	}
	return b.String()
}

// ProductList renderiza a lista numerada de produtos de um usuário
func ProductList(products []models.Product) string {
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "<b>%d.</b> <a href=\"%s\">%s</a>\n", i+1, EscapeHTML(p.URL), EscapeHTML(p.Title))
	}
	return b.String()
}

func title(p models.Product) string {
	return fmt.Sprintf("📬<a href=\"%s\"><b>%s</b></a>\n\n", EscapeHTML(p.URL), EscapeHTML(p.Title))
}

func option(header string, o models.ProductOption) string {
	return header +
		fmt.Sprintf("💰<b>Preço:</b> %s\n", Price(o.Price)) +
		fmt.Sprintf("📦<b>Disponibilidade:</b> %s\n", EscapeHTML(o.Availability)) +
		"\n"
}

func optionChange(c diff.OptionChange) string {
	name := EscapeHTML(c.New.Title)
	d := c.Difference

	switch {
	case d.AvailabilityChanged && d.PriceChanged:
		text, emoji := priceDirection(c.New.Price, c.Old.Price)
		return fmt.Sprintf("<b>Disponibilidade alterada e preço %s para a opção %s</b>\n", text, name) +
			availabilityLine(c.New.Availability, c.Old.Availability) +
			emoji + priceLine(c.New.Price, c.Old.Price) + "\n"
	case d.PriceChanged:
		text, emoji := priceDirection(c.New.Price, c.Old.Price)
		return fmt.Sprintf("<b>Preço %s para a opção %s</b>\n", text, name) +
			emoji + priceLine(c.New.Price, c.Old.Price) + "\n"
	case d.AvailabilityChanged:
		return fmt.Sprintf("<b>Disponibilidade alterada para a opção %s</b>\n", name) +
			availabilityLine(c.New.Availability, c.Old.Availability) + "\n"
	}
	return ""
}

func priceLine(newPrice, oldPrice decimal.Decimal) string {
	return fmt.Sprintf("<b>Preço:</b> <s>%s</s> %s\n", Price(oldPrice), Price(newPrice))
}

func availabilityLine(newAvailability, oldAvailability string) string {
	return fmt.Sprintf("📦<b>Disponibilidade:</b> <s>%s</s> %s\n", EscapeHTML(oldAvailability), EscapeHTML(newAvailability))
}

func priceDirection(newPrice, oldPrice decimal.Decimal) (string, string) {
	if newPrice.GreaterThan(oldPrice) {
		return "aumentou", "📈"
	}
	return "diminuiu", "📉"
}
