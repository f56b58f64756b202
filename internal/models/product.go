package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User representa um usuário do Telegram que acompanha produtos
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Product representa um produto sendo monitorado
type Product struct {
	ID          int64 // Atribuído pelo banco, 0 enquanto não persistido
	Brand       string
	Description string
	Image       string
	Title       string
	Category    string
	Rating      float64
	Reviews     int
	URL         string // Chave natural entre ciclos de verificação
	Options     []ProductOption
	UpdatedAt   time.Time
}

// ProductOption representa uma variante comprável de um produto (tamanho, peso...)
type ProductOption struct {
	ID           int64
	Title        string // Chave de junção entre versões do produto
	Availability string
	Price        decimal.Decimal
}

// OptionKey é a assinatura de uma opção usada na detecção de mudanças.
// O ID não faz parte da chave.
type OptionKey struct {
	Availability string
	Title        string
	Price        string
}

// Key retorna a assinatura (disponibilidade, título, preço) da opção
func (o ProductOption) Key() OptionKey {
	return OptionKey{
		Availability: o.Availability,
		Title:        o.Title,
		Price:        o.Price.String(),
	}
}

// ProductDifference classifica a mudança entre duas versões de uma mesma opção
type ProductDifference struct {
	AvailabilityChanged bool
	PriceChanged        bool
}

// Changed informa se houve qualquer mudança
func (d ProductDifference) Changed() bool {
	return d.AvailabilityChanged || d.PriceChanged
}

// Subscription liga um usuário a um produto monitorado
type Subscription struct {
	UserID    int64
	ProductID int64
}

// SameProduct compara produtos pela URL, única identidade estável entre ciclos
func SameProduct(a, b Product) bool {
	return a.URL == b.URL
}

// OptionsEqual compara opções por disponibilidade, título e preço
func OptionsEqual(a, b ProductOption) bool {
	return a.Availability == b.Availability &&
		a.Title == b.Title &&
		a.Price.Equal(b.Price)
}

// SubscribersByProduct agrupa os IDs de usuários por produto
func SubscribersByProduct(subs []Subscription) map[int64][]int64 {
	grouped := make(map[int64][]int64)
	for _, s := range subs {
		grouped[s.ProductID] = append(grouped[s.ProductID], s.UserID)
	}
	return grouped
}
