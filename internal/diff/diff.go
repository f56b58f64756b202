// Package diff compara versões de um produto e de suas opções.
//
// O casamento entre versões antigas e novas é sempre feito pelo título da
// opção: mesmo título significa a mesma opção lógica, títulos diferentes são
// opções distintas (uma removida, outra adicionada).
package diff

import "bot-monitor/internal/models"

// OptionChange descreve uma opção presente nas duas versões com alguma diferença
type OptionChange struct {
	Old        models.ProductOption
	New        models.ProductOption
	Difference models.ProductDifference
}

// Changes é o resultado completo da comparação entre duas versões de um produto
type Changes struct {
	Added   []models.ProductOption
	Removed []models.ProductOption
	Changed []OptionChange
}

// Empty informa se nada mudou
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Options compara duas versões de uma opção com o mesmo título
func Options(old, scraped models.ProductOption) models.ProductDifference {
	return models.ProductDifference{
		AvailabilityChanged: old.Availability != scraped.Availability,
		PriceChanged:        !old.Price.Equal(scraped.Price),
	}
}

// OptionsChanged retorna true se o multiconjunto de assinaturas
// (disponibilidade, título, preço) difere entre as duas listas.
func OptionsChanged(old, scraped []models.ProductOption) bool {
	if len(old) != len(scraped) {
		return true
	}

	counts := make(map[models.OptionKey]int, len(old))
	for _, o := range old {
		counts[o.Key()]++
	}
	for _, n := range scraped {
		k := n.Key()
		if counts[k] == 0 {
			return true
		}
		counts[k]--
	}
	return false
}

// OutdatedOptionIDs retorna os IDs das opções de old cujo título não aparece
// mais em scraped. Só é calculado quando old tem mais opções que scraped; nos demais
// casos a sincronização de opções fica a cargo do armazenamento.
func OutdatedOptionIDs(old, scraped models.Product) []int64 {
	if len(old.Options) <= len(scraped.Options) {
		return nil
	}

	titles := titleIndex(scraped.Options)
	var ids []int64
	for _, o := range old.Options {
		if _, ok := titles[o.Title]; !ok && o.ID != 0 {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// UpdateWith produz a próxima versão persistida do produto: campos descritivos
// de scraped, ID de old, e opções de scraped herdando o ID da opção antiga de mesmo título.
func UpdateWith(old, scraped models.Product) models.Product {
	updated := scraped
	updated.ID = old.ID

	oldByTitle := titleIndex(old.Options)
	updated.Options = make([]models.ProductOption, 0, len(scraped.Options))
	for _, n := range scraped.Options {
		opt := n
		if o, ok := oldByTitle[n.Title]; ok {
			opt.ID = o.ID
		} else {
			opt.ID = 0
		}
		updated.Options = append(updated.Options, opt)
	}
	return updated
}

// Compare classifica opções adicionadas, removidas e alteradas entre versões
func Compare(old, scraped models.Product) Changes {
	var changes Changes

	oldByTitle := titleIndex(old.Options)
	newByTitle := titleIndex(scraped.Options)

	for _, n := range scraped.Options {
		o, ok := oldByTitle[n.Title]
		if !ok {
			changes.Added = append(changes.Added, n)
			continue
		}
		if d := Options(o, n); d.Changed() {
			changes.Changed = append(changes.Changed, OptionChange{Old: o, New: n, Difference: d})
		}
	}

	for _, o := range old.Options {
		if _, ok := newByTitle[o.Title]; !ok {
			changes.Removed = append(changes.Removed, o)
		}
	}

	return changes
}

func titleIndex(opts []models.ProductOption) map[string]models.ProductOption {
	idx := make(map[string]models.ProductOption, len(opts))
	for _, o := range opts {
		idx[o.Title] = o
	}
	return idx
}
