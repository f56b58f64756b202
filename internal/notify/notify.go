// Package notify entrega notificações aos usuários respeitando o limite de
// mensagens por segundo do Telegram.
package notify

import (
	"context"
	"errors"
	"sort"
)

// MaxMessagesPerSecond é o limite de envios por onda
const MaxMessagesPerSecond = 30

// ErrRecipientBlocked indica que o usuário bloqueou o bot
var ErrRecipientBlocked = errors.New("recipient blocked the bot")

// Notification é uma mensagem destinada a um usuário. Duas notificações com o
// mesmo destinatário e texto são iguais e colapsam dentro de um Set.
type Notification struct {
	ReceiverID int64
	Message    string
}

// Sender envia uma mensagem de texto a um destinatário
type Sender interface {
	Send(ctx context.Context, receiverID int64, message string) error
}

// Set é um conjunto de notificações sem duplicatas
type Set map[Notification]struct{}

// NewSet cria um conjunto a partir das notificações informadas
func NewSet(ns ...Notification) Set {
	s := make(Set, len(ns))
	for _, n := range ns {
		s.Add(n)
	}
	return s
}

// Add adiciona uma notificação ao conjunto
func (s Set) Add(n Notification) {
	s[n] = struct{}{}
}

// AddAll cria uma notificação com a mesma mensagem para cada destinatário
func (s Set) AddAll(receivers []int64, message string) {
	for _, r := range receivers {
		s.Add(Notification{ReceiverID: r, Message: message})
	}
}

// Sorted retorna as notificações ordenadas por destinatário e mensagem
func (s Set) Sorted() []Notification {
	ns := make([]Notification, 0, len(s))
	for n := range s {
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].ReceiverID != ns[j].ReceiverID {
			return ns[i].ReceiverID < ns[j].ReceiverID
		}
		return ns[i].Message < ns[j].Message
	})
	return ns
}

// ChooseWave escolhe gulosamente até limit notificações do conjunto, no
// máximo uma por destinatário.
func ChooseWave(s Set, limit int) []Notification {
	if limit <= 0 {
		limit = MaxMessagesPerSecond
	}

	wave := make([]Notification, 0, min(limit, len(s)))
	receivers := make(map[int64]struct{})
	for _, n := range s.Sorted() {
		if _, seen := receivers[n.ReceiverID]; seen {
			continue
		}
		wave = append(wave, n)
		receivers[n.ReceiverID] = struct{}{}
		if len(wave) >= limit {
			break
		}
	}
	return wave
}
