// Package session guarda o contexto de conversa de cada usuário do bot.
package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefaultTTL é o tempo que uma sessão sem uso é mantida
const DefaultTTL = 24 * time.Hour

// State indica o que o bot espera da próxima mensagem do usuário
type State string

const (
	StateIdle        State = ""
	StateAwaitingURL State = "awaiting_url"
)

// Session é o contexto de conversa de um usuário. Products guarda os IDs da
// última lista exibida, na mesma ordem, para que /info e /remove aceitem o
// número mostrado ao usuário.
type Session struct {
	State    State   `json:"state,omitempty"`
	Products []int64 `json:"products,omitempty"`
}

// ProductAt converte a posição exibida (a partir de 1) no ID do produto
func (s Session) ProductAt(n int) (int64, bool) {
	if n < 1 || n > len(s.Products) {
		return 0, false
	}
	return s.Products[n-1], true
}

// Store persiste sessões por usuário. Uma sessão inexistente ou expirada é
// devolvida vazia, sem erro.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}

type entry struct {
	session Session
	expires time.Time
}

// MemoryStore mantém as sessões na memória do processo
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]entry
	now      func() time.Time
}

// NewMemoryStore cria um MemoryStore. ttl <= 0 usa DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[int64]entry),
		now:      time.Now,
	}
}

// Get lê a sessão do usuário, descartando a expirada
func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok {
		return Session{}, nil
	}
	if m.now().After(e.expires) {
		delete(m.sessions, userID)
		return Session{}, nil
	}
	s := e.session
	s.Products = slices.Clone(s.Products)
	return s, nil
}

// Save grava uma cópia da sessão e renova a expiração
func (m *MemoryStore) Save(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.Products = slices.Clone(s.Products)
	m.sessions[userID] = entry{session: s, expires: m.now().Add(m.ttl)}
	return nil
}

// Clear apaga a sessão do usuário
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}
