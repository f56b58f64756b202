package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"bot-monitor/internal/database"
	"bot-monitor/internal/models"
	"bot-monitor/internal/render"
	"bot-monitor/internal/scraper"
	"bot-monitor/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Store é o armazenamento usado pelos comandos do bot
type Store interface {
	SaveUser(ctx context.Context, u models.User) error
	FindProductByURL(ctx context.Context, url string) (*models.Product, error)
	AddProduct(ctx context.Context, userID int64, p models.Product) (int64, error)
	Subscribe(ctx context.Context, userID, productID int64) error
	ProductsForUser(ctx context.Context, userID int64) ([]models.Product, error)
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	Unsubscribe(ctx context.Context, userID int64, productIDs []int64) error
}

// Scraper coleta um produto novo a partir da URL enviada pelo usuário
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.Product, error)
}

const helpText = `🤖 <b>Bot de Monitoramento de Produtos</b>

Aviso quando o preço ou a disponibilidade de um produto mudar.

<b>Comandos disponíveis:</b>

<b>/add &lt;URL&gt;</b> - Adicionar produto para monitorar
Exemplo: /add https://www.mercadolivre.com.br/produto
Sem a URL, envie o link na próxima mensagem.

<b>/list</b> - Listar seus produtos

<b>/info &lt;número&gt;</b> - Ver detalhes de um produto da lista
Exemplo: /info 1

<b>/remove &lt;número&gt; [número...]</b> - Parar de monitorar produtos
Exemplo: /remove 1 3

<b>/help</b> - Mostrar esta mensagem de ajuda
`

// Handler trata as mensagens recebidas pelo bot
type Handler struct {
	api      API
	store    Store
	scraper  Scraper
	sessions session.Store
	logger   *slog.Logger
}

// NewHandler cria o Handler dos comandos
func NewHandler(api API, store Store, s Scraper, sessions session.Store, logger *slog.Logger) *Handler {
	return &Handler{
		api:      api,
		store:    store,
		scraper:  s,
		sessions: sessions,
		logger:   logger,
	}
}

// Run recebe atualizações por long polling até o contexto ser cancelado
func (h *Handler) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := h.api.GetUpdatesChan(u)

	h.logger.Info("Aguardando comandos")
	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			h.HandleMessage(ctx, update.Message)
		}
	}
}

// HandleMessage trata uma mensagem de texto
func (h *Handler) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	user := userOf(message)
	if err := h.store.SaveUser(ctx, user); err != nil {
		h.logger.Error("Erro ao salvar usuário", "user_id", user.ID, "error", err)
		h.reply(message.Chat.ID, "❌ Erro interno. Tente novamente mais tarde.")
		return
	}

	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	// Remover @botname se presente
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	args := parts[1:]

	if !strings.HasPrefix(command, "/") {
		h.handleText(ctx, message.Chat.ID, user.ID, text)
		return
	}

	// Qualquer comando cancela uma espera de URL em andamento
	if command != "/add" {
		h.setState(ctx, user.ID, session.StateIdle)
	}

	switch command {
	case "/start":
		h.reply(message.Chat.ID, fmt.Sprintf("Olá, %s! 👋\n\n", render.EscapeHTML(firstNonEmpty(user.FirstName, user.Username, "tudo bem")))+helpText)
	case "/help":
		h.reply(message.Chat.ID, helpText)
	case "/add":
		h.handleAdd(ctx, message.Chat.ID, user.ID, args)
	case "/list":
		h.handleList(ctx, message.Chat.ID, user.ID)
	case "/info":
		h.handleInfo(ctx, message.Chat.ID, user.ID, args)
	case "/remove":
		h.handleRemove(ctx, message.Chat.ID, user.ID, args)
	default:
		h.reply(message.Chat.ID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) {
	s, err := h.sessions.Get(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao ler sessão", "user_id", userID, "error", err)
	}
	if s.State != session.StateAwaitingURL {
		h.reply(chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
		return
	}

	h.setState(ctx, userID, session.StateIdle)
	h.addProduct(ctx, chatID, userID, text)
}

func (h *Handler) handleAdd(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.setState(ctx, userID, session.StateAwaitingURL)
		h.reply(chatID, "🔗 Envie o link do produto que deseja monitorar.")
		return
	}
	h.setState(ctx, userID, session.StateIdle)
	h.addProduct(ctx, chatID, userID, args[0])
}

func (h *Handler) addProduct(ctx context.Context, chatID, userID int64, rawURL string) {
	if !validURL(rawURL) {
		h.reply(chatID, "❌ URL inválida. Envie um link começando com http:// ou https://")
		return
	}

	existing, err := h.store.FindProductByURL(ctx, rawURL)
	switch {
	case err == nil:
		err := h.store.Subscribe(ctx, userID, existing.ID)
		if errors.Is(err, database.ErrAlreadySubscribed) {
			h.reply(chatID, "ℹ️ Você já está monitorando este produto.")
			return
		}
		if err != nil {
			h.logger.Error("Erro ao assinar produto", "user_id", userID, "product_id", existing.ID, "error", err)
			h.reply(chatID, "❌ Erro ao adicionar produto. Tente novamente mais tarde.")
			return
		}
		h.reply(chatID, "✅ Produto adicionado!\n\n"+render.ProductInfo(*existing))
		return
	case !errors.Is(err, database.ErrNotFound):
		h.logger.Error("Erro ao buscar produto", "url", rawURL, "error", err)
		h.reply(chatID, "❌ Erro ao adicionar produto. Tente novamente mais tarde.")
		return
	}

	product, err := h.scraper.Scrape(ctx, rawURL)
	switch {
	case errors.Is(err, scraper.ErrUnsupported):
		h.reply(chatID, "❌ URL não suportada.")
		return
	case errors.Is(err, scraper.ErrNotFound):
		h.reply(chatID, "❌ Produto não encontrado. Verifique o link.")
		return
	case err != nil:
		h.logger.Error("Erro ao coletar produto novo", "url", rawURL, "error", err)
		h.reply(chatID, "❌ Não foi possível ler os dados do produto nesta página.")
		return
	}
	product.URL = rawURL

	id, err := h.store.AddProduct(ctx, userID, *product)
	if errors.Is(err, database.ErrAlreadySubscribed) {
		h.reply(chatID, "ℹ️ Você já está monitorando este produto.")
		return
	}
	if err != nil {
		h.logger.Error("Erro ao adicionar produto", "url", rawURL, "error", err)
		h.reply(chatID, "❌ Erro ao adicionar produto. Tente novamente mais tarde.")
		return
	}

	h.logger.Info("Produto adicionado", "user_id", userID, "product_id", id, "url", rawURL)
	h.reply(chatID, "✅ Produto adicionado!\n\n"+render.ProductInfo(*product))
}

func (h *Handler) handleList(ctx context.Context, chatID, userID int64) {
	products, err := h.store.ProductsForUser(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao listar produtos", "user_id", userID, "error", err)
		h.reply(chatID, "❌ Erro ao buscar produtos.")
		return
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	if err := h.sessions.Save(ctx, userID, session.Session{Products: ids}); err != nil {
		h.logger.Error("Erro ao salvar sessão", "user_id", userID, "error", err)
	}

	if len(products) == 0 {
		h.reply(chatID, "📭 Nenhum produto sendo monitorado.\n\nUse /add para adicionar um produto.")
		return
	}

	h.reply(chatID, "📋 <b>Seus produtos:</b>\n\n"+render.ProductList(products)+
		"\nUse /info &lt;número&gt; para detalhes ou /remove &lt;número&gt; para remover.")
}

func (h *Handler) handleInfo(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) != 1 {
		h.reply(chatID, "❌ Uso: /info &lt;número&gt;\nExemplo: /info 1")
		return
	}

	ids, ok := h.resolve(ctx, userID, args)
	if !ok {
		h.reply(chatID, "❌ Número inválido. Use /list para ver a numeração atual.")
		return
	}

	p, err := h.store.ProductByID(ctx, ids[0])
	if errors.Is(err, database.ErrNotFound) {
		h.reply(chatID, "❌ Este produto não está mais disponível. Use /list para atualizar a lista.")
		return
	}
	if err != nil {
		h.logger.Error("Erro ao buscar produto", "product_id", ids[0], "error", err)
		h.reply(chatID, "❌ Erro ao buscar produto.")
		return
	}

	h.reply(chatID, render.ProductInfo(*p))
}

func (h *Handler) handleRemove(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.reply(chatID, "❌ Uso: /remove &lt;número&gt; [número...]\nExemplo: /remove 1 3")
		return
	}

	ids, ok := h.resolve(ctx, userID, args)
	if !ok {
		h.reply(chatID, "❌ Número inválido. Use /list para ver a numeração atual.")
		return
	}

	if err := h.store.Unsubscribe(ctx, userID, ids); err != nil {
		h.logger.Error("Erro ao remover produtos", "user_id", userID, "error", err)
		h.reply(chatID, "❌ Erro ao remover produtos.")
		return
	}

	// A numeração antiga deixa de valer
	if err := h.sessions.Clear(ctx, userID); err != nil {
		h.logger.Error("Erro ao limpar sessão", "user_id", userID, "error", err)
	}

	h.reply(chatID, fmt.Sprintf("✅ %d produto(s) removido(s) do monitoramento.", len(ids)))
}

// resolve converte os números da última lista exibida em IDs de produto
func (h *Handler) resolve(ctx context.Context, userID int64, args []string) ([]int64, bool) {
	s, err := h.sessions.Get(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao ler sessão", "user_id", userID, "error", err)
		return nil, false
	}

	seen := make(map[int64]bool, len(args))
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, false
		}
		id, ok := s.ProductAt(n)
		if !ok {
			return nil, false
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, true
}

func (h *Handler) setState(ctx context.Context, userID int64, state session.State) {
	s, err := h.sessions.Get(ctx, userID)
	if err != nil {
		h.logger.Error("Erro ao ler sessão", "user_id", userID, "error", err)
	}
	if s.State == state {
		return
	}
	s.State = state
	if err := h.sessions.Save(ctx, userID, s); err != nil {
		h.logger.Error("Erro ao salvar sessão", "user_id", userID, "error", err)
	}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Error("Erro ao enviar mensagem", "chat_id", chatID, "error", err)
	}
}

func userOf(message *tgbotapi.Message) models.User {
	if message.From == nil {
		return models.User{ID: message.Chat.ID}
	}
	return models.User{
		ID:        message.From.ID,
		Username:  message.From.UserName,
		FirstName: message.From.FirstName,
		LastName:  message.From.LastName,
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
