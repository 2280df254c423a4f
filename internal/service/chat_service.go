package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"ki-studio/internal/domain"
	"ki-studio/internal/llm"
	"ki-studio/internal/repository"
)

const (
	defaultMaxSteps     = 5
	titleMaxLength      = 80
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	embeddingTimeout    = 30 * time.Second

	systemPrompt = "You are a friendly assistant! Keep your responses concise and helpful. " +
		"When the user asks for a picture, call the generateImage tool with a detailed prompt."
	titlePrompt = "Generate a short title for a conversation that starts with the message below. " +
		"Use at most 80 characters, no quotes, no trailing punctuation. Reply with the title only.\n\n%s"
)

var (
	ErrChatNotFound      = errors.New("chat not found")
	ErrChatForbidden     = errors.New("forbidden")
	ErrInvalidVisibility = errors.New("visibility must be private or public")
	ErrEmptyMessage      = errors.New("message is required")
	ErrMissingQuery      = errors.New("query is required")
	ErrSearchUnavailable = errors.New("history search not configured")
	ErrNoModelConfigured = errors.New("no chat model configured")
)

var generateImageTool = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name:        toolGenerateImage,
		Description: "Generate an image from a text prompt.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string","description":"Detailed description of the image to generate"}},"required":["prompt"]}`),
	},
}

// ChatEvent es un evento del stream de mensajes de UI que consume el front end.
type ChatEvent struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	Delta      string `json:"delta,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Input      any    `json:"input,omitempty"`
	Output     any    `json:"output,omitempty"`
	ErrorText  string `json:"errorText,omitempty"`
}

type SendMessageInput struct {
	ChatID     string
	UserID     string
	Message    domain.Message
	ModelID    string
	Visibility string
	ProjectID  *string
}

type HistoryPage struct {
	Chats   []domain.Chat `json:"chats"`
	HasMore bool          `json:"hasMore"`
}

// ChatService orquesta el historial de chats y la respuesta del modelo en streaming.
type ChatService struct {
	logger     *zap.Logger
	chats      repository.ChatRepository
	messages   *MessageService
	history    ContextService
	projects   *ProjectService
	models     *llm.Registry
	images     *ImageService
	embeddings repository.EmbeddingRepository
	embedder   llm.Embedder
	maxSteps   int
	wg         sync.WaitGroup
}

// NewChatService acepta images, embeddings y embedder nil: sin ellos no hay herramienta
// de imágenes ni búsqueda semántica. projects valida el projectId de los chats nuevos.
func NewChatService(
	logger *zap.Logger,
	chats repository.ChatRepository,
	messages *MessageService,
	history ContextService,
	projects *ProjectService,
	models *llm.Registry,
	images *ImageService,
	embeddings repository.EmbeddingRepository,
	embedder llm.Embedder,
) *ChatService {
	return &ChatService{
		logger:     logger,
		chats:      chats,
		messages:   messages,
		history:    history,
		projects:   projects,
		models:     models,
		images:     images,
		embeddings: embeddings,
		embedder:   embedder,
		maxSteps:   defaultMaxSteps,
	}
}

// SendMessage guarda el mensaje del usuario, transmite la respuesta por emit y guarda
// el mensaje final del asistente.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput, emit func(ChatEvent) error) (domain.Message, error) {
	if emit == nil {
		emit = func(ChatEvent) error { return nil }
	}
	in.ChatID = strings.TrimSpace(in.ChatID)
	if in.ChatID == "" {
		return domain.Message{}, ErrIDRequired
	}
	if !isUUID(in.ChatID) {
		return domain.Message{}, ErrInvalidRequestBody
	}
	if len(in.Message.Parts) == 0 {
		return domain.Message{}, ErrEmptyMessage
	}

	chat, err := s.ensureChat(ctx, in)
	if err != nil {
		return domain.Message{}, err
	}

	in.Message.ChatID = chat.ID
	in.Message.Role = domain.RoleUser
	userMsg, err := s.messages.Save(ctx, in.Message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save user message: %w", err)
	}
	s.indexAsync(userMsg, chat.UserID)

	history, err := s.history.GetContext(ctx, chat.ID)
	if err != nil {
		return domain.Message{}, err
	}

	model, ok := s.models.Get(in.ModelID)
	if !ok || model.Client == nil {
		return domain.Message{}, ErrNoModelConfigured
	}

	conv := append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, history...)
	assistant, err := s.runSteps(ctx, model, conv, in.UserID, emit)
	if err != nil {
		return domain.Message{}, err
	}
	if len(assistant.Parts) == 0 {
		return assistant, nil
	}

	assistant.ChatID = chat.ID
	saved, err := s.messages.Save(ctx, assistant)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save assistant message: %w", err)
	}
	return saved, nil
}

func (s *ChatService) ensureChat(ctx context.Context, in SendMessageInput) (domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, in.ChatID)
	if err == nil {
		if chat.UserID != in.UserID {
			return domain.Chat{}, ErrChatForbidden
		}
		return chat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, err
	}

	visibility := strings.TrimSpace(in.Visibility)
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}
	if !domain.IsValidVisibility(visibility) {
		return domain.Chat{}, ErrInvalidVisibility
	}
	if in.ProjectID != nil {
		if s.projects == nil {
			return domain.Chat{}, ErrProjectNotFound
		}
		if _, err := s.projects.Get(ctx, in.UserID, *in.ProjectID); err != nil {
			return domain.Chat{}, err
		}
	}

	chat = domain.Chat{
		ID:         in.ChatID,
		UserID:     in.UserID,
		ProjectID:  in.ProjectID,
		Title:      s.GenerateTitle(ctx, in.Message.Text()),
		Visibility: visibility,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return domain.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// GenerateTitle pide un título al title-model; si falla usa el inicio del mensaje.
func (s *ChatService) GenerateTitle(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	fallback := truncateRunes(firstLine(text), titleMaxLength)
	if fallback == "" {
		fallback = "New chat"
	}
	if text == "" || !s.models.Has(llm.ModelTitle) {
		return fallback
	}

	model, _ := s.models.Get(llm.ModelTitle)
	out, err := model.Client.Generate(ctx, fmt.Sprintf(titlePrompt, text))
	if err != nil {
		s.logger.Warn("title generation failed", zap.Error(err))
		return fallback
	}
	_, out = llm.ExtractReasoning(out)
	title := strings.Trim(firstLine(out), "\"'` ")
	if title == "" {
		return fallback
	}
	return truncateRunes(title, titleMaxLength)
}

func (s *ChatService) runSteps(ctx context.Context, model llm.Model, conv []llm.Message, userID string, emit func(ChatEvent) error) (domain.Message, error) {
	msg := domain.Message{ID: uuid.NewString(), Role: domain.RoleAssistant}
	ui := &uiStream{emit: emit}

	if err := emit(ChatEvent{Type: "start", MessageID: msg.ID}); err != nil {
		return domain.Message{}, err
	}

	for step := 0; step < s.maxSteps; step++ {
		if err := emit(ChatEvent{Type: "start-step"}); err != nil {
			return domain.Message{}, err
		}

		var tools []llm.Tool
		// En el último paso no se ofrecen herramientas para forzar una respuesta de texto.
		if s.images != nil && step < s.maxSteps-1 {
			tools = []llm.Tool{generateImageTool}
		}

		completion, err := s.streamStep(ctx, model, conv, tools, ui)
		if err != nil {
			return domain.Message{}, err
		}
		msg.Parts = append(msg.Parts, ui.takeParts()...)

		if len(completion.ToolCalls) == 0 {
			if err := emit(ChatEvent{Type: "finish-step"}); err != nil {
				return domain.Message{}, err
			}
			break
		}

		conv = append(conv, llm.Message{Role: llm.RoleAssistant, Content: completion.Content, ToolCalls: completion.ToolCalls})
		for _, call := range completion.ToolCalls {
			part, toolMsg, err := s.runTool(ctx, userID, call, emit)
			if err != nil {
				return domain.Message{}, err
			}
			msg.Parts = append(msg.Parts, part)
			conv = append(conv, toolMsg)
		}
		if err := emit(ChatEvent{Type: "finish-step"}); err != nil {
			return domain.Message{}, err
		}
	}

	if err := emit(ChatEvent{Type: "finish"}); err != nil {
		return domain.Message{}, err
	}
	msg.CreatedAt = time.Now().UTC()
	return msg, nil
}

func (s *ChatService) streamStep(ctx context.Context, model llm.Model, conv []llm.Message, tools []llm.Tool, ui *uiStream) (llm.Completion, error) {
	var extractor *llm.ThinkExtractor
	if model.Reasoning {
		extractor = &llm.ThinkExtractor{}
	}

	onDelta := func(delta string) error {
		if extractor == nil {
			return ui.text(delta)
		}
		return ui.segments(extractor.Push(delta))
	}

	completion, err := model.Client.Stream(ctx, llm.Request{Messages: conv, Tools: tools}, onDelta)
	if err != nil {
		return llm.Completion{}, err
	}
	if extractor != nil {
		if err := ui.segments(extractor.Flush()); err != nil {
			return llm.Completion{}, err
		}
	}
	if err := ui.closeBlocks(); err != nil {
		return llm.Completion{}, err
	}
	return completion, nil
}

func (s *ChatService) runTool(ctx context.Context, userID string, call llm.ToolCall, emit func(ChatEvent) error) (domain.MessagePart, llm.Message, error) {
	var args struct {
		Prompt string `json:"prompt"`
	}
	_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
	input := map[string]any{"prompt": args.Prompt}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}

	if err := emit(ChatEvent{Type: "tool-input-available", ToolCallID: call.ID, ToolName: call.Function.Name, Input: input}); err != nil {
		return domain.MessagePart{}, llm.Message{}, err
	}

	var (
		img GeneratedImage
		err error
	)
	if call.Function.Name != toolGenerateImage || s.images == nil {
		err = fmt.Errorf("unknown tool %q", call.Function.Name)
	} else {
		img, err = s.images.Generate(ctx, UserLimitKey(userID), args.Prompt)
	}

	if err != nil {
		if ctx.Err() != nil {
			return domain.MessagePart{}, llm.Message{}, ctx.Err()
		}
		s.logger.Warn("tool call failed", zap.String("tool", call.Function.Name), zap.Error(err))
		if emitErr := emit(ChatEvent{Type: "tool-output-error", ToolCallID: call.ID, ErrorText: err.Error()}); emitErr != nil {
			return domain.MessagePart{}, llm.Message{}, emitErr
		}
		part := domain.MessagePart{
			Type:       "tool-" + call.Function.Name,
			State:      stateError,
			ToolCallID: call.ID,
			Input:      input,
			Output:     map[string]any{"error": err.Error()},
		}
		return part, toolResult(call.ID, map[string]any{"error": err.Error()}), nil
	}

	img.ToolCallID = call.ID
	if err := emit(ChatEvent{Type: "tool-output-available", ToolCallID: call.ID, Output: img.Output()}); err != nil {
		return domain.MessagePart{}, llm.Message{}, err
	}

	// Al modelo no se le reenvía el base64, sólo el resultado.
	result := map[string]any{"status": "generated", "prompt": img.Prompt}
	if img.URL != "" {
		result["url"] = img.URL
	}
	return img.Part(), toolResult(call.ID, result), nil
}

func toolResult(callID string, payload map[string]any) llm.Message {
	b, _ := json.Marshal(payload)
	return llm.Message{Role: llm.RoleTool, ToolCallID: callID, Content: string(b)}
}

// GetChat devuelve el chat y sus mensajes si el usuario puede leerlo.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID string) (domain.Chat, []domain.Message, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, nil, err
	}
	if !chat.CanBeReadBy(userID) {
		return domain.Chat{}, nil, ErrChatForbidden
	}
	messages, err := s.messages.ListByChat(ctx, chat.ID)
	if err != nil {
		return domain.Chat{}, nil, err
	}
	return chat, messages, nil
}

func (s *ChatService) UpdateVisibility(ctx context.Context, userID, chatID, visibility string) (domain.Chat, error) {
	visibility = strings.TrimSpace(visibility)
	if !domain.IsValidVisibility(visibility) {
		return domain.Chat{}, ErrInvalidVisibility
	}
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if err := s.chats.UpdateVisibility(ctx, chat.ID, userID, visibility); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Chat{}, ErrChatNotFound
		}
		return domain.Chat{}, err
	}
	chat.Visibility = visibility
	return chat, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if err := s.chats.Delete(ctx, chat.ID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// History pagina los chats del usuario del más nuevo al más viejo.
func (s *ChatService) History(ctx context.Context, userID string, limit int, endingBefore string) (HistoryPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	endingBefore = strings.TrimSpace(endingBefore)
	if endingBefore != "" && !isUUID(endingBefore) {
		return HistoryPage{}, ErrChatNotFound
	}

	chats, err := s.chats.ListByUserID(ctx, userID, limit+1, endingBefore)
	if err != nil {
		return HistoryPage{}, err
	}
	page := HistoryPage{Chats: chats, HasMore: len(chats) > limit}
	if page.HasMore {
		page.Chats = chats[:limit]
	}
	return page, nil
}

// SearchHistory busca chats del usuario por similitud semántica con query.
func (s *ChatService) SearchHistory(ctx context.Context, userID, query string, limit int) ([]domain.ChatSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingQuery
	}
	if s.embedder == nil || s.embeddings == nil {
		return nil, ErrSearchUnavailable
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 5
	}
	vec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.embeddings.SearchChats(ctx, userID, pgvector.NewVector(vec), limit)
}

// Wait espera a que terminen las indexaciones en curso.
func (s *ChatService) Wait() {
	s.wg.Wait()
}

func (s *ChatService) indexAsync(msg domain.Message, userID string) {
	if s.embedder == nil || s.embeddings == nil {
		return
	}
	text := msg.Text()
	if text == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), embeddingTimeout)
		defer cancel()

		vec, err := s.embedder.CreateEmbedding(ctx, text)
		if err != nil {
			s.logger.Warn("embedding failed", zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		err = s.embeddings.Create(ctx, domain.MessageEmbedding{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
			UserID:    userID,
			Content:   text,
			Embedding: pgvector.NewVector(vec),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn("store embedding failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}()
}

func (s *ChatService) getChat(ctx context.Context, chatID string) (domain.Chat, error) {
	chatID = strings.TrimSpace(chatID)
	if !isUUID(chatID) {
		return domain.Chat{}, ErrChatNotFound
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, ErrChatNotFound
	}
	return chat, err
}

func (s *ChatService) ownedChat(ctx context.Context, userID, chatID string) (domain.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.UserID != userID {
		return domain.Chat{}, ErrChatForbidden
	}
	return chat, nil
}

// uiStream abre y cierra bloques de texto y razonamiento a medida que llegan deltas,
// y acumula las partes del mensaje final.
type uiStream struct {
	emit         func(ChatEvent) error
	textID       string
	reasoningID  string
	textBuf      strings.Builder
	reasoningBuf strings.Builder
	parts        []domain.MessagePart
}

func (u *uiStream) text(delta string) error {
	if delta == "" {
		return nil
	}
	if err := u.endReasoning(); err != nil {
		return err
	}
	if u.textID == "" {
		u.textID = uuid.NewString()
		if err := u.emit(ChatEvent{Type: "text-start", ID: u.textID}); err != nil {
			return err
		}
	}
	u.textBuf.WriteString(delta)
	return u.emit(ChatEvent{Type: "text-delta", ID: u.textID, Delta: delta})
}

func (u *uiStream) reasoning(delta string) error {
	if delta == "" {
		return nil
	}
	if err := u.endText(); err != nil {
		return err
	}
	if u.reasoningID == "" {
		u.reasoningID = uuid.NewString()
		if err := u.emit(ChatEvent{Type: "reasoning-start", ID: u.reasoningID}); err != nil {
			return err
		}
	}
	u.reasoningBuf.WriteString(delta)
	return u.emit(ChatEvent{Type: "reasoning-delta", ID: u.reasoningID, Delta: delta})
}

func (u *uiStream) segments(segs []llm.Segment) error {
	for _, seg := range segs {
		var err error
		if seg.Reasoning {
			err = u.reasoning(seg.Text)
		} else {
			err = u.text(seg.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (u *uiStream) endText() error {
	if u.textID == "" {
		return nil
	}
	id := u.textID
	u.textID = ""
	if t := strings.TrimSpace(u.textBuf.String()); t != "" {
		u.parts = append(u.parts, domain.MessagePart{Type: domain.PartText, Text: t})
	}
	u.textBuf.Reset()
	return u.emit(ChatEvent{Type: "text-end", ID: id})
}

func (u *uiStream) endReasoning() error {
	if u.reasoningID == "" {
		return nil
	}
	id := u.reasoningID
	u.reasoningID = ""
	if r := strings.TrimSpace(u.reasoningBuf.String()); r != "" {
		u.parts = append(u.parts, domain.MessagePart{Type: domain.PartReasoning, Text: r})
	}
	u.reasoningBuf.Reset()
	return u.emit(ChatEvent{Type: "reasoning-end", ID: id})
}

func (u *uiStream) closeBlocks() error {
	if err := u.endReasoning(); err != nil {
		return err
	}
	return u.endText()
}

// takeParts devuelve las partes acumuladas desde la última llamada.
func (u *uiStream) takeParts() []domain.MessagePart {
	parts := u.parts
	u.parts = nil
	return parts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
