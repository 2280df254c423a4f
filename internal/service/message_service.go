package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ki-studio/internal/domain"
	"ki-studio/internal/repository"
)

// MessageService encapsula la lógica para guardar y leer mensajes de un chat.
type MessageService struct {
	repo repository.MessageRepository
}

var (
	ErrMessageServiceNotConfigured = errors.New("message service not configured")
	ErrMessageInvalidInput         = errors.New("message invalid input")
)

func NewMessageService(repo repository.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// Save normaliza y persiste el mensaje; completa id y fecha si faltan.
func (s *MessageService) Save(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if s == nil || s.repo == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}

	msg.ChatID = strings.TrimSpace(msg.ChatID)
	msg.Role = strings.ToLower(strings.TrimSpace(msg.Role))
	if msg.ChatID == "" || len(msg.Parts) == 0 {
		return domain.Message{}, ErrMessageInvalidInput
	}
	switch msg.Role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
	default:
		return domain.Message{}, ErrMessageInvalidInput
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return []domain.Message{}, nil
	}
	return s.repo.ListByChatID(ctx, chatID)
}
