package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ki-studio/internal/domain"
	"ki-studio/internal/llm"
	"ki-studio/internal/repository"
)

const defaultHistoryWindow = 20

// ContextService arma el historial que se envía al modelo.
type ContextService interface {
	GetContext(ctx context.Context, chatID string) ([]llm.Message, error)
}

// BasicContextService toma los últimos mensajes del chat en orden cronológico.
type BasicContextService struct {
	messageRepo repository.MessageRepository
	window      int
}

func NewBasicContextService(messageRepo repository.MessageRepository) *BasicContextService {
	return &BasicContextService{messageRepo: messageRepo, window: defaultHistoryWindow}
}

func (s *BasicContextService) GetContext(ctx context.Context, chatID string) ([]llm.Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, nil
	}

	messages, err := s.messageRepo.ListByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if len(messages) > s.window {
		messages = messages[len(messages)-s.window:]
	}

	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		content := historyText(m)
		if content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	return out, nil
}

// historyText resume un mensaje para el modelo; las imágenes generadas se citan por prompt.
func historyText(m domain.Message) string {
	lines := []string{}
	if text := m.Text(); text != "" {
		lines = append(lines, text)
	}
	for _, p := range m.Parts {
		if p.Type != toolPartType {
			continue
		}
		if input, ok := p.Input.(map[string]any); ok {
			if prompt, _ := input["prompt"].(string); prompt != "" {
				lines = append(lines, fmt.Sprintf("[generated image: %s]", prompt))
			}
		}
	}
	for _, a := range m.Attachments {
		lines = append(lines, fmt.Sprintf("[attachment: %s %s]", a.Name, a.URL))
	}
	return strings.Join(lines, "\n")
}
