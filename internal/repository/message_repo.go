package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ki-studio/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, chat_id, role, parts, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	parts, err := json.Marshal(nonNilParts(message.Parts))
	if err != nil {
		return fmt.Errorf("marshal parts: %w", err)
	}
	attachments, err := json.Marshal(nonNilAttachments(message.Attachments))
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		message.ID,
		message.ChatID,
		message.Role,
		parts,
		attachments,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	const query = `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgxRows) ([]domain.Message, error) {
	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg         domain.Message
			parts       []byte
			attachments []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &parts, &attachments, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(parts, &msg.Parts); err != nil {
			return nil, fmt.Errorf("unmarshal parts of %s: %w", msg.ID, err)
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal attachments of %s: %w", msg.ID, err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func nonNilParts(p []domain.MessagePart) []domain.MessagePart {
	if p == nil {
		return []domain.MessagePart{}
	}
	return p
}

func nonNilAttachments(a []domain.Attachment) []domain.Attachment {
	if a == nil {
		return []domain.Attachment{}
	}
	return a
}
