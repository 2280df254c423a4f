package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ki-studio/internal/domain"
)

// ChatRepository define la persistencia del historial de chats.
type ChatRepository interface {
	Create(ctx context.Context, chat domain.Chat) error
	GetByID(ctx context.Context, id string) (domain.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit int, endingBefore string) ([]domain.Chat, error)
	UpdateVisibility(ctx context.Context, id, userID, visibility string) error
	Delete(ctx context.Context, id, userID string) error
}

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) Create(ctx context.Context, chat domain.Chat) error {
	const query = `
		INSERT INTO chats (id, user_id, project_id, title, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		chat.ID,
		chat.UserID,
		chat.ProjectID,
		chat.Title,
		chat.Visibility,
		chat.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	const query = `
		SELECT id, user_id, project_id, title, visibility, created_at
		FROM chats
		WHERE id = $1
	`
	return scanChat(r.pool.QueryRow(ctx, query, id))
}

// ListByUserID pagina hacia atrás: con endingBefore devuelve los chats creados antes de ese chat.
func (r *PgChatRepository) ListByUserID(ctx context.Context, userID string, limit int, endingBefore string) ([]domain.Chat, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		rows pgx.Rows
		err  error
	)
	if endingBefore == "" {
		const query = `
			SELECT id, user_id, project_id, title, visibility, created_at
			FROM chats
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err = r.pool.Query(ctx, query, userID, limit)
	} else {
		const query = `
			SELECT id, user_id, project_id, title, visibility, created_at
			FROM chats
			WHERE user_id = $1
			  AND created_at < (SELECT created_at FROM chats WHERE id = $3)
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err = r.pool.Query(ctx, query, userID, limit, endingBefore)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []domain.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *PgChatRepository) UpdateVisibility(ctx context.Context, id, userID, visibility string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE chats SET visibility = $3 WHERE id = $1 AND user_id = $2`, id, userID, visibility)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete borra el chat; mensajes y embeddings caen por ON DELETE CASCADE.
func (r *PgChatRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanChat(row rowScanner) (domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Visibility, &c.CreatedAt)
	return c, err
}
