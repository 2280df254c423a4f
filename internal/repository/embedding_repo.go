package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"ki-studio/internal/domain"
)

// EmbeddingRepository guarda vectores de mensajes y busca chats por similitud coseno.
type EmbeddingRepository interface {
	Create(ctx context.Context, embedding domain.MessageEmbedding) error
	SearchChats(ctx context.Context, userID string, query pgvector.Vector, k int) ([]domain.ChatSearchResult, error)
}

type PgEmbeddingRepository struct {
	pool *pgxpool.Pool
}

func NewPgEmbeddingRepository(pool *pgxpool.Pool) *PgEmbeddingRepository {
	return &PgEmbeddingRepository{pool: pool}
}

func (r *PgEmbeddingRepository) Create(ctx context.Context, e domain.MessageEmbedding) error {
	const query = `
		INSERT INTO message_embeddings (message_id, chat_id, user_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, e.MessageID, e.ChatID, e.UserID, e.Content, e.Embedding, e.CreatedAt)
	return err
}

func (r *PgEmbeddingRepository) SearchChats(ctx context.Context, userID string, queryEmbedding pgvector.Vector, k int) ([]domain.ChatSearchResult, error) {
	if k <= 0 {
		k = 5
	}
	// Se piden más filas que k porque varios mensajes pueden caer en el mismo chat.
	const query = `
		SELECT c.id, c.user_id, c.project_id, c.title, c.visibility, c.created_at,
		       e.content, e.embedding <=> $2 AS distance
		FROM message_embeddings e
		JOIN chats c ON c.id = e.chat_id
		WHERE e.user_id = $1
		ORDER BY e.embedding <=> $2
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, queryEmbedding, k*5)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scanned []domain.ChatSearchResult
	for rows.Next() {
		var res domain.ChatSearchResult
		if err := rows.Scan(
			&res.Chat.ID,
			&res.Chat.UserID,
			&res.Chat.ProjectID,
			&res.Chat.Title,
			&res.Chat.Visibility,
			&res.Chat.CreatedAt,
			&res.Snippet,
			&res.Distance,
		); err != nil {
			return nil, err
		}
		scanned = append(scanned, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dedupeByChat(scanned, k), nil
}

// dedupeByChat conserva el primer resultado (el más cercano) de cada chat.
func dedupeByChat(results []domain.ChatSearchResult, k int) []domain.ChatSearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.ChatSearchResult, 0, k)
	for _, r := range results {
		if _, ok := seen[r.Chat.ID]; ok {
			continue
		}
		seen[r.Chat.ID] = struct{}{}
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out
}
