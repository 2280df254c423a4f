package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// MessageEmbedding vincula el texto de un mensaje con su vector para la búsqueda en el historial.
type MessageEmbedding struct {
	MessageID string          `json:"messageId"`
	ChatID    string          `json:"chatId"`
	UserID    string          `json:"userId"`
	Content   string          `json:"content"`
	Embedding pgvector.Vector `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ChatSearchResult es un chat encontrado por similitud junto al fragmento más cercano.
type ChatSearchResult struct {
	Chat     Chat    `json:"chat"`
	Snippet  string  `json:"snippet"`
	Distance float64 `json:"distance"`
}
