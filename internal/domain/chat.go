package domain

import "time"

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Chat agrupa el historial de una conversación.
type Chat struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProjectID  *string   `json:"projectId,omitempty"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsValidVisibility valida los valores aceptados para la visibilidad de un chat.
func IsValidVisibility(v string) bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// CanBeReadBy indica si el usuario puede leer el chat.
func (c Chat) CanBeReadBy(userID string) bool {
	return c.Visibility == VisibilityPublic || c.UserID == userID
}
