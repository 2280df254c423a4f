package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PasswordHash string    `json:"-"`
	IsGuest      bool      `json:"isGuest"`
	CreatedAt    time.Time `json:"createdAt"`
}
