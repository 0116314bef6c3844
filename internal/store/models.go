package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       *string   `json:"name"` // Nullable
	CreatedAt  time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"` // Using UUID for external ID
	UserID    *int64    `json:"user_id"`
	Role      string    `json:"role"` // "user", "assistant" or "system"
	Content   string    `json:"content"`
	SessionID *string   `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Checkin struct {
	ID        string    `json:"id"` // UUID
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Mood      *string   `json:"mood"` // Nullable
	Sentiment string    `json:"sentiment"`
	CreatedAt time.Time `json:"created_at"`
}

type Reframe struct {
	ID           string    `json:"id"` // UUID
	UserID       int64     `json:"user_id"`
	OriginalText string    `json:"original_text"`
	ReframedText string    `json:"reframed_text"`
	CreatedAt    time.Time `json:"created_at"`
}
