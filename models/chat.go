package models

import "time"

// Chat-Rollen wie vom Chat-Backend erwartet.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage ist ein Eintrag im Chat-Verlauf einer Session. Der Verlauf ist
// append-only; Nachrichten werden weder editiert noch gelöscht.
// Announcement markiert System-Einträge ("paper added/removed"), die nur im
// Transkript erscheinen und nie als Chat-Turn an das Backend gehen.
type ChatMessage struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Announcement bool      `json:"announcement,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
