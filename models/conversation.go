package models

import "time"

// Chat is a persisted conversation. ChatID is the conversation id shared
// with the in-memory chain registry; ID is only the row key.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ChatID    string    `gorm:"size:64;not null;uniqueIndex" json:"chat_id"`
	ChatName  string    `gorm:"size:200" json:"chat_name"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `gorm:"foreignKey:ChatID;references:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string { return "chat" }
