package models

import (
	"time"
)

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message rows are append-only; id order is conversation order.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:10;not null" json:"type"` // "user" or "bot"
	UserID    uint      `gorm:"index" json:"user_id"`
	ChatID    string    `gorm:"size:64;not null;index" json:"chat_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
}
