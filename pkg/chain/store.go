package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ResumeAI/models"

	"gorm.io/gorm"
)

// Turn is one committed exchange. NewChat marks the first turn of a
// conversation, which also creates the chat row.
type Turn struct {
	UserID   uint
	ChatID   string
	ChatName string
	NewChat  bool
	Query    string
	Reply    string
	At       time.Time
}

// Store is the persistence the Manager needs.
type Store interface {
	ChatExists(ctx context.Context, userID uint, chatID string) (bool, error)
	SaveTurn(ctx context.Context, t Turn) error
	ListMessages(ctx context.Context, userID uint, chatID string) ([]models.Message, error)
	ListChats(ctx context.Context, userID uint) ([]models.Chat, error)
	DeleteChat(ctx context.Context, userID uint, chatID string) (bool, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ChatExists(ctx context.Context, userID uint, chatID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Chat{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&n).Error
	return n > 0, err
}

// SaveTurn writes the chat row (for a new conversation) and both messages
// in one transaction.
func (s *GormStore) SaveTurn(ctx context.Context, t Turn) error {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.NewChat {
			chat := models.Chat{UserID: t.UserID, ChatID: t.ChatID, ChatName: t.ChatName, CreatedAt: t.At}
			if err := tx.Create(&chat).Error; err != nil {
				return fmt.Errorf("insert chat: %w", err)
			}
		}
		msgs := []models.Message{
			{Type: models.SenderUser, UserID: t.UserID, ChatID: t.ChatID, Message: t.Query, Timestamp: t.At},
			{Type: models.SenderBot, UserID: t.UserID, ChatID: t.ChatID, Message: t.Reply, Timestamp: t.At},
		}
		// one row at a time keeps ids in conversation order on every driver
		for i := range msgs {
			if err := tx.Create(&msgs[i]).Error; err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) ListMessages(ctx context.Context, userID uint, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *GormStore) ListChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&chats).Error
	return chats, err
}

// DeleteChat removes the chat and its messages. It reports false when the
// user has no such chat.
func (s *GormStore) DeleteChat(ctx context.Context, userID uint, chatID string) (bool, error) {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return tx.Delete(&chat).Error
	})
	return found, err
}
