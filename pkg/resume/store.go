package resume

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ResumeAI/models"

	"gorm.io/gorm"
)

// Replace overwrites the user's resume with the full text plus one row
// per detected section.
func Replace(ctx context.Context, db *gorm.DB, userID uint, text string) ([]models.Resume, error) {
	rows := []models.Resume{{UserID: userID, Section: models.FullResumeSection, Content: text}}
	for _, s := range Split(text) {
		rows = append(rows, models.Resume{UserID: userID, Section: s.Header, Content: s.Content})
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Resume{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("replace resume: %w", err)
	}
	return rows, nil
}

// List returns the stored rows, full resume first.
func List(ctx context.Context, db *gorm.DB, userID uint) ([]models.Resume, error) {
	var rows []models.Resume
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error
	if rows == nil {
		rows = []models.Resume{}
	}
	return rows, err
}

// FullText is the grounding context for prompts; empty when nothing was
// uploaded.
func FullText(ctx context.Context, db *gorm.DB, userID uint) (string, error) {
	var row models.Resume
	err := db.WithContext(ctx).
		Where("user_id = ? AND section = ?", userID, models.FullResumeSection).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(row.Content), nil
}

// Grounding is the context for chat turns: text, or the stored resume
// when text is blank, followed by the user's answered interview questions.
func Grounding(ctx context.Context, db *gorm.DB, userID uint, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		var err error
		if text, err = FullText(ctx, db, userID); err != nil {
			return "", err
		}
	}
	var answered []models.InterviewQuestion
	err := db.WithContext(ctx).
		Where("user_id = ? AND answer <> ''", userID).
		Order("id ASC").
		Find(&answered).Error
	if err != nil {
		return "", fmt.Errorf("load answers: %w", err)
	}
	if len(answered) == 0 {
		return text, nil
	}

	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	b.WriteString("Interview answers:")
	for _, q := range answered {
		b.WriteString("\nQuestion: " + strings.TrimSpace(q.Question))
		b.WriteString("\nAnswer: " + strings.TrimSpace(q.Answer))
	}
	return b.String(), nil
}

// Experience joins the experience sections for prompts that only need
// work history. It falls back to the full text.
func Experience(ctx context.Context, db *gorm.DB, userID uint) (string, error) {
	rows, err := List(ctx, db, userID)
	if err != nil {
		return "", err
	}
	var parts []string
	full := ""
	for _, r := range rows {
		if r.Section == models.FullResumeSection {
			full = r.Content
			continue
		}
		if strings.Contains(strings.ToLower(r.Section), "experience") || strings.Contains(strings.ToLower(r.Section), "history") {
			parts = append(parts, r.Section+"\n"+r.Content)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(full), nil
	}
	return strings.Join(parts, "\n\n"), nil
}
