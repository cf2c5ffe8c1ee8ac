package models

// FullResumeSection marks the row holding the whole extracted resume text.
const FullResumeSection = "FULL RESUME"

type Resume struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Section string `gorm:"size:80;not null" json:"section"`
	Content string `gorm:"type:text" json:"content"`
}

func (Resume) TableName() string { return "resume" }
