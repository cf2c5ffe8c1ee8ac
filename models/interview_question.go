package models

type InterviewQuestion struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	JobAppID       *uint  `gorm:"index" json:"job_app_id"`
	Question       string `gorm:"type:text;not null" json:"question"`
	Answer         string `gorm:"type:text" json:"answer"`
	Recommendation string `gorm:"type:text" json:"recommendation"`
}
