package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobApplication struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	JobTitle       string         `gorm:"size:200" json:"job_title"`
	CompanyName    string         `gorm:"size:200" json:"company_name"`
	JobDescription string         `gorm:"type:text" json:"job_description"`
	Status         string         `gorm:"size:40" json:"status"`
	PostURL        string         `gorm:"size:500" json:"post_url"`
	DateCreated    time.Time      `gorm:"autoCreateTime" json:"date_added"`
	Sections       datatypes.JSON `json:"sections,omitempty"`
}

// JobSectionKeys are the keys the section splitter asks the model for.
var JobSectionKeys = []string{"company_description", "job_description", "responsibilities", "qualifications", "compensation"}
