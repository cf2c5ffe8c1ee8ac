package controllers

import (
	"ResumeAI/models"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type jobApplicationBody struct {
	JobTitle       string `json:"job_title"`
	CompanyName    string `json:"company_name"`
	JobDescription string `json:"job_description"`
	Status         string `json:"status"`
	PostURL        string `json:"post_url"`
}

func (b *jobApplicationBody) valid() bool {
	return strings.TrimSpace(b.JobTitle) != "" && strings.TrimSpace(b.CompanyName) != ""
}

func (b *jobApplicationBody) apply(app *models.JobApplication) {
	app.JobTitle = strings.TrimSpace(b.JobTitle)
	app.CompanyName = strings.TrimSpace(b.CompanyName)
	app.JobDescription = b.JobDescription
	app.Status = strings.TrimSpace(b.Status)
	app.PostURL = strings.TrimSpace(b.PostURL)
}

func GetJobApplications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var apps []models.JobApplication
		if err := db.WithContext(c.Request.Context()).Where("user_id = ?", currentUser(c)).Order("id ASC").Find(&apps).Error; err != nil {
			dbError(c, "jobs", err)
			return
		}
		if apps == nil {
			apps = []models.JobApplication{}
		}
		c.JSON(http.StatusOK, gin.H{
			"applications": apps,
			"headers":      []string{"Job Title/Role", "Company Name", "Job Description", "Status"},
		})
	}
}

// CreateJobApplication saves the application, then asks the model to split
// the description into sections. A failed split keeps the application.
func CreateJobApplication(db *gorm.DB, llm services.ChatClient, p *prompts.Set) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body jobApplicationBody
		if err := c.ShouldBindJSON(&body); err != nil || !body.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "job_title and company_name are required"})
			return
		}
		app := models.JobApplication{UserID: currentUser(c)}
		body.apply(&app)
		if err := db.WithContext(c.Request.Context()).Create(&app).Error; err != nil {
			dbError(c, "jobs", err)
			return
		}

		if strings.TrimSpace(app.JobDescription) != "" {
			sections, err := jobSections(c.Request.Context(), llm, p, app.JobDescription)
			if err != nil {
				log.Printf("[jobs] sections for app=%d: %v", app.ID, err)
			} else if err := db.Model(&app).Update("sections", sections).Error; err != nil {
				log.Printf("[jobs] save sections for app=%d: %v", app.ID, err)
			}
		}

		c.JSON(http.StatusCreated, gin.H{"success": true, "application_id": app.ID})
	}
}

// jobSections keeps only the known section keys of the model's JSON answer.
func jobSections(ctx context.Context, llm services.ChatClient, p *prompts.Set, description string) (datatypes.JSON, error) {
	prompt, err := p.Render(prompts.JobSections, map[string]string{"context": description})
	if err != nil {
		return nil, err
	}
	reply, err := services.Complete(ctx, llm, "", prompt)
	if err != nil {
		return nil, err
	}
	raw := services.ExtractJSON(reply)
	if raw == "" || !gjson.Parse(raw).IsObject() {
		return nil, errors.New("model reply is not a JSON object")
	}
	out := make(map[string]string, len(models.JobSectionKeys))
	for _, k := range models.JobSectionKeys {
		out[k] = gjson.Get(raw, k).String()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func EditJobApplication(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid id"})
			return
		}
		var body jobApplicationBody
		if err := c.ShouldBindJSON(&body); err != nil || !body.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "job_title and company_name are required"})
			return
		}

		var app models.JobApplication
		err := db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, currentUser(c)).First(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "job application not found"})
			return
		}
		if err != nil {
			dbError(c, "jobs", err)
			return
		}
		body.apply(&app)
		if err := db.Save(&app).Error; err != nil {
			dbError(c, "jobs", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "application_id": app.ID})
	}
}

// DeleteJobApplication also detaches the application's interview questions.
func DeleteJobApplication(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid id"})
			return
		}
		uid := currentUser(c)
		var deleted int64
		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			res := tx.Where("id = ? AND user_id = ?", id, uid).Delete(&models.JobApplication{})
			if res.Error != nil {
				return res.Error
			}
			deleted = res.RowsAffected
			return tx.Model(&models.InterviewQuestion{}).
				Where("job_app_id = ? AND user_id = ?", id, uid).
				Update("job_app_id", nil).Error
		})
		if err != nil {
			dbError(c, "jobs", err)
			return
		}
		if deleted == 0 {
			c.JSON(http.StatusNotFound, gin.H{"msg": "job application not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
