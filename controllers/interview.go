package controllers

import (
	"ResumeAI/models"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/resume"
	"ResumeAI/pkg/services"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// question types accepted by GenerateInterviewQuestions
const (
	QuestionsWorkExperience = "WorkExperience"
	QuestionsRole           = "Role"
)

// job sections used as context for interview questions
var questionJobSections = []string{"company_description", "responsibilities", "qualifications"}

var errNoQuestions = errors.New("model reply has no questions")

// GenerateInterviewQuestions asks the model for new questions grounded on
// the resume and, optionally, one job application, and stores them.
// WorkExperience questions only see the experience sections.
func GenerateInterviewQuestions(db *gorm.DB, llm services.ChatClient, p *prompts.Set) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		ctx := c.Request.Context()

		var body struct {
			JobAppID *uint `json:"job_app_id"`
			Type     string `json:"type"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		text, err := resume.FullText(ctx, db, uid)
		if err != nil {
			dbError(c, "interview", err)
			return
		}
		if text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "upload a resume first"})
			return
		}
		if body.Type == QuestionsWorkExperience {
			if text, err = resume.Experience(ctx, db, uid); err != nil {
				dbError(c, "interview", err)
				return
			}
		}

		jobContext := ""
		if body.JobAppID != nil {
			var app models.JobApplication
			err := db.WithContext(ctx).Where("id = ? AND user_id = ?", *body.JobAppID, uid).First(&app).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"msg": "job application not found"})
				return
			}
			if err != nil {
				dbError(c, "interview", err)
				return
			}
			jobContext = describeJob(app)
		}

		var existing []string
		if err := db.WithContext(ctx).Model(&models.InterviewQuestion{}).Where("user_id = ?", uid).Pluck("question", &existing).Error; err != nil {
			dbError(c, "interview", err)
			return
		}
		exclude := ""
		if len(existing) > 0 {
			quoted, _ := json.Marshal(existing)
			if exclude, err = p.Render(prompts.ExcludeSimilar, map[string]string{"questions": string(quoted)}); err != nil {
				dbError(c, "interview", err)
				return
			}
		}

		name := prompts.InterviewQuestionsRole
		if body.Type == QuestionsWorkExperience {
			name = prompts.InterviewQuestionsExperience
		}
		prompt, err := p.Render(name, map[string]string{
			"context":     text,
			"job_context": jobContext,
			"exclude":     exclude,
		})
		if err != nil {
			log.Printf("[interview] render %s: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "prompt error"})
			return
		}

		questions, err := askQuestions(ctx, llm, prompt)
		if err != nil {
			log.Printf("[interview] user=%d: %v", uid, err)
			c.JSON(http.StatusBadGateway, gin.H{"msg": "Error fetching answer from the language model"})
			return
		}

		rows := make([]models.InterviewQuestion, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, models.InterviewQuestion{UserID: uid, JobAppID: body.JobAppID, Question: q})
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			dbError(c, "interview", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"questions": rows})
	}
}

func describeJob(app models.JobApplication) string {
	var b strings.Builder
	b.WriteString("The user is applying for " + app.JobTitle + " at " + app.CompanyName + ".\n")
	if len(app.Sections) > 0 {
		for _, k := range questionJobSections {
			if v := strings.TrimSpace(gjson.GetBytes(app.Sections, k).String()); v != "" {
				b.WriteString(strings.ReplaceAll(k, "_", " ") + ": " + v + "\n")
			}
		}
	} else if strings.TrimSpace(app.JobDescription) != "" {
		b.WriteString("Job description: " + app.JobDescription + "\n")
	}
	return b.String()
}

// askQuestions reads a JSON array of strings from the reply. Single-quoted
// lists are accepted as a fallback.
func askQuestions(ctx context.Context, llm services.ChatClient, prompt string) ([]string, error) {
	reply, err := services.Complete(ctx, llm, "", prompt)
	if err != nil {
		return nil, err
	}
	raw := services.ExtractJSON(reply)
	if raw == "" {
		raw = services.ExtractJSON(strings.ReplaceAll(reply, "'", "\""))
	}
	var out []string
	for _, q := range gjson.Parse(raw).Array() {
		if s := strings.TrimSpace(q.String()); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errNoQuestions
	}
	return out, nil
}

func GetInterviewQuestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			JobAppID *uint `json:"job_app_id"`
		}
		// an empty body lists everything
		_ = c.ShouldBindJSON(&body)

		q := db.WithContext(c.Request.Context()).Where("user_id = ?", currentUser(c))
		if body.JobAppID != nil {
			q = q.Where("job_app_id = ?", *body.JobAppID)
		}
		var rows []models.InterviewQuestion
		if err := q.Order("id ASC").Find(&rows).Error; err != nil {
			dbError(c, "interview", err)
			return
		}
		if rows == nil {
			rows = []models.InterviewQuestion{}
		}
		c.JSON(http.StatusOK, gin.H{"questions": rows})
	}
}

type answerBody struct {
	QuestionID     uint    `json:"question_id"`
	Answer         string  `json:"answer"`
	Recommendation *string `json:"recommendation"`
}

// SaveAnswer stores an answer and, when given, the recommendation that came
// with it.
func SaveAnswer(db *gorm.DB) gin.HandlerFunc {
	return updateAnswer(db, true)
}

// EditAnswer changes only the answer text.
func EditAnswer(db *gorm.DB) gin.HandlerFunc {
	return updateAnswer(db, false)
}

func updateAnswer(db *gorm.DB, withRecommendation bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body answerBody
		if err := c.ShouldBindJSON(&body); err != nil || body.QuestionID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "question_id is required"})
			return
		}
		updates := map[string]any{"answer": body.Answer}
		if withRecommendation && body.Recommendation != nil {
			updates["recommendation"] = *body.Recommendation
		}
		res := db.WithContext(c.Request.Context()).Model(&models.InterviewQuestion{}).
			Where("id = ? AND user_id = ?", body.QuestionID, currentUser(c)).
			Updates(updates)
		if res.Error != nil {
			dbError(c, "interview", res.Error)
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"msg": "question not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DeleteInterviewQuestion(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			QuestionID uint `json:"question_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.QuestionID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "question_id is required"})
			return
		}
		res := db.WithContext(c.Request.Context()).
			Where("id = ? AND user_id = ?", body.QuestionID, currentUser(c)).
			Delete(&models.InterviewQuestion{})
		if res.Error != nil {
			dbError(c, "interview", res.Error)
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"msg": "question not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Interview question deleted successfully"})
	}
}
