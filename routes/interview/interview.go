package interview

import (
	"ResumeAI/controllers"
	"ResumeAI/middleware"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers interview question routes (protected)
func Register(g *gin.RouterGroup, db *gorm.DB, llm services.ChatClient, p *prompts.Set) {
	g.POST("/generate-interview-questions", middleware.RateLimit(), controllers.GenerateInterviewQuestions(db, llm, p))
	g.POST("/get-interview-questions", controllers.GetInterviewQuestions(db))
	g.POST("/save-answer", controllers.SaveAnswer(db))
	g.POST("/edit-answer", controllers.EditAnswer(db))
	g.POST("/delete-interview-question", controllers.DeleteInterviewQuestion(db))
}
