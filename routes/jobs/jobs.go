package jobs

import (
	"ResumeAI/controllers"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers job application routes (protected)
func Register(g *gin.RouterGroup, db *gorm.DB, llm services.ChatClient, p *prompts.Set) {
	g.POST("/get-job-applications", controllers.GetJobApplications(db))
	g.POST("/create-job-application", controllers.CreateJobApplication(db, llm, p))
	g.PUT("/edit-job-application/:id", controllers.EditJobApplication(db))
	g.DELETE("/delete-job-application/:id", controllers.DeleteJobApplication(db))
}
