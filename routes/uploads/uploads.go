package uploads

import (
	"ResumeAI/controllers"
	"ResumeAI/pkg/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers resume upload and read routes (protected)
func Register(g *gin.RouterGroup, db *gorm.DB, files *services.ResumeFileStore) {
	g.POST("/upload-resume", controllers.UploadResume(db, files))
	g.GET("/fetch-experience-data", controllers.FetchExperienceData(db))
}
