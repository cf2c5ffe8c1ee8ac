package routes

import (
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authRoutes "ResumeAI/routes/auth"
	convRoutes "ResumeAI/routes/conversation"
	interviewRoutes "ResumeAI/routes/interview"
	jobRoutes "ResumeAI/routes/jobs"
	profileRoutes "ResumeAI/routes/profile"
	tableRoutes "ResumeAI/routes/tables"
	uploadsRoutes "ResumeAI/routes/uploads"
	websocketRoutes "ResumeAI/routes/websocket"
)

// Deps are the services handlers are built from.
type Deps struct {
	DB      *gorm.DB
	Chains  *chain.Manager
	LLM     services.ChatClient
	Prompts *prompts.Set
	Files   *services.ResumeFileStore
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "ResumeAI backend running"})
	})

	websocketRoutes.Register(r, d.DB, d.Chains)
	authRoutes.RegisterPublic(r, d.DB)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected, d.DB)
	profileRoutes.Register(protected, d.DB)
	convRoutes.Register(protected, d.DB, d.Chains)
	uploadsRoutes.Register(protected, d.DB, d.Files)
	jobRoutes.Register(protected, d.DB, d.LLM, d.Prompts)
	interviewRoutes.Register(protected, d.DB, d.LLM, d.Prompts)
	tableRoutes.Register(protected, d.DB, d.Chains)
}
