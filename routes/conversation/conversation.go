package conversation

import (
	"ResumeAI/controllers"
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers chat routes (protected)
func Register(g *gin.RouterGroup, db *gorm.DB, chains *chain.Manager) {
	// Basic rate limiting on the model endpoint
	g.POST("/gpt-api-call", middleware.RateLimit(), controllers.GPTAPICall(db, chains))
	g.GET("/get-messages", controllers.GetMessages(chains))
	g.GET("/chats", controllers.ListChats(chains))
	g.DELETE("/chats/:chat_id", controllers.DeleteConversation(chains))
}
