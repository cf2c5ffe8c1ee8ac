package websocket

import (
	"ResumeAI/controllers"
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Register(r *gin.Engine, db *gorm.DB, chains *chain.Manager) {
	r.GET("/ws/chat", middleware.RateLimit(), controllers.ChatWS(db, chains))
}
