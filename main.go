package main

import (
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"
	"ResumeAI/pkg/config"
	"ResumeAI/pkg/database"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"
	"ResumeAI/routes"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Open(config.DBDriver, config.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	tmpl := prompts.Default()
	if config.PromptsFile != "" {
		if tmpl, err = prompts.Load(config.PromptsFile); err != nil {
			log.Fatalf("prompts: %v", err)
		}
	}

	llm, err := services.NewChatClient()
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	files, err := services.NewResumeFileStore(config.UploadDir, int64(config.MaxUploadBytes))
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}

	registry := chain.NewRegistry(config.ChainCacheMaxItems, time.Duration(config.ChainCacheTTLSeconds)*time.Second)
	defer registry.Close()
	chains := chain.NewManager(chain.NewGormStore(db), llm, tmpl, registry, chain.Options{
		Rehydrate: config.ChainRehydrate,
		Timeout:   time.Duration(config.LLMTimeoutSecond) * time.Second,
	})

	middleware.SetRateLimitConfig(time.Duration(config.RateLimitWindowSeconds)*time.Second, config.RateLimitCapacity, config.UserConcurrencyLimit)
	middleware.SetDuplicateTTL(time.Duration(config.DuplicateWindowSeconds) * time.Second)

	if config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.MaxMultipartMemory = int64(config.MaxUploadBytes)

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:      db,
		Chains:  chains,
		LLM:     llm,
		Prompts: tmpl,
		Files:   files,
	})
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
