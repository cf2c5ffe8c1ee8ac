package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Process-wide settings. Defaults are usable without Load so tests can
// import dependent packages and override single values.
var (
	AppEnv       string = "staging"
	IsStaging    bool   = true
	IsProduction bool

	// LLMProvider selects the chat backend: "openai", "gemini" or "local".
	LLMProvider      string = "local"
	OpenAIAPIKey     string
	OpenAIBaseURL    string = "https://api.openai.com/v1"
	OpenAIModel      string = "gpt-4o-mini"
	GeminiAPIKey     string
	GeminiBaseURL    string = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel      string = "gemini-2.0-flash"
	LLMTimeoutSecond int    = 60

	DBDriver string = "sqlite"
	DBDSN    string = "data.db"

	JWTSecret string = "dev-secret-change-me"
	Port      string = "3001"
	UploadDir string = "./uploads"

	// PromptsFile overrides the embedded prompt templates when set.
	PromptsFile string

	CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"}

	// runtime tunables
	RateLimitWindowSeconds int  = 10
	RateLimitCapacity      int  = 5
	UserConcurrencyLimit   int  = 2
	DuplicateWindowSeconds int  = 5
	ChainCacheTTLSeconds   int  = 3600
	ChainCacheMaxItems     int  = 500
	ChainRehydrate         bool = true
	MaxUploadBytes         int  = 10 << 20
)

var ErrInvalidEnv = errors.New("invalid configuration")

// loadDotEnv reads .env outside production. A missing file is not an error.
func loadDotEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env loaded: %v", err)
	}
}

// Load reads the environment into the package variables.
func Load() error {
	loadDotEnv()

	AppEnv = envOr("APP_ENV", "staging")
	if !slices.Contains([]string{"staging", "production"}, AppEnv) {
		return fmt.Errorf("%w: APP_ENV must be 'staging' or 'production', got %q", ErrInvalidEnv, AppEnv)
	}
	IsStaging = AppEnv == "staging"
	IsProduction = AppEnv == "production"

	LLMProvider = strings.ToLower(envOr("LLM_PROVIDER", LLMProvider))
	if !slices.Contains([]string{"openai", "gemini", "local"}, LLMProvider) {
		return fmt.Errorf("%w: LLM_PROVIDER must be openai, gemini or local, got %q", ErrInvalidEnv, LLMProvider)
	}
	OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	OpenAIBaseURL = strings.TrimRight(envOr("OPENAI_BASE_URL", OpenAIBaseURL), "/")
	OpenAIModel = envOr("OPENAI_MODEL", OpenAIModel)
	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiBaseURL = strings.TrimRight(envOr("GEMINI_BASE_URL", GeminiBaseURL), "/")
	GeminiModel = envOr("GEMINI_MODEL", GeminiModel)
	LLMTimeoutSecond = atoiOr(os.Getenv("LLM_TIMEOUT_SECONDS"), LLMTimeoutSecond)

	DBDriver = strings.ToLower(envOr("DB_DRIVER", DBDriver))
	DBDSN = envOr("DB_DSN", DBDSN)

	JWTSecret = envOr("JWT_SECRET_KEY", "")
	Port = envOr("PORT", Port)
	UploadDir = envOr("UPLOAD_DIR", UploadDir)
	PromptsFile = os.Getenv("PROMPTS_FILE")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		CORSOrigins = splitList(v)
	}

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), RateLimitWindowSeconds)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), RateLimitCapacity)
	UserConcurrencyLimit = atoiOr(os.Getenv("USER_CONCURRENCY_LIMIT"), UserConcurrencyLimit)
	DuplicateWindowSeconds = atoiOr(os.Getenv("DUPLICATE_WINDOW_SECONDS"), DuplicateWindowSeconds)
	ChainCacheTTLSeconds = atoiOr(os.Getenv("CHAIN_CACHE_TTL_SECONDS"), ChainCacheTTLSeconds)
	ChainCacheMaxItems = atoiOr(os.Getenv("CHAIN_CACHE_MAX_ITEMS"), ChainCacheMaxItems)
	ChainRehydrate = boolOr(os.Getenv("CHAIN_REHYDRATE"), ChainRehydrate)
	MaxUploadBytes = atoiOr(os.Getenv("MAX_UPLOAD_BYTES"), MaxUploadBytes)

	if JWTSecret == "" {
		if IsProduction {
			return fmt.Errorf("%w: JWT_SECRET_KEY must be set in production", ErrInvalidEnv)
		}
		JWTSecret = "dev-secret-change-me"
	}
	if LLMProvider == "openai" && OpenAIAPIKey == "" {
		log.Printf("[config] LLM_PROVIDER=openai but OPENAI_API_KEY is empty")
	}
	if LLMProvider == "gemini" && GeminiAPIKey == "" {
		log.Printf("[config] LLM_PROVIDER=gemini but GEMINI_API_KEY is empty")
	}

	log.Printf("[config] AppEnv=%s IsStaging=%v IsProduction=%v", AppEnv, IsStaging, IsProduction)
	log.Printf("[config] LLMProvider=%s OpenAIModel=%s GeminiModel=%s timeout=%ds", LLMProvider, OpenAIModel, GeminiModel, LLMTimeoutSecond)
	log.Printf("[config] DBDriver=%s UploadDir=%s PromptsFile=%q", DBDriver, UploadDir, PromptsFile)
	log.Printf("[config] RateLimit window=%ds capacity=%d userConc=%d dupWindow=%ds chainTTL=%ds chainMax=%d rehydrate=%v",
		RateLimitWindowSeconds, RateLimitCapacity, UserConcurrencyLimit, DuplicateWindowSeconds, ChainCacheTTLSeconds, ChainCacheMaxItems, ChainRehydrate)
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func boolOr(s string, def bool) bool {
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
