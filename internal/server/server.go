package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"doc-chat/internal/db"
	"doc-chat/internal/handlers"
	"doc-chat/internal/repositories"
	"doc-chat/internal/routes"
	"doc-chat/internal/services"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewServer wires the full application and returns a ready-to-run HTTP
// server. Missing API keys are a startup error; a missing Redis falls back
// to in-memory sessions.
func NewServer() (*http.Server, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	mistralKey := os.Getenv("MISTRAL_API_KEY")
	if mistralKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is required")
	}
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required")
	}

	ocrURL := envOrDefault("OCR_BASE_URL", "https://api.mistral.ai")
	geminiURL := envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")

	// External clients
	ocrClient := services.NewMistralOCRClient(ocrURL, mistralKey, logger)
	embeddingClient := services.NewGeminiEmbeddingClient(geminiURL, googleKey, logger)
	llmClient := services.NewGeminiLLMClient(geminiURL, googleKey, logger)

	// Session storage: Redis when available, in-memory otherwise
	sessionRepo := initializeSessionRepository(logger)
	indexStore := repositories.NewIndexStore()

	// Service layer
	extractionService := services.NewDocumentExtractionService(ocrClient, logger)
	indexingService := services.NewChunkIndexingService(embeddingClient, logger)
	queryService := services.NewRAGQueryService(embeddingClient, llmClient, logger)
	keywordExtractor := services.NewKeywordExtractor()

	pipeline := services.NewPipelineService(
		extractionService,
		indexingService,
		queryService,
		keywordExtractor,
		sessionRepo,
		indexStore,
		logger,
	)

	h := &routes.Handlers{
		Health:          handlers.HealthCheckHandler,
		SessionHandler:  handlers.NewSessionHandler(pipeline, logger),
		DocumentHandler: handlers.NewDocumentHandler(pipeline, ocrClient, logger),
		ChatHandler:     handlers.NewChatHandler(pipeline, llmClient, logger),
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	port := envOrDefault("PORT", "8080")

	// Add Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:"+port+"/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	logger.Printf("Server configured on port %s (OCR: %s, LLM: %s)", port, ocrURL, geminiURL)

	return &http.Server{
		Addr:    ":" + port,
		Handler: corsMiddleware(router),
	}, nil
}

// initializeSessionRepository connects to Redis when configured, falling
// back to the in-memory store when it is unreachable
func initializeSessionRepository(logger *log.Logger) repositories.SessionRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisConfig := getRedisConfig()
	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", redisConfig.Host, redisConfig.Port, redisConfig.DB)

	redisClient, err := db.NewRedisClient(redisConfig)
	if err != nil {
		logger.Printf("❌ Failed to create Redis client: %v", err)
		logger.Println("   Falling back to in-memory sessions")
		return repositories.NewMemorySessionRepository()
	}

	if err := redisClient.Ping(ctx); err != nil {
		logger.Printf("❌ Redis connection failed: %v", err)
		logger.Println("   Falling back to in-memory sessions")
		logger.Println("   Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
		return repositories.NewMemorySessionRepository()
	}

	logger.Println("✅ Redis connected successfully - sessions will survive restarts")
	return repositories.NewRedisSessionRepository(redisClient)
}

// getRedisConfig reads Redis configuration from environment variables
func getRedisConfig() db.RedisConfig {
	config := db.DefaultRedisConfig()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Host = host
	}

	if portStr := os.Getenv("REDIS_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Password = password
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if dbNum, err := strconv.Atoi(dbStr); err == nil {
			config.DB = dbNum
		}
	}

	if poolSizeStr := os.Getenv("REDIS_POOL_SIZE"); poolSizeStr != "" {
		if poolSize, err := strconv.Atoi(poolSizeStr); err == nil {
			config.PoolSize = poolSize
		}
	}

	return config
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
