package main

import (
	"fmt"
	"log"
	"net/http"

	"clinicchat/config"
	"clinicchat/db"
	"clinicchat/handlers"
	"clinicchat/services"
	"clinicchat/services/chat"
	"clinicchat/services/knowledgebase"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	if cfg.AnthropicAPIKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	if cfg.PineconeAPIKey == "" {
		log.Fatal("PINECONE_API_KEY environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	messageRepo, err := db.NewPostgresMessageRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize message database: %v", err)
	}
	defer messageRepo.Close()

	usageRepo, err := db.NewPostgresUsageRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize usage database: %v", err)
	}
	defer usageRepo.Close()

	kbService, err := knowledgebase.NewService(cfg.PineconeAPIKey, cfg.OpenAIAPIKey, cfg.PineconeIndexName)
	if err != nil {
		log.Fatalf("Failed to initialize knowledge base service: %v", err)
	}

	historyService := services.NewHistoryService(messageRepo)
	usageService := services.NewUsageService(usageRepo)

	gateway := chat.NewAnthropicGateway(cfg.AnthropicAPIKey, cfg.AnthropicTimeout)
	chatService := chat.NewService(gateway, kbService, usageService)

	chatHandler := handlers.NewChatHandler(chatService, historyService, cfg.CalendlyURL)
	historyHandler := handlers.NewHistoryHandler(historyService)
	usageHandler := handlers.NewUsageHandler(usageService)
	kbHandler := handlers.NewKnowledgeBaseHandler(kbService)

	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	chatHandler.RegisterRoutes(router)
	historyHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router)
	kbHandler.RegisterRoutes(router)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	fmt.Printf("Server starting on port %s\n", cfg.Port)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
