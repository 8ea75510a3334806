package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"tradedesk/internal/auth"
	"tradedesk/internal/broker"
	"tradedesk/internal/config"
	"tradedesk/internal/delivery"
	"tradedesk/internal/handler"
	"tradedesk/internal/handler/sse"
	"tradedesk/internal/httputil"
	"tradedesk/internal/ledger"
	"tradedesk/internal/llm"
	"tradedesk/internal/market"
	"tradedesk/internal/middleware"
	"tradedesk/internal/orchestrator"
	"tradedesk/internal/repository/postgres"
	"tradedesk/internal/safety"
	"tradedesk/internal/tools"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier for bearer-token authentication
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	conversationRepo := postgres.NewConversationRepository(repoConfig)
	profileRepo := postgres.NewProfileRepository(repoConfig)
	stockRepo := postgres.NewStockDataRepository(repoConfig)
	portfolioRepo := postgres.NewPortfolioRepository(repoConfig)
	leaderboardRepo := postgres.NewLeaderboardRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Market data and trading collaborators
	marketClient, err := market.NewClient(
		cfg.MarketDataBaseURL,
		time.Duration(cfg.QuoteCacheTTLSecs)*time.Second,
		stockRepo,
		logger,
	)
	if err != nil {
		log.Fatalf("Failed to create market data client: %v", err)
	}
	brokerClient := broker.NewClient(cfg.BrokerBaseURL, logger)
	virtualLedger := ledger.New(portfolioRepo, leaderboardRepo, stockRepo, marketClient, txManager, logger)

	// Model collaborators
	modelClient := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger)

	// Safety gate. The embedding backend is optional: if it cannot be
	// built the classifier runs rules-only.
	rules, err := safety.LoadRules(cfg.SafetyRulesPath)
	if err != nil {
		log.Fatalf("Failed to load safety rules: %v", err)
	}
	var embedder safety.Embedder
	if cfg.GeminiAPIKey != "" {
		embeddingClient, err := llm.NewEmbeddingClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Warn("embedding client unavailable, classifier runs rules-only", "error", err)
		} else {
			embedder = embeddingClient
		}
	}
	classifier := safety.NewClassifier(rules, embedder, logger)
	gate := safety.NewGate(rules, classifier, logger)
	logger.Info("safety gate initialized", "semantic", classifier.SemanticEnabled())

	// Tool pipeline and turn orchestrator
	threshold := tools.NewThresholdEnforcer(marketClient, cfg.TradeGuardFailClosed, logger)
	executor := tools.NewExecutor(brokerClient, marketClient, virtualLedger, threshold, logger)
	turns := orchestrator.New(gate, modelClient, executor, conversationRepo, profileRepo, logger)

	// Background webhook delivery
	messenger := delivery.NewTwilioMessenger(delivery.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
	}, logger)
	webhookQueue := delivery.NewQueue(cfg.WebhookQueueSize, turns, conversationRepo, messenger, logger)
	queueCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()
	go webhookQueue.Run(queueCtx)

	// Handlers
	conversationHandler := handler.NewConversationHandler(conversationRepo, logger)
	chatHandler := handler.NewChatHandler(turns, conversationRepo, sse.DefaultConfig(), logger)
	profileHandler := handler.NewProfileHandler(profileRepo, logger)
	marketHandler := handler.NewMarketHandler(marketClient, leaderboardRepo, logger)
	webhookHandler := handler.NewWebhookHandler(webhookQueue, profileRepo, conversationRepo, logger)

	logger.Info("services initialized")

	// Authenticated routes (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", conversationHandler.RenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)

	// Turn routes
	mux.HandleFunc("POST /api/conversations/{id}/messages/stream", chatHandler.StreamMessage) // SSE streaming endpoint
	mux.HandleFunc("POST /api/conversations/{id}/messages", chatHandler.SendMessage)

	// Profile routes
	mux.HandleFunc("GET /api/profile", profileHandler.GetProfile)
	mux.HandleFunc("PUT /api/profile", profileHandler.UpdateProfile)

	// Market routes
	mux.HandleFunc("GET /api/stocks/{symbol}/history", marketHandler.GetHistory)
	mux.HandleFunc("GET /api/leaderboard", marketHandler.GetLeaderboard)

	// Unauthenticated surface: health probe and the provider webhook
	// (the provider does not carry user tokens; users are resolved by
	// their linked phone number).
	root := http.NewServeMux()
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.HandleFunc("POST /api/webhook/whatsapp", webhookHandler.ReceiveMessage)
	root.Handle("/", middleware.Auth(jwtVerifier, logger)(mux))

	// Build middleware chain: CORS → Recovery → Routes
	var h http.Handler = root
	h = middleware.Recovery(logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
