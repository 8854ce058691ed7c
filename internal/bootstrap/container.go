package bootstrap

import (
	"context"
	"log"

	"ai-trivia-bot/internal/config"
	"ai-trivia-bot/internal/controller"
	"ai-trivia-bot/internal/dispatcher"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/pkg/mailer"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/internal/repository/memory"
	"ai-trivia-bot/internal/service"
	"ai-trivia-bot/internal/websocket"
	"ai-trivia-bot/pkg/embedding"
	"ai-trivia-bot/pkg/embedding/jina"
	"ai-trivia-bot/pkg/ocr"
	"ai-trivia-bot/pkg/resolver"
	"ai-trivia-bot/pkg/telegram"
	"ai-trivia-bot/pkg/vectorindex"

	pktNats "ai-trivia-bot/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	QueryController   controller.IQueryController
	ArchiveController controller.IArchiveController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	Dispatcher      *dispatcher.Dispatcher

	// WebSockets
	WebSocketHub *websocket.Hub

	// SemanticEnabled reports whether an embedding provider is configured;
	// main.go skips the startup index rebuild when it is not.
	SemanticEnabled bool
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	archiveStore := archive.NewStore(cfg.Archive.QuestionsFile, sysLogger)
	statsStore := archive.NewStatsStore(cfg.Archive.StatsFile, sysLogger)
	sessionRepo := memory.NewSessionRepository()

	alertMailer := mailer.NewAlertMailer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.SMTP.CuratorEmail,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	// Initialize Embedding Provider based on Config; none configured means
	// the resolver stops after the fuzzy stage.
	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	case "gemini":
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	default:
		log.Printf("[INFO] No embedding provider configured, semantic fallback disabled")
	}

	ocrProvider := ocr.NewGeminiProvider(cfg.Ai.GoogleGemini)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/activity.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	index := vectorindex.New()

	publisherService := service.NewPublisherService(cfg.App.MutationTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.MutationTopic,
		archiveStore,
		embeddingProvider,
		index,
		sysLogger,
	)

	queryService := service.NewQueryService(
		archiveStore,
		resolver.New(cfg.Resolver.Threshold),
		embeddingProvider,
		index,
		cfg.Resolver.SemanticMaxDistance,
		natsPub,
		wsHub,
		sysLogger,
	)

	botClient := telegram.NewClient(cfg.Telegram.BotToken)

	curationService := service.NewCurationService(
		cfg.Telegram.AdminChatID,
		cfg.Archive.QuestionsPerPage,
		cfg.Telegram.TempDir,
		archiveStore,
		statsStore,
		sessionRepo,
		ocrProvider,
		botClient,
		publisherService,
		natsPub,
		wsHub,
		alertMailer,
		sysLogger,
	)

	botDispatcher := dispatcher.New(
		botClient,
		curationService,
		queryService,
		cfg.Telegram.AdminChatID,
		cfg.Telegram.PollTimeout,
		sysLogger,
	)

	return &Container{
		QueryController:   controller.NewQueryController(queryService),
		ArchiveController: controller.NewArchiveController(archiveStore, statsStore, cfg.Archive.QuestionsPerPage),

		ConsumerService: consumerService,
		Dispatcher:      botDispatcher,
		WebSocketHub:    wsHub,
		SemanticEnabled: embeddingProvider != nil,
	}
}
