package bootstrap

import (
	"context"
	"fmt"

	"finverse-chatbot/internal/config"
	"finverse-chatbot/internal/controller"
	"finverse-chatbot/internal/model"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/implementation"
	"finverse-chatbot/internal/repository/memory"
	"finverse-chatbot/internal/repository/unitofwork"
	"finverse-chatbot/internal/service"
	"finverse-chatbot/pkg/cache"
	"finverse-chatbot/pkg/catalog"
	"finverse-chatbot/pkg/database"
	"finverse-chatbot/pkg/embedding"
	"finverse-chatbot/pkg/events"
	"finverse-chatbot/pkg/llm/factory"
	"finverse-chatbot/pkg/rag/executor"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/response"
	"finverse-chatbot/pkg/rag/search"
	"finverse-chatbot/pkg/rag/stats"
	"finverse-chatbot/pkg/rag/structured"

	pktNats "finverse-chatbot/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

// catalogConsumerName is the durable JetStream consumer for catalog change events
const catalogConsumerName = "finverse-chatbot-indexer"

// Engine is the query pipeline without any transport around it
type Engine struct {
	Schema     *catalog.SchemaDescriptor
	Classifier *intent.Classifier
	Retriever  *structured.Retriever
	Executor   *executor.HybridExecutor
	Generator  *response.Generator
	Embeddings embedding.EmbeddingProvider
}

type Container struct {
	Logger logger.ILogger
	Engine *Engine

	// Controllers
	ChatbotController    controller.IChatbotController
	ComparisonController controller.IComparisonController

	// Services
	ChatbotService    service.IChatbotService
	ComparisonService service.IComparisonService
	IndexerService    service.IIndexerService
	IngestService     service.IIngestService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	closers []func()
}

// NewEngine builds the classifier, retrievers and generator over db
func NewEngine(ctx context.Context, db *gorm.DB, cfg *config.Config, log logger.ILogger) (*Engine, error) {
	catalogRepo := implementation.NewCatalogRepository(db, log)
	schema, err := catalog.Load(ctx, catalogRepo)
	if err != nil {
		return nil, fmt.Errorf("load catalog schema: %w", err)
	}
	log.Info("BOOTSTRAP", "Catalog schema loaded", map[string]interface{}{"institutions": len(schema.Institutions())})

	embeddingProvider, err := NewEmbeddingProvider(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	llmProvider, err := factory.NewLLMProvider(ctx, cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.OllamaBaseURL, cfg.Keys.GoogleGemini)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	log.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	planner := structured.NewPlanner(schema, cfg.Engine.ResultCap)

	classifierCfg := intent.DefaultConfig()
	classifierCfg.UseLLM = cfg.Ai.UseLLMClassifier
	classifierCfg.VagueThreshold = cfg.Engine.VagueThreshold

	searchCfg := search.DefaultConfig()
	searchCfg.TopK = cfg.Engine.TopK
	searchCfg.MinSimilarity = cfg.Engine.MinSimilarity

	generatorCfg := response.DefaultConfig()
	generatorCfg.Timeout = cfg.Ai.LLMTimeout
	generatorCfg.RetryBackoff = cfg.Ai.LLMRetryBackoff
	generatorCfg.HistoryCharBudget = cfg.Engine.HistoryCharBudget
	generatorCfg.Temperature = cfg.Ai.GenerationTemperature

	retriever := structured.NewRetriever(schema, catalogRepo, cfg.Engine.ResultCap, log)

	return &Engine{
		Schema:     schema,
		Classifier: intent.NewClassifier(schema, planner, llmProvider, classifierCfg, log),
		Retriever:  retriever,
		Executor: executor.NewHybridExecutor(
			retriever,
			search.NewOrchestrator(embeddingProvider, implementation.NewDocumentEmbeddingRepository(db), searchCfg, log),
			executor.Config{
				SQLTimeout:       cfg.Engine.SQLTimeout,
				SemanticTimeout:  cfg.Engine.SemanticTimeout,
				TopK:             cfg.Engine.TopK,
				SemanticFallback: cfg.Engine.SemanticFallback,
			},
			log,
		),
		Generator:  response.NewGenerator(llmProvider, generatorCfg, log),
		Embeddings: embeddingProvider,
	}, nil
}

// NewEmbeddingProvider returns the configured provider behind the query embedding cache
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log logger.ILogger) (embedding.EmbeddingProvider, error) {
	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		gemini, err := embedding.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Ai.GeminiEmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider: %w", err)
		}
		provider = gemini
	}

	embeddingCache, err := cache.New(ctx, cfg.App.RedisURL, "finverse:", cfg.Ai.EmbeddingCacheTTL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, caching query embeddings in memory", map[string]interface{}{"error": err.Error()})
	}

	log.Info("BOOTSTRAP", "Using embedding provider", map[string]interface{}{"model": provider.ModelVersion()})
	return embedding.NewCachedProvider(provider, embeddingCache, cfg.Ai.EmbeddingCacheTTL), nil
}

// PrepareDatabase makes sure pgvector and the embeddings table exist.
// The catalog tables belong to the catalog API and are never migrated here.
func PrepareDatabase(db *gorm.DB, log logger.ILogger) error {
	if err := database.EnableVectorExtension(db); err != nil {
		log.Warn("BOOTSTRAP", "Could not create vector extension", map[string]interface{}{"error": err.Error()})
	}
	if err := db.AutoMigrate(&model.DocumentEmbedding{}); err != nil {
		return fmt.Errorf("migrate document embeddings: %w", err)
	}
	return nil
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, log logger.ILogger) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db, log)

	engine, err := NewEngine(ctx, db, cfg, log)
	if err != nil {
		return nil, err
	}

	c := &Container{Logger: log, Engine: engine}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var eventPublisher events.Publisher = events.NopPublisher{}
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL, log)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to connect NATS publisher, chat events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}

		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, log)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to connect NATS subscriber, catalog events ignored", map[string]interface{}{"error": err.Error()})
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 3. Services
	sessionRepo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.MaxTurns)
	catalogRepo := implementation.NewCatalogRepository(db, log)

	c.IndexerService = service.NewIndexerService(uowFactory, engine.Embeddings, service.ChunkConfig{
		Size:    cfg.Engine.ChunkSize,
		Overlap: cfg.Engine.ChunkOverlap,
	}, log)

	publisherService := service.NewPublisherService(cfg.Keys.IndexTopic, pubSub)
	c.IngestService = service.NewIngestService(uowFactory, publisherService, log)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Keys.IndexTopic, c.IndexerService, log)

	c.ChatbotService = service.NewChatbotService(
		engine.Classifier,
		engine.Executor,
		engine.Generator,
		sessionRepo,
		stats.NewAggregator(),
		catalogRepo,
		eventPublisher,
		log,
	)

	comparisonCache, err := cache.New(ctx, cfg.App.RedisURL, "finverse:", cfg.Engine.ComparisonTTL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, caching comparisons in memory", map[string]interface{}{"error": err.Error()})
	}
	c.closers = append(c.closers, func() { _ = comparisonCache.Close() })
	c.ComparisonService = service.NewComparisonService(
		engine.Schema,
		engine.Retriever,
		engine.Generator,
		sessionRepo,
		comparisonCache,
		cfg.Engine.ComparisonTTL,
		log,
	)

	if natsSub != nil {
		if err := natsSub.Subscribe(ctx, events.EventCatalogProductChanged, catalogConsumerName, c.IngestService.HandleCatalogEvent); err != nil {
			log.Warn("BOOTSTRAP", "Failed to subscribe to catalog events", map[string]interface{}{"error": err.Error()})
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	healthService := service.NewHealthService(sqlDB, uowFactory, sessionRepo, engine.Embeddings.ModelVersion(), log)

	// 4. Controllers
	c.ChatbotController = controller.NewChatbotController(c.ChatbotService, c.IngestService, healthService, log)
	c.ComparisonController = controller.NewComparisonController(c.ComparisonService, log)

	return c, nil
}

// Close releases bus connections in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
