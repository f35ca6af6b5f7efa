package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/avmoreno/corpus-qa/internal/config"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
	"github.com/avmoreno/corpus-qa/internal/core/usecase"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/cache"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/chunking"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/corpus"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/extractor"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/llm/ollama"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/queue/nats"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/repository/postgres"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/reranker/crossenc"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/resilience"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/storage/localfs"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/vector/qdrant"
)

// App wires every adapter behind the core ports. Both binaries share the
// same wiring; each uses the subset of fields it needs.
type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Documents   ports.DocumentRepository
	Feedback    ports.FeedbackStore
	CorpusStore *corpus.Store

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	SearchUC  ports.PassageSearcher
	AskUC     ports.QuestionAnswerer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docRepo := postgres.NewDocumentRepository(db)
	if err := docRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunkRepo := postgres.NewChunkRepository(db)
	feedbackRepo := postgres.NewFeedbackRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
	reranker := crossenc.New(cfg.RerankerURL, cfg.RerankerModel, executor)

	corpusStore := corpus.NewStore(chunkRepo, time.Duration(cfg.CorpusRefreshSeconds)*time.Second)

	searchUC := usecase.NewSearchUseCase(corpusStore, embedder, vectorDB, corpusStore, reranker, usecase.SearchConfig{
		TopK:             cfg.SearchTopK,
		VectorOverfetch:  cfg.SearchVectorOverfetch,
		LexicalOverfetch: cfg.SearchLexicalOverfetch,
		MaxPerSource:     cfg.SearchMaxPerSource,
		WidenFactor:      cfg.SearchWidenFactor,
		SentinelScore:    cfg.SearchSentinelScore,
		FusionStrategy:   cfg.SearchFusionStrategy,
		FusionRRFK:       cfg.SearchFusionRRFK,
	})

	budgeter := usecase.NewPromptBudgeter(ollama.TokenCounter{}, usecase.PromptConfig{
		ContextWindow:   cfg.ContextWindow,
		PromptFraction:  cfg.PromptFraction,
		MaxAnswerTokens: cfg.MaxAnswerTokens,
		MinAnswerTokens: cfg.MinAnswerTokens,
	})
	answerCache := cache.NewAnswerCache(cfg.CacheMaxEntries, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	askUC := usecase.NewAskUseCase(searchUC, budgeter, generator, answerCache)

	ingestUC := usecase.NewIngestDocumentUseCase(docRepo, storage, queue)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlapSentences)
	processUC := usecase.NewProcessDocumentUseCase(
		docRepo,
		chunkRepo,
		extractor.NewDispatcher(storage),
		chunker,
		embedder,
		vectorDB,
	)

	return &App{
		Config: cfg,

		Queue:       queue,
		Documents:   docRepo,
		Feedback:    feedbackRepo,
		CorpusStore: corpusStore,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,
		AskUC:     askUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
