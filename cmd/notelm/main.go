// Command notelm serves the research notebook backend: ingestion,
// crawling, retrieval-augmented answering and evaluation over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/notelm/answer"
	"github.com/sweetpotato0/notelm/background"
	"github.com/sweetpotato0/notelm/chunking"
	"github.com/sweetpotato0/notelm/config"
	"github.com/sweetpotato0/notelm/crawl"
	"github.com/sweetpotato0/notelm/embed"
	"github.com/sweetpotato0/notelm/evaluation"
	"github.com/sweetpotato0/notelm/extract"
	"github.com/sweetpotato0/notelm/httpapi"
	"github.com/sweetpotato0/notelm/ingest"
	"github.com/sweetpotato0/notelm/llm"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
	"github.com/sweetpotato0/notelm/retrieval"
	"github.com/sweetpotato0/notelm/store"
)

const (
	maxBackgroundTasks = 8
	datasetSeed        = 1337
	shutdownGrace      = 15 * time.Second
)

func main() {
	logger := logging.Logger()
	if err := run(); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.WithComponent("main")

	settings, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "notelm",
		Disable:     !settings.Debug && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "",
	})
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	db, err := store.Open(settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Setup(ctx, db, settings.EmbeddingDimensions); err != nil {
		return err
	}

	notebooks := store.NewNotebookStore(db)
	documents := store.NewDocumentStore(db)
	chunks := store.NewChunkStore(db)
	crawls := store.NewCrawlStore(db)
	conversations := store.NewConversationStore(db)
	evaluations := store.NewEvaluationStore(db)

	provider, err := llm.New(settings.LLMProvider, llm.DefaultConfig(providerKey(settings)))
	if err != nil {
		return err
	}
	embedder := embed.NewOpenAIEmbedder(settings.OpenAIAPIKey, "", settings.EmbeddingModel, settings.EmbeddingDimensions)

	tokenizer, err := chunking.NewTiktokenTokenizer(settings.EmbeddingModel)
	if err != nil {
		return err
	}
	chunker := chunking.New(tokenizer,
		chunking.WithChunkSize(settings.ChunkSize),
		chunking.WithChunkOverlap(settings.ChunkOverlap))

	extractor := extract.NewComposite(
		extract.NewJinaExtractor(settings.JinaAPIKey),
		extract.NewLocalExtractor(),
	)

	registry := background.NewRegistry(maxBackgroundTasks)
	pipeline := ingest.NewPipeline(documents, extractor, chunker, embedder)
	ingestor := ingest.NewService(pipeline, registry)
	crawler := crawl.NewService(crawls, documents, crawl.NewHTTPLinkDiscoverer(), ingestor, registry)

	var retrieverOpts []retrieval.Option
	if settings.RedisAddr != "" {
		cache := retrieval.NewRedisQueryCache(
			redis.NewClient(&redis.Options{Addr: settings.RedisAddr}),
			settings.EmbeddingModel, time.Hour)
		retrieverOpts = append(retrieverOpts, retrieval.WithQueryCache(cache))
		logger.Info("query embedding cache enabled", "addr", settings.RedisAddr)
	}
	retriever := retrieval.New(embedder, chunks, retrieverOpts...)
	answerer := answer.New(provider, settings.ChatModel)

	generator := evaluation.NewGenerator(evaluations, chunks, provider, settings.EvalModel, datasetSeed)
	judge := evaluation.NewJudge(provider, settings.EvalModel)
	runner := evaluation.NewRunner(evaluations, retriever, answerer, judge)

	server := httpapi.New(httpapi.Deps{
		Notebooks:     notebooks,
		Documents:     documents,
		Chunks:        chunks,
		Crawls:        crawls,
		Conversations: conversations,
		Evaluations:   evaluations,
		Ingestor:      ingestor,
		Crawler:       crawler,
		Retriever:     retriever,
		Answerer:      answerer,
		Generator:     generator,
		Runner:        runner,
		Registry:      registry,
	})

	httpServer := &http.Server{
		Addr:    settings.HTTPAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", settings.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Let in-flight ingestions and crawls settle their terminal states.
	registry.Wait()
	return nil
}

func providerKey(s *config.Settings) string {
	switch s.LLMProvider {
	case "anthropic":
		return s.AnthropicAPIKey
	case "gemini":
		return s.GeminiAPIKey
	default:
		return s.OpenAIAPIKey
	}
}
