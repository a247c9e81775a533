package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"unirag/internal/api"
	"unirag/internal/apperr"
	"unirag/internal/chat"
	"unirag/internal/chunker"
	"unirag/internal/config"
	"unirag/internal/embedding"
	"unirag/internal/ingest"
	"unirag/internal/models"
	"unirag/internal/rag"
	"unirag/internal/store"
	"unirag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// The store must be reachable before any request is accepted.
	db := store.Connect(&cfg.Database)
	defer db.Close()
	if err := store.Ping(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Database is not reachable")
	}
	registry := store.New(db)
	if err := registry.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize schema")
	}

	var vectors vectorstore.Store
	switch cfg.VectorStore.Backend {
	case config.BackendPostgres:
		pg := vectorstore.NewPostgresStore(db, cfg.RAG.EmbeddingDimensions)
		if err := pg.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize vector store")
		}
		vectors = pg
	case config.BackendLocal:
		local, err := vectorstore.NewLocalStore(cfg.VectorStore.Path, cfg.RAG.EmbeddingDimensions)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open local vector store")
		}
		vectors = local
	default:
		log.Fatal().Str("backend", cfg.VectorStore.Backend).Msg("Unknown vector store backend")
	}

	tok, err := chunker.NewTiktokenTokenizer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tokenizer")
	}
	ck, err := chunker.New(tok, chunker.Config{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid chunker configuration")
	}

	provider, err := embedding.NewOpenAIProvider(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedding provider")
	}
	embedder := embedding.NewClient(provider, cfg.RAG.EmbeddingBatchSize, cfg.RAG.EmbeddingDimensions, cfg.ProviderTimeout(), log.Logger)

	if embedder.Dimensions() != vectors.Dimensions() {
		log.Fatal().Err(apperr.Newf(apperr.InvalidConfig,
			"embedding dimensions %d do not match vector store dimensions %d",
			embedder.Dimensions(), vectors.Dimensions())).Msg("Dimension mismatch")
	}

	generator, err := rag.NewOpenAIGenerator(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create generator")
	}

	chain := rag.NewChain(embedder, vectors, generator, tok, rag.Options{
		TopK:          cfg.RAG.TopK,
		ContextBudget: cfg.RAG.ContextBudget,
	}, log.Logger)

	pipeline := ingest.NewPipeline(ck, embedder, vectors, registry, cfg.UploadDir, log.Logger)
	pipeline.OnStage(func(s models.Stage) {
		log.Debug().Str("stage", string(s)).Msg("Ingestion stage")
	})

	chatService := chat.NewService(chain, registry, log.Logger)

	apiHandler := api.NewAPIHandler(pipeline, chatService, registry, log.Logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // embedding and generation calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", serverAddr).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exiting gracefully")
}
