package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
	"github.com/reimburseai/invoice-analyzer/internal/batch"
	"github.com/reimburseai/invoice-analyzer/internal/classify"
	"github.com/reimburseai/invoice-analyzer/internal/config"
	"github.com/reimburseai/invoice-analyzer/internal/extract"
	"github.com/reimburseai/invoice-analyzer/internal/query"
	"github.com/reimburseai/invoice-analyzer/internal/report"
	"github.com/reimburseai/invoice-analyzer/internal/server"
	"github.com/reimburseai/invoice-analyzer/internal/store"
	"github.com/reimburseai/invoice-analyzer/pkg/database"
	"github.com/reimburseai/invoice-analyzer/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice reimbursement analyzer",
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.OpenAI.Model))

	db, err := database.New(database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	openaiClient := ai.NewOpenAIClient(ai.ClientConfig{
		APIKey:         cfg.OpenAI.APIKey,
		ChatModel:      cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		EmbeddingDims:  cfg.OpenAI.EmbeddingDims,
		Temperature:    cfg.OpenAI.Temperature,
		MaxTokens:      cfg.OpenAI.MaxTokens,
	}, logger)

	vecStore, err := store.NewVecStore(db.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}

	recordStore := store.NewRecordStore(vecStore, openaiClient, cfg.Query.TopK, logger)
	extractor := extract.NewExtractor(openaiClient, logger)

	prompts, err := classify.LoadPrompts("configs/prompts.yaml")
	if err != nil {
		logger.Fatal("Failed to load prompts", zap.Error(err))
	}
	classifier, err := classify.NewClassifier(openaiClient, prompts, logger)
	if err != nil {
		logger.Fatal("Failed to initialize classifier", zap.Error(err))
	}

	orchestrator := batch.NewOrchestrator(extractor, classifier, recordStore, batch.Config{
		Workers: cfg.Batch.Workers,
		Timeout: cfg.Batch.Timeout,
	}, logger)

	queryEngine := query.NewEngine(recordStore, openaiClient, logger)
	exporter := report.NewExcelExporter(cfg.Report.OutputDir, logger)

	srv := server.New(orchestrator, queryEngine, recordStore, exporter, cfg.Server, logger).HTTPServer()

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
