package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/config"
	"github.com/reimburseai/invoice-analyzer/internal/models"
)

// BatchProcessor runs one batch of invoices against a policy document
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, policyDoc models.Document, invoiceDocs []models.Document) (*models.BatchResult, error)
}

// Answerer answers a natural-language question scoped to one employee
type Answerer interface {
	Answer(ctx context.Context, employeeName, question string) (string, error)
}

// EmployeeDirectory exposes read access over persisted records
type EmployeeDirectory interface {
	ListEmployees(ctx context.Context) ([]string, error)
	GetEmployee(ctx context.Context, employeeName string) ([]models.StoredRecord, error)
}

// ReportExporter writes a batch result to a reviewable file
type ReportExporter interface {
	Export(result *models.BatchResult) (string, error)
}

// Server is the HTTP boundary over the analysis pipeline
type Server struct {
	processor BatchProcessor
	answerer  Answerer
	directory EmployeeDirectory
	exporter  ReportExporter
	cfg       config.ServerConfig
	logger    *zap.Logger
}

// New creates the HTTP server
func New(processor BatchProcessor, answerer Answerer, directory EmployeeDirectory, exporter ReportExporter, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		processor: processor,
		answerer:  answerer,
		directory: directory,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Router builds the gin router with all routes and middleware
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(s.logger))
	router.Use(corsMiddleware())
	router.MaxMultipartMemory = s.cfg.MaxUploadMB << 20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "invoice-analyzer",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/query", s.handleQuery)
		api.GET("/employees", s.handleListEmployees)
		api.GET("/employees/:name", s.handleGetEmployee)
	}

	return router
}

// HTTPServer wraps the router in an http.Server with configured timeouts
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
