package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/models"
	"github.com/reimburseai/invoice-analyzer/pkg/utils"
)

// handleAnalyze accepts a policy PDF and a set of invoice PDFs as multipart
// form files, runs the batch pipeline and returns the per-employee summaries
// together with the failure list. A partially-successful batch is still a
// 200: the caller always gets the summaries that did complete.
func (s *Server) handleAnalyze(c *gin.Context) {
	policyHeader, err := c.FormFile("policy")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "policy PDF is required"})
		return
	}
	if err := utils.ValidatePDFFilename(policyHeader.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	invoiceHeaders := form.File["invoices"]
	if len(invoiceHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one invoice PDF is required"})
		return
	}

	policyBytes, err := readUpload(policyHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read policy upload: %v", err)})
		return
	}

	policyDoc := models.Document{
		ID:    policyHeader.Filename,
		Name:  policyHeader.Filename,
		Type:  models.DocumentTypePolicy,
		Bytes: policyBytes,
	}

	invoiceDocs := make([]models.Document, 0, len(invoiceHeaders))
	for _, header := range invoiceHeaders {
		data, err := readUpload(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read invoice %s: %v", header.Filename, err)})
			return
		}
		invoiceDocs = append(invoiceDocs, models.Document{
			ID:    header.Filename,
			Name:  header.Filename,
			Type:  models.DocumentTypeInvoice,
			Bytes: data,
		})
	}

	result, err := s.processor.ProcessBatch(c.Request.Context(), policyDoc, invoiceDocs)
	if err != nil {
		s.logger.Error("Batch processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("batch processing failed: %v", err)})
		return
	}

	response := gin.H{
		"message":         "invoice analysis completed",
		"total_employees": len(result.Summaries),
		"summaries":       result.Summaries,
		"failures":        result.Failures,
		"warnings":        result.Warnings,
	}

	if s.exporter != nil {
		reportPath, err := s.exporter.Export(result)
		if err != nil {
			s.logger.Warn("Report export failed", zap.Error(err))
			response["warnings"] = append(result.Warnings, fmt.Sprintf("report export failed: %v", err))
		} else {
			response["report_path"] = reportPath
		}
	}

	c.JSON(http.StatusOK, response)
}

// queryRequest is the body of POST /api/v1/query
type queryRequest struct {
	EmployeeName string `json:"employee_name" binding:"required"`
	Query        string `json:"query" binding:"required"`
}

// handleQuery answers a natural-language question about one employee
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_name and query are required"})
		return
	}
	if err := utils.ValidateEmployeeName(req.EmployeeName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := s.answerer.Answer(c.Request.Context(), req.EmployeeName, utils.SanitizeString(req.Query))
	if err != nil {
		s.logger.Error("Query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("query failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"employee_name": req.EmployeeName,
		"query":         req.Query,
		"answer":        answer,
	})
}

// handleListEmployees lists all employees with persisted records
func (s *Server) handleListEmployees(c *gin.Context) {
	names, err := s.directory.ListEmployees(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list employees", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list employees"})
		return
	}

	if names == nil {
		names = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_employees": len(names),
		"employees":       names,
	})
}

// handleGetEmployee returns all persisted records for one employee
func (s *Server) handleGetEmployee(c *gin.Context) {
	name := c.Param("name")

	records, err := s.directory.GetEmployee(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("employee %q not found", name)})
			return
		}
		s.logger.Error("Failed to get employee", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get employee"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"employee_name": records[0].Metadata.EmployeeName,
		"record_count":  len(records),
		"records":       records,
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
