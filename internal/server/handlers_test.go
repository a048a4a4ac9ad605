package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/config"
	"github.com/reimburseai/invoice-analyzer/internal/models"
)

type fakeProcessor struct {
	result     *models.BatchResult
	err        error
	gotPolicy  models.Document
	gotInvoice []models.Document
}

func (f *fakeProcessor) ProcessBatch(ctx context.Context, policyDoc models.Document, invoiceDocs []models.Document) (*models.BatchResult, error) {
	f.gotPolicy = policyDoc
	f.gotInvoice = invoiceDocs
	return f.result, f.err
}

type fakeAnswerer struct {
	answer string
	err    error
}

func (f *fakeAnswerer) Answer(ctx context.Context, employeeName, question string) (string, error) {
	return f.answer, f.err
}

type fakeDirectory struct {
	names   []string
	records []models.StoredRecord
	err     error
}

func (f *fakeDirectory) ListEmployees(ctx context.Context) ([]string, error) {
	return f.names, f.err
}

func (f *fakeDirectory) GetEmployee(ctx context.Context, employeeName string) ([]models.StoredRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeExporter struct {
	path string
	err  error
}

func (f *fakeExporter) Export(result *models.BatchResult) (string, error) {
	return f.path, f.err
}

func newTestRouter(processor BatchProcessor, answerer Answerer, directory EmployeeDirectory, exporter ReportExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8080, MaxUploadMB: 8}
	return New(processor, answerer, directory, exporter, cfg, zap.NewNop()).Router()
}

func analyzeForm(t *testing.T, policyName string, invoiceNames ...string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if policyName != "" {
		part, err := writer.CreateFormFile("policy", policyName)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 policy"))
		require.NoError(t, err)
	}

	for _, name := range invoiceNames {
		part, err := writer.CreateFormFile("invoices", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 invoice"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleAnalyze_PartialFailureIsStill200(t *testing.T) {
	processor := &fakeProcessor{result: &models.BatchResult{
		Summaries: map[string]*models.EmployeeBatchSummary{
			"John Doe": {EmployeeName: "John Doe", InvoiceCount: 1},
		},
		Failures: []models.InvoiceFailure{{InvoiceID: "bad.pdf", Reason: "extraction failed"}},
	}}
	router := newTestRouter(processor, &fakeAnswerer{}, &fakeDirectory{}, &fakeExporter{path: "reports/out.xlsx"})

	body, contentType := analyzeForm(t, "policy.pdf", "good.pdf", "bad.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalEmployees int                     `json:"total_employees"`
		Failures       []models.InvoiceFailure `json:"failures"`
		ReportPath     string                  `json:"report_path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalEmployees)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "bad.pdf", resp.Failures[0].InvoiceID)
	assert.Equal(t, "reports/out.xlsx", resp.ReportPath)

	assert.Equal(t, models.DocumentTypePolicy, processor.gotPolicy.Type)
	require.Len(t, processor.gotInvoice, 2)
	assert.Equal(t, "good.pdf", processor.gotInvoice[0].ID)
}

func TestHandleAnalyze_MissingPolicyIs400(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	body, contentType := analyzeForm(t, "", "invoice.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "policy PDF is required")
}

func TestHandleAnalyze_NonPDFPolicyIs400(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	body, contentType := analyzeForm(t, "policy.docx", "invoice.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyze_NoInvoicesIs400(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	body, contentType := analyzeForm(t, "policy.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one invoice")
}

func TestHandleQuery_ReturnsAnswer(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{answer: "Both invoices were declined."}, &fakeDirectory{}, nil)

	payload := `{"employee_name": "John Doe", "query": "why were my invoices declined?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Both invoices were declined.", resp["answer"])
	assert.Equal(t, "John Doe", resp["employee_name"])
}

func TestHandleQuery_MissingFieldsIs400(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"employee_name": "John Doe"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListEmployees_EmptyIsEmptyArrayNotNull(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"employees":[]`)
}

func TestHandleGetEmployee_NotFoundIs404(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{err: models.ErrNotFound}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/Nobody", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetEmployee_ReturnsRecords(t *testing.T) {
	directory := &fakeDirectory{records: []models.StoredRecord{
		{ID: "rec-1", Text: "record text", Metadata: models.RecordMetadata{EmployeeName: "John Doe"}},
	}}
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, directory, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/John%20Doe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		EmployeeName string `json:"employee_name"`
		RecordCount  int    `json:"record_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "John Doe", resp.EmployeeName)
	assert.Equal(t, 1, resp.RecordCount)
}

func TestHandleAnalyze_ExportFailureIsWarningNot500(t *testing.T) {
	processor := &fakeProcessor{result: &models.BatchResult{
		Summaries: map[string]*models.EmployeeBatchSummary{
			"John Doe": {EmployeeName: "John Doe", InvoiceCount: 1},
		},
	}}
	router := newTestRouter(processor, &fakeAnswerer{}, &fakeDirectory{}, &fakeExporter{err: errors.New("disk full")})

	body, contentType := analyzeForm(t, "policy.pdf", "invoice.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report export failed")
	assert.NotContains(t, rec.Body.String(), "report_path")
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeAnswerer{}, &fakeDirectory{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
