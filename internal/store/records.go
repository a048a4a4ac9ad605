package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
	"github.com/reimburseai/invoice-analyzer/internal/extract"
	"github.com/reimburseai/invoice-analyzer/internal/models"
)

const employeeRecordDocumentType = "employee_record"

// VectorIndex is the narrow contract the record store needs from its backing
// index. *VecStore is the production implementation; tests substitute an
// in-memory fake.
type VectorIndex interface {
	Upsert(ctx context.Context, rec models.StoredRecord, vector []float32) error
	Search(ctx context.Context, employeeName string, queryVec []float32, topK int) ([]ScoredRecord, error)
	ListEmployees(ctx context.Context) ([]string, error)
	GetByEmployee(ctx context.Context, employeeName string) ([]models.StoredRecord, error)
}

// RecordStore maps reimbursement verdicts into retrievable records and runs
// metadata-filtered semantic queries over them.
type RecordStore struct {
	index    VectorIndex
	embedder ai.Embedder
	topK     int
	logger   *zap.Logger
}

// NewRecordStore creates a record store over the given index and embedder
func NewRecordStore(index VectorIndex, embedder ai.Embedder, topK int, logger *zap.Logger) *RecordStore {
	if topK <= 0 {
		topK = 5
	}
	return &RecordStore{
		index:    index,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Upsert converts a verdict into a stored record and writes it to the index.
// The record ID is a hash of the employee and invoice fields, so re-running
// a batch over the same invoices replaces records instead of duplicating
// them.
func (s *RecordStore) Upsert(ctx context.Context, verdict models.ReimbursementVerdict) (*models.StoredRecord, error) {
	rec := RecordFromVerdict(verdict)

	vector, err := s.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return nil, &models.StoreError{RecordID: rec.ID, Err: fmt.Errorf("embedding failed: %w", err)}
	}
	if want := s.embedder.Dimensions(); want > 0 && len(vector) != want {
		return nil, &models.StoreError{RecordID: rec.ID, Err: fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), want)}
	}

	if err := s.index.Upsert(ctx, rec, vector); err != nil {
		return nil, &models.StoreError{RecordID: rec.ID, Err: err}
	}

	s.logger.Info("Record upserted",
		zap.String("record_id", rec.ID),
		zap.String("employee", rec.Metadata.EmployeeName))

	return &rec, nil
}

// Query retrieves the top-K records for one employee ranked by semantic
// similarity to the question. The employee filter scopes the search space
// before ranking. No records is an empty result, not an error.
func (s *RecordStore) Query(ctx context.Context, employeeName, question string) ([]models.StoredRecord, error) {
	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if want := s.embedder.Dimensions(); want > 0 && len(queryVec) != want {
		return nil, fmt.Errorf("question embedding has %d dimensions, expected %d", len(queryVec), want)
	}

	scored, err := s.index.Search(ctx, employeeName, queryVec, s.topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	records := make([]models.StoredRecord, 0, len(scored))
	for _, sr := range scored {
		records = append(records, sr.Record)
	}
	return records, nil
}

// ListEmployees returns all employee names with persisted records
func (s *RecordStore) ListEmployees(ctx context.Context) ([]string, error) {
	return s.index.ListEmployees(ctx)
}

// GetEmployee returns all persisted records for one employee.
// Returns models.ErrNotFound when the employee has none.
func (s *RecordStore) GetEmployee(ctx context.Context, employeeName string) ([]models.StoredRecord, error) {
	records, err := s.index.GetByEmployee(ctx, employeeName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, models.ErrNotFound
	}
	return records, nil
}

// RecordFromVerdict derives the stored record for a verdict: a
// human-readable text blob plus exact-match metadata, keyed by a stable
// content hash.
func RecordFromVerdict(verdict models.ReimbursementVerdict) models.StoredRecord {
	employee := verdict.EmployeeName
	if employee == "" {
		employee = models.UnattributedEmployee
	}

	date := verdict.Fields.Date
	if date == "" {
		date = extract.ParseDate(verdict.Explanation)
	}

	text := strings.TrimSpace(fmt.Sprintf(
		"Employee Name: %s\nInvoice: %s\nInvoice Type: %s\nDate: %s\nTotal Amount: %.2f\nReimbursement Status: %s\nDetails: %s",
		employee,
		verdict.InvoiceID,
		verdict.Fields.InvoiceType,
		date,
		verdict.Fields.TotalAmount,
		verdict.Status,
		verdict.Explanation,
	))

	return models.StoredRecord{
		ID:   recordKey(employee, verdict.Fields, verdict.InvoiceID),
		Text: text,
		Metadata: models.RecordMetadata{
			EmployeeName: employee,
			Date:         date,
			DocumentType: employeeRecordDocumentType,
		},
	}
}

// recordKey hashes the identifying invoice fields into a stable upsert key
func recordKey(employee string, fields models.InvoiceFields, invoiceID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%.2f|%s",
		strings.ToLower(employee), fields.InvoiceType, fields.Date, fields.TotalAmount, invoiceID)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
