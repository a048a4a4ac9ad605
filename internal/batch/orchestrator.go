package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/classify"
	"github.com/reimburseai/invoice-analyzer/internal/extract"
	"github.com/reimburseai/invoice-analyzer/internal/models"
	"github.com/reimburseai/invoice-analyzer/internal/policy"
)

// DocumentExtractor runs the direct → vision extraction chain
type DocumentExtractor interface {
	Extract(ctx context.Context, doc models.Document) (*models.ExtractedText, error)
}

// VerdictClassifier produces one reimbursement verdict per invoice
type VerdictClassifier interface {
	Classify(ctx context.Context, invoiceID, invoiceText string, pol policy.Context, fields models.InvoiceFields) (*models.ReimbursementVerdict, error)
}

// RecordPersister writes completed verdicts to the record store
type RecordPersister interface {
	Upsert(ctx context.Context, verdict models.ReimbursementVerdict) (*models.StoredRecord, error)
}

// Orchestrator drives extraction and classification over every invoice in an
// uploaded set. One failing invoice never aborts the rest: failures are
// collected per invoice and reported next to the successful summaries.
type Orchestrator struct {
	extractor  DocumentExtractor
	classifier VerdictClassifier
	records    RecordPersister
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
}

// Config bounds the orchestrator's worker pool and batch runtime
type Config struct {
	Workers int
	Timeout time.Duration
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(extractor DocumentExtractor, classifier VerdictClassifier, records RecordPersister, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Orchestrator{
		extractor:  extractor,
		classifier: classifier,
		records:    records,
		workers:    cfg.Workers,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// invoiceOutcome is one worker's result for one invoice: either a verdict or
// a failure entry, never both
type invoiceOutcome struct {
	verdict *models.ReimbursementVerdict
	failure *models.InvoiceFailure
}

// ProcessBatch extracts the policy, classifies every invoice against it and
// persists the verdicts. The policy must be readable; everything after that
// is partial-failure-safe. Invoices still queued when the batch deadline
// passes are recorded as failures and the partial result is returned.
func (o *Orchestrator) ProcessBatch(ctx context.Context, policyDoc models.Document, invoiceDocs []models.Document) (*models.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	polText, err := o.extractor.Extract(ctx, policyDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract policy document: %w", err)
	}
	pol := policy.NewContext(polText.Text)

	o.logger.Info("Starting batch run",
		zap.Int("invoice_count", len(invoiceDocs)),
		zap.Int("workers", o.workers),
		zap.String("policy_extraction", string(polText.Method)))

	jobs := make(chan models.Document)
	outcomes := make(chan invoiceOutcome, len(invoiceDocs))

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				outcomes <- o.processInvoice(ctx, doc, pol)
			}
		}()
	}

	for _, doc := range invoiceDocs {
		jobs <- doc
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	result := &models.BatchResult{
		Summaries: make(map[string]*models.EmployeeBatchSummary),
	}

	var verdicts []models.ReimbursementVerdict
	for outcome := range outcomes {
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
			continue
		}
		verdicts = append(verdicts, *outcome.verdict)
		o.aggregate(result, *outcome.verdict)
	}

	// Persistence happens after processing; a store failure is a warning,
	// never a retraction of a verdict already in the result. Verdicts that
	// completed before the deadline must still be written when the batch ran
	// out of time, so persistence does not inherit the batch deadline.
	persistCtx := context.WithoutCancel(ctx)
	for _, verdict := range verdicts {
		if _, err := o.records.Upsert(persistCtx, verdict); err != nil {
			o.logger.Warn("Failed to persist verdict",
				zap.String("invoice_id", verdict.InvoiceID),
				zap.Error(err))
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("failed to persist record for invoice %s: %v", verdict.InvoiceID, err))
		}
	}

	o.logger.Info("Batch run finished",
		zap.Int("employees", len(result.Summaries)),
		zap.Int("verdicts", len(verdicts)),
		zap.Int("failures", len(result.Failures)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// processInvoice runs one invoice through the pipeline, converting every
// failure mode into either a recorded verdict or a failure entry
func (o *Orchestrator) processInvoice(ctx context.Context, doc models.Document, pol policy.Context) invoiceOutcome {
	if err := ctx.Err(); err != nil {
		return failureOutcome(doc.ID, "batch timeout before processing started")
	}

	extracted, err := o.extractor.Extract(ctx, doc)
	if err != nil {
		var extractErr *models.ExtractionError
		if errors.As(err, &extractErr) {
			o.logger.Warn("Invoice extraction failed",
				zap.String("invoice_id", doc.ID),
				zap.Error(err))
		}
		return failureOutcome(doc.ID, fmt.Sprintf("extraction failed: %v", err))
	}

	invoiceType := extract.DetectInvoiceType(extracted.Text)
	fields := extract.ParseFields(extracted.Text, invoiceType)

	verdict, err := o.classifier.Classify(ctx, doc.ID, extracted.Text, pol, fields)
	if err != nil {
		var malformed *models.MalformedVerdictError
		if errors.As(err, &malformed) {
			// Malformed model output is recorded as Declined-with-warning,
			// never dropped silently.
			o.logger.Warn("Malformed verdict, recording as declined",
				zap.String("invoice_id", doc.ID),
				zap.String("reason", malformed.Reason))
			return invoiceOutcome{verdict: classify.MalformedFallbackVerdict(doc.ID, fields, malformed.Reason)}
		}
		return failureOutcome(doc.ID, fmt.Sprintf("classification failed: %v", err))
	}

	return invoiceOutcome{verdict: verdict}
}

// aggregate appends a verdict to its employee's summary. Invoices without a
// locatable employee name count in the unattributed bucket. Aggregation is
// exact string match on the employee name; two people sharing a display name
// fall into the same summary.
func (o *Orchestrator) aggregate(result *models.BatchResult, verdict models.ReimbursementVerdict) {
	key := verdict.EmployeeName
	if key == "" {
		key = models.UnattributedEmployee
	}

	summary, ok := result.Summaries[key]
	if !ok {
		summary = &models.EmployeeBatchSummary{EmployeeName: key}
		result.Summaries[key] = summary
	}

	summary.InvoiceCount++
	summary.TotalAmount += verdict.Fields.TotalAmount
	summary.Verdicts = append(summary.Verdicts, verdict)
}

func failureOutcome(invoiceID, reason string) invoiceOutcome {
	return invoiceOutcome{failure: &models.InvoiceFailure{InvoiceID: invoiceID, Reason: reason}}
}
