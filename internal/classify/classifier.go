package classify

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
	"github.com/reimburseai/invoice-analyzer/internal/models"
	"github.com/reimburseai/invoice-analyzer/internal/policy"
)

// Classifier produces a structured reimbursement verdict for one invoice by
// grounding a single language-model call against the batch's policy text.
// One call per invoice: each needs independent grounding against the same
// policy, so invoices are never batched into a shared prompt.
type Classifier struct {
	llm      ai.ChatCompleter
	system   string
	template *template.Template
	logger   *zap.Logger
}

// NewClassifier creates a classifier backed by the given completion client
// and prompt configuration
func NewClassifier(llm ai.ChatCompleter, prompts *PromptConfig, logger *zap.Logger) (*Classifier, error) {
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	tmpl, err := template.New("classification").Parse(prompts.Classification.UserTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse classification template: %w", err)
	}

	return &Classifier{
		llm:      llm,
		system:   prompts.Classification.System,
		template: tmpl,
		logger:   logger,
	}, nil
}

// Classify sends the invoice text and policy to the model and parses the
// structured response. A response missing the status marker, or carrying a
// status outside the three allowed values, returns a
// *models.MalformedVerdictError; callers record those as Declined with a
// warning marker rather than dropping the invoice.
func (c *Classifier) Classify(ctx context.Context, invoiceID, invoiceText string, pol policy.Context, fields models.InvoiceFields) (*models.ReimbursementVerdict, error) {
	prompt, err := renderClassificationPrompt(c.template, pol.Text(), invoiceText)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Sending classification request",
		zap.String("invoice_id", invoiceID),
		zap.Int("prompt_length", len(prompt)))

	raw, err := c.llm.Complete(ctx, c.system, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	verdict, err := c.parseVerdict(invoiceID, raw, fields)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Invoice classified",
		zap.String("invoice_id", invoiceID),
		zap.String("employee", verdict.EmployeeName),
		zap.String("status", string(verdict.Status)))

	return verdict, nil
}

// parseVerdict extracts the marker sections from the model response
func (c *Classifier) parseVerdict(invoiceID, raw string, fields models.InvoiceFields) (*models.ReimbursementVerdict, error) {
	statusLine, found := findMarkerValue(raw, statusMarker)
	if !found {
		return nil, &models.MalformedVerdictError{
			InvoiceID: invoiceID,
			Raw:       raw,
			Reason:    "response missing status marker",
		}
	}

	status, ok := normalizeStatus(statusLine)
	if !ok {
		return nil, &models.MalformedVerdictError{
			InvoiceID: invoiceID,
			Raw:       raw,
			Reason:    fmt.Sprintf("status %q outside allowed set", statusLine),
		}
	}

	employee := fields.EmployeeName
	if employee == "" {
		if name, found := findMarkerValue(raw, employeeNameMarker); found {
			name = strings.Trim(name, `"`)
			if name != "" && !strings.EqualFold(name, noEmployeeSentinel) {
				employee = name
			}
		}
	}

	verdictFields := fields
	verdictFields.EmployeeName = employee

	return &models.ReimbursementVerdict{
		InvoiceID:    invoiceID,
		EmployeeName: employee,
		Status:       status,
		Explanation:  raw,
		Fields:       verdictFields,
	}, nil
}

// findMarkerValue returns the cleaned text after a section marker on its line
func findMarkerValue(raw, marker string) (string, bool) {
	for _, line := range strings.Split(raw, "\n") {
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		value := line[idx+len(marker):]
		value = strings.TrimSpace(strings.ReplaceAll(value, "*", ""))
		return value, true
	}
	return "", false
}

// normalizeStatus maps a raw status line onto the closed three-value set.
// Anything else is rejected, never coerced.
func normalizeStatus(raw string) (models.ReimbursementStatus, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	switch cleaned {
	case "fully reimbursed":
		return models.StatusFullyReimbursed, true
	case "partially reimbursed":
		return models.StatusPartiallyReimbursed, true
	case "declined":
		return models.StatusDeclined, true
	}
	return "", false
}

// MalformedFallbackVerdict builds the Declined-with-warning verdict recorded
// when the model output could not be parsed. The raw explanation carries the
// error marker so the failure is visible in aggregated output.
func MalformedFallbackVerdict(invoiceID string, fields models.InvoiceFields, reason string) *models.ReimbursementVerdict {
	return &models.ReimbursementVerdict{
		InvoiceID:    invoiceID,
		EmployeeName: fields.EmployeeName,
		Status:       models.StatusDeclined,
		Explanation:  fmt.Sprintf("%s %s", models.MalformedVerdictMarker, reason),
		Fields:       fields,
	}
}
