package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
	"github.com/reimburseai/invoice-analyzer/internal/models"
)

const answerSystemPrompt = "You are an HR assistant AI. Answer questions about an employee's reimbursement history using only the provided employee records. Give a concise, helpful, and context-grounded answer. Do not invent information that is not in the records."

const answerUserTemplate = `Employee Data:
------------------
%s

User Question:
------------------
%s`

// Retriever is the slice of the record store the engine depends on
type Retriever interface {
	Query(ctx context.Context, employeeName, question string) ([]models.StoredRecord, error)
}

// Engine answers natural-language questions scoped to one employee by
// grounding a language-model call in that employee's retrieved records.
type Engine struct {
	retriever Retriever
	llm       ai.ChatCompleter
	logger    *zap.Logger
}

// NewEngine creates a query engine over the given retriever and model
func NewEngine(retriever Retriever, llm ai.ChatCompleter, logger *zap.Logger) *Engine {
	return &Engine{
		retriever: retriever,
		llm:       llm,
		logger:    logger,
	}
}

// NoDataResponse is the fixed reply for employees with zero stored records
func NoDataResponse(employeeName string) string {
	return fmt.Sprintf("No data found for employee: %s", employeeName)
}

// Answer retrieves the employee's records and issues one grounded model
// call. When retrieval comes back empty the fixed no-data response is
// returned without calling the model at all; answering from empty context
// invites hallucination.
func (e *Engine) Answer(ctx context.Context, employeeName, question string) (string, error) {
	records, err := e.retriever.Query(ctx, employeeName, question)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	if len(records) == 0 {
		e.logger.Info("No records for employee, skipping model call",
			zap.String("employee", employeeName))
		return NoDataResponse(employeeName), nil
	}

	blobs := make([]string, 0, len(records))
	for _, rec := range records {
		blobs = append(blobs, rec.Text)
	}
	contextText := strings.Join(blobs, "\n\n")

	prompt := fmt.Sprintf(answerUserTemplate, contextText, question)

	answer, err := e.llm.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	e.logger.Info("Query answered",
		zap.String("employee", employeeName),
		zap.Int("records_used", len(records)))

	return answer, nil
}
