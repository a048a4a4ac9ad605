package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/models"
)

func sampleResult() *models.BatchResult {
	return &models.BatchResult{
		Summaries: map[string]*models.EmployeeBatchSummary{
			"John Doe": {
				EmployeeName: "John Doe",
				InvoiceCount: 1,
				TotalAmount:  450,
				Verdicts: []models.ReimbursementVerdict{{
					InvoiceID:    "inv-1.pdf",
					EmployeeName: "John Doe",
					Status:       models.StatusFullyReimbursed,
					Explanation:  "within the meal budget",
					Fields: models.InvoiceFields{
						InvoiceType: models.InvoiceTypeMeal,
						Date:        "04/02/2025",
						TotalAmount: 450,
					},
				}},
			},
		},
		Failures: []models.InvoiceFailure{
			{InvoiceID: "broken.pdf", Reason: "extraction failed: corrupt bytes"},
		},
	}
}

func TestExport_WritesSummaryAndFailures(t *testing.T) {
	exporter := NewExcelExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.Export(sampleResult())
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	assert.Equal(t, []string{"Employee", "Invoice", "Type", "Date", "Amount", "Status", "Explanation"}, rows[0])

	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "John Doe", rows[1][0])
	assert.Equal(t, "inv-1.pdf", rows[1][1])
	assert.Equal(t, "Fully Reimbursed", rows[1][5])

	var sawFailureHeader, sawFailureRow bool
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Failed Invoices" {
			sawFailureHeader = true
		}
		if len(row) > 0 && row[0] == "broken.pdf" {
			sawFailureRow = true
		}
	}
	assert.True(t, sawFailureHeader, "failure section header missing")
	assert.True(t, sawFailureRow, "failed invoice row missing")
}

func TestExport_EmptyResultStillProducesWorkbook(t *testing.T) {
	exporter := NewExcelExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.Export(&models.BatchResult{Summaries: map[string]*models.EmployeeBatchSummary{}})
	require.NoError(t, err)
	require.FileExists(t, path)
}
