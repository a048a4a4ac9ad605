package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/models"
)

const sheetName = "Reimbursement Summary"

// ExcelExporter writes a batch result to an Excel workbook so finance can
// review a run outside the API.
type ExcelExporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExcelExporter creates an exporter writing into outputDir
func NewExcelExporter(outputDir string, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Export writes one workbook per batch run and returns its path
func (e *ExcelExporter) Export(result *models.BatchResult) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Employee", "Invoice", "Type", "Date", "Amount", "Status", "Explanation"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		e.setCell(f, cell, header)
	}

	// deterministic row order for reviewers diffing two runs
	names := make([]string, 0, len(result.Summaries))
	for name := range result.Summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	row := 2
	for _, name := range names {
		summary := result.Summaries[name]
		for _, verdict := range summary.Verdicts {
			e.setRow(f, row, []interface{}{
				summary.EmployeeName,
				verdict.InvoiceID,
				string(verdict.Fields.InvoiceType),
				verdict.Fields.Date,
				verdict.Fields.TotalAmount,
				string(verdict.Status),
				verdict.Explanation,
			})
			row++
		}
	}

	if len(result.Failures) > 0 {
		row++
		e.setRow(f, row, []interface{}{"Failed Invoices"})
		row++
		for _, failure := range result.Failures {
			e.setRow(f, row, []interface{}{failure.InvoiceID, failure.Reason})
			row++
		}
	}

	outputPath := filepath.Join(e.outputDir,
		fmt.Sprintf("reimbursement_summary_%s.xlsx", time.Now().Format("20060102_150405")))

	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	e.logger.Info("Batch report exported",
		zap.String("path", outputPath),
		zap.Int("employees", len(result.Summaries)))

	return outputPath, nil
}

func (e *ExcelExporter) setRow(f *excelize.File, row int, values []interface{}) {
	for col, value := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		e.setCell(f, cell, value)
	}
}

func (e *ExcelExporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
