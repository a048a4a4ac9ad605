package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/models"
)

// fakeVision records vision calls and returns a fixed response
type fakeVision struct {
	response string
	err      error
	calls    int
}

func (f *fakeVision) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("unexpected text completion call")
}

func (f *fakeVision) CompleteWithImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	f.calls++
	return f.response, f.err
}

// buildPDF assembles a minimal single-page PDF. An empty pageText yields a
// blank page with no text layer, which forces the vision fallback.
func buildPDF(t *testing.T, pageText string) []byte {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
	}
	if pageText == "" {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	} else {
		objects = append(objects,
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
			"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageText)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return buf.Bytes()
}

func TestExtract_DirectTextTaggedHighConfidence(t *testing.T) {
	vision := &fakeVision{response: "unreachable"}
	extractor := NewExtractor(vision, zap.NewNop())

	doc := models.Document{
		ID:    "typed.pdf",
		Type:  models.DocumentTypeInvoice,
		Bytes: buildPDF(t, "Customer Name: John Doe - Total Amount: 450"),
	}

	result, err := extractor.Extract(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, models.ExtractionDirect, result.Method)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Contains(t, result.Text, "Customer Name: John Doe")
	assert.Equal(t, 0, vision.calls, "vision must not run when the text layer suffices")
}

func TestExtract_BlankPageFallsBackToVisionTagging(t *testing.T) {
	vision := &fakeVision{response: "Customer Name: John Doe\nTotal Amount: ₹450"}
	extractor := NewExtractor(vision, zap.NewNop())

	doc := models.Document{
		ID:    "scanned.pdf",
		Type:  models.DocumentTypeInvoice,
		Bytes: buildPDF(t, ""),
	}

	result, err := extractor.Extract(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, models.ExtractionVision, result.Method)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, 1, vision.calls, "blank text layer must trigger exactly one vision pass")
}

func TestExtract_CorruptBytesFailsWithExtractionError(t *testing.T) {
	vision := &fakeVision{response: "unreachable"}
	extractor := NewExtractor(vision, zap.NewNop())

	doc := models.Document{
		ID:    "invoice-3.pdf",
		Type:  models.DocumentTypeInvoice,
		Bytes: []byte("not a pdf at all"),
	}

	_, err := extractor.Extract(context.Background(), doc)
	require.Error(t, err)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "invoice-3.pdf", extractErr.DocumentID, "failure must carry the document identifier")
	assert.Equal(t, 0, vision.calls, "vision cannot run when pages cannot be rendered")
}

func TestExtract_EmptyVisionResultFailsWithExtractionError(t *testing.T) {
	// Corrupt bytes make both paths fail regardless of the vision response;
	// this pins down that an empty vision answer is never reported as success.
	vision := &fakeVision{response: "   "}
	extractor := NewExtractor(vision, zap.NewNop())

	doc := models.Document{ID: "blank.pdf", Bytes: []byte{}}

	result, err := extractor.Extract(context.Background(), doc)
	assert.Nil(t, result)

	var extractErr *models.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "blank.pdf", extractErr.DocumentID)
}
