package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
	"github.com/reimburseai/invoice-analyzer/internal/models"
)

const (
	// minDirectTextLength is the threshold below which direct extraction is
	// considered unreliable and the vision fallback kicks in
	minDirectTextLength = 20

	// maxVisionPages caps the number of pages sent to the vision model per
	// document to control cost
	maxVisionPages = 2

	visionExtractionPrompt = "Extract all text and details from this document image. Return the content in markdown format. Preserve labels such as names, dates, amounts and invoice numbers exactly as written."
)

// Extractor converts one PDF document into plain/markdown text. It first
// tries direct text extraction; when the result is empty or too short it
// renders the pages and asks a vision-capable model to read them.
type Extractor struct {
	vision ai.ChatCompleter
	logger *zap.Logger
}

// NewExtractor creates a PDF extractor with a vision fallback
func NewExtractor(vision ai.ChatCompleter, logger *zap.Logger) *Extractor {
	return &Extractor{
		vision: vision,
		logger: logger,
	}
}

// Extract runs the direct → vision fallback chain over one document.
// Direct results are tagged high confidence; vision results are tagged low
// because the text is unverified model output. When both paths fail the
// returned error is an *models.ExtractionError carrying the document ID.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) (*models.ExtractedText, error) {
	e.logger.Info("Extracting document",
		zap.String("document_id", doc.ID),
		zap.String("document_type", string(doc.Type)))

	text, directErr := e.extractDirect(doc.Bytes)
	if directErr == nil && len(strings.TrimSpace(text)) >= minDirectTextLength {
		return &models.ExtractedText{
			SourceDocumentID: doc.ID,
			Text:             text,
			Method:           models.ExtractionDirect,
			Confidence:       models.ConfidenceHigh,
		}, nil
	}

	if directErr != nil {
		e.logger.Warn("Direct text extraction failed, falling back to vision",
			zap.String("document_id", doc.ID),
			zap.Error(directErr))
	} else {
		e.logger.Info("Direct text too short, falling back to vision",
			zap.String("document_id", doc.ID),
			zap.Int("text_length", len(strings.TrimSpace(text))))
	}

	visionText, visionErr := e.extractWithVision(ctx, doc.Bytes)
	if visionErr != nil || strings.TrimSpace(visionText) == "" {
		if visionErr == nil {
			visionErr = fmt.Errorf("vision extraction returned empty text")
		}
		return nil, &models.ExtractionError{DocumentID: doc.ID, Err: visionErr}
	}

	return &models.ExtractedText{
		SourceDocumentID: doc.ID,
		Text:             visionText,
		Method:           models.ExtractionVision,
		Confidence:       models.ConfidenceLow,
	}, nil
}

// extractDirect pulls the text layer out of the PDF page by page
func (e *Extractor) extractDirect(pdfBytes []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		pageText, err := doc.Text(pageNum)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// extractWithVision renders pages to JPEG and asks the vision model to read them
func (e *Extractor) extractWithVision(ctx context.Context, pdfBytes []byte) (string, error) {
	images, err := e.renderPages(pdfBytes)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("no pages rendered from PDF")
	}

	if len(images) > maxVisionPages {
		images = images[:maxVisionPages]
	}

	e.logger.Info("Running vision extraction", zap.Int("page_count", len(images)))

	return e.vision.CompleteWithImages(ctx, visionExtractionPrompt, images)
}

// renderPages converts each PDF page into a JPEG image
func (e *Extractor) renderPages(pdfBytes []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var images [][]byte
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			e.logger.Warn("Failed to render page as image",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			e.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		images = append(images, buf.Bytes())
	}

	return images, nil
}
