package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/reimburseai/invoice-analyzer/internal/models"
)

// Field extraction is rule based: every invoice category labels the person
// differently ("Customer Name" on meal and cab bills, "Passenger Details" on
// tickets), and dates/amounts follow a small set of printed formats.

var (
	namePatternsByType = map[models.InvoiceType][]*regexp.Regexp{
		models.InvoiceTypeMeal: {
			regexp.MustCompile(`(?i)Customer Name[:\s]+([A-Za-z][A-Za-z\s.]+)`),
		},
		models.InvoiceTypeCab: {
			regexp.MustCompile(`(?i)Customer Name[:\s]+([A-Za-z][A-Za-z\s.]+)`),
			regexp.MustCompile(`(?i)Rider[:\s]+([A-Za-z][A-Za-z\s.]+)`),
		},
		models.InvoiceTypeTravel: {
			regexp.MustCompile(`(?i)Passenger Details[:\s]+([A-Za-z][A-Za-z\s.]+)`),
			regexp.MustCompile(`(?i)Passenger[:\s]+([A-Za-z][A-Za-z\s.]+)`),
		},
		models.InvoiceTypeAccommodation: {
			regexp.MustCompile(`(?i)Guest Name[:\s]+([A-Za-z][A-Za-z\s.]+)`),
		},
	}

	// fallback when no type-specific label matched
	genericNamePattern = regexp.MustCompile(`(?i)\bName[:\s]+([A-Za-z][A-Za-z\s.]+)`)

	datePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Total Amount[:\s]+[₹$Rs.\s]*([0-9][0-9,]*\.?\d*)`),
		regexp.MustCompile(`(?i)(?:Grand Total|Total|Amount Payable)[:\s]+[₹$Rs.\s]*([0-9][0-9,]*\.?\d*)`),
		regexp.MustCompile(`[₹$]\s*([0-9][0-9,]*\.?\d*)`),
	}

	invoiceTypeLabelPattern = regexp.MustCompile(`(?i)Invoice Type[:\s]+([A-Za-z/ ]+)`)

	// category keywords, checked in order; the short ones are word-bounded
	// because they are substrings of unrelated words (upgrade, cola, pride)
	invoiceTypePatterns = []struct {
		invoiceType models.InvoiceType
		pattern     *regexp.Regexp
	}{
		{models.InvoiceTypeMeal, regexp.MustCompile(`meal|food|restaurant|cuisine`)},
		{models.InvoiceTypeCab, regexp.MustCompile(`\bcab\b|taxi|uber|\bola\b|\bride\b`)},
		{models.InvoiceTypeTravel, regexp.MustCompile(`travel|ticket|flight|train|airline|passenger`)},
		{models.InvoiceTypeAccommodation, regexp.MustCompile(`hotel|hostel|lodging|accommodation|guest house|\bpg\b`)},
	}
)

// ParseFields applies type-specific label rules to the extracted text.
// A missing employee name is a recoverable parse miss: EmployeeName is left
// empty and downstream aggregation routes the invoice to the unattributed
// bucket.
func ParseFields(text string, invoiceType models.InvoiceType) models.InvoiceFields {
	fields := models.InvoiceFields{
		InvoiceType:    invoiceType,
		RawDescription: text,
	}

	fields.EmployeeName = parseEmployeeName(text, invoiceType)
	fields.Date = ParseDate(text)

	if amount, ok := parseAmount(text); ok {
		fields.TotalAmount = amount
	}

	return fields
}

// DetectInvoiceType normalizes the free-text category of an invoice into
// one of the closed invoice types
func DetectInvoiceType(text string) models.InvoiceType {
	lower := strings.ToLower(text)

	// explicit "Invoice Type:" label wins over keyword sniffing
	if m := invoiceTypeLabelPattern.FindStringSubmatch(text); len(m) > 1 {
		lower = strings.ToLower(m[1])
	}

	for _, entry := range invoiceTypePatterns {
		if entry.pattern.MatchString(lower) {
			return entry.invoiceType
		}
	}
	return models.InvoiceTypeOther
}

// ParseDate finds the first DD/MM/YYYY date in the text, zero-padded
func ParseDate(text string) string {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	day, month, year := m[1], m[2], m[3]
	return fmt.Sprintf("%02s/%02s/%s", day, month, year)
}

func parseEmployeeName(text string, invoiceType models.InvoiceType) string {
	patterns := namePatternsByType[invoiceType]
	patterns = append(patterns, genericNamePattern)

	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			name := cleanName(m[1])
			if name != "" {
				return name
			}
		}
	}
	return ""
}

func cleanName(raw string) string {
	// cut at the first line break; label regexes can run into the next field
	if idx := strings.IndexAny(raw, "\r\n"); idx >= 0 {
		raw = raw[:idx]
	}
	name := strings.TrimSpace(strings.Trim(raw, "*"))
	if len(name) < 2 {
		return ""
	}
	return name
}

func parseAmount(text string) (float64, bool) {
	for _, p := range amountPatterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			raw := strings.ReplaceAll(m[1], ",", "")
			amount, err := strconv.ParseFloat(raw, 64)
			if err == nil && amount > 0 {
				return amount, true
			}
		}
	}
	return 0, false
}
