package models

// DocumentType identifies what an uploaded PDF contains
type DocumentType string

const (
	DocumentTypePolicy  DocumentType = "policy"
	DocumentTypeInvoice DocumentType = "invoice"
)

// Document is one uploaded PDF. It only lives for the duration of a single
// extraction call; nothing downstream holds the raw bytes.
type Document struct {
	ID    string
	Name  string
	Type  DocumentType
	Bytes []byte
}

// ExtractionMethod records which extraction path produced the text
type ExtractionMethod string

const (
	ExtractionDirect ExtractionMethod = "direct"
	ExtractionVision ExtractionMethod = "vision"
)

// ExtractionConfidence flags whether the direct path output is trustworthy
type ExtractionConfidence string

const (
	ConfidenceHigh ExtractionConfidence = "high"
	ConfidenceLow  ExtractionConfidence = "low"
)

// ExtractedText is the immutable output of one extraction pass over a Document
type ExtractedText struct {
	SourceDocumentID string
	Text             string
	Method           ExtractionMethod
	Confidence       ExtractionConfidence
}

// InvoiceType is the normalized expense category of an invoice
type InvoiceType string

const (
	InvoiceTypeMeal          InvoiceType = "meal"
	InvoiceTypeTravel        InvoiceType = "travel"
	InvoiceTypeCab           InvoiceType = "cab"
	InvoiceTypeAccommodation InvoiceType = "accommodation"
	InvoiceTypeOther         InvoiceType = "other"
)

// UnattributedEmployee is the aggregation bucket for invoices whose employee
// name could not be located in the extracted text. A missing name is a
// recoverable parse miss, not a failure.
const UnattributedEmployee = "Unattributed"

// InvoiceFields holds the typed fields parsed from an invoice's extracted text.
// EmployeeName may be empty when no name label was found.
type InvoiceFields struct {
	EmployeeName   string      `json:"employee_name"`
	InvoiceType    InvoiceType `json:"invoice_type"`
	Date           string      `json:"date"`
	TotalAmount    float64     `json:"total_amount"`
	RawDescription string      `json:"raw_description"`
}

// ReimbursementStatus is the closed three-value verdict set
type ReimbursementStatus string

const (
	StatusFullyReimbursed     ReimbursementStatus = "Fully Reimbursed"
	StatusPartiallyReimbursed ReimbursementStatus = "Partially Reimbursed"
	StatusDeclined            ReimbursementStatus = "Declined"
)

// ValidStatus reports whether s is one of the three allowed verdict values
func ValidStatus(s ReimbursementStatus) bool {
	switch s {
	case StatusFullyReimbursed, StatusPartiallyReimbursed, StatusDeclined:
		return true
	}
	return false
}

// MalformedVerdictMarker prefixes the explanation of a verdict whose model
// output was missing or carried an out-of-set status. Such verdicts are
// recorded as Declined so the failure stays visible in aggregated output.
const MalformedVerdictMarker = "[MALFORMED VERDICT]"

// ReimbursementVerdict is the classifier's decision for one invoice.
// Immutable once produced; the unit handed to the record store.
type ReimbursementVerdict struct {
	InvoiceID    string              `json:"invoice_id"`
	EmployeeName string              `json:"employee_name"`
	Status       ReimbursementStatus `json:"status"`
	Explanation  string              `json:"explanation"`
	Fields       InvoiceFields       `json:"invoice_fields"`
}

// EmployeeBatchSummary aggregates all verdicts for one employee within a
// single batch run. Discarded after the response is emitted.
type EmployeeBatchSummary struct {
	EmployeeName string                 `json:"employee_name"`
	InvoiceCount int                    `json:"invoice_count"`
	TotalAmount  float64                `json:"total_amount"`
	Verdicts     []ReimbursementVerdict `json:"verdicts"`
}

// InvoiceFailure describes one invoice that could not be processed. Failures
// never abort the batch; they are collected and reported next to the
// successful summaries.
type InvoiceFailure struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

// BatchResult is everything a caller gets back from one batch run: a summary
// per employee, the failure list and any non-fatal persistence warnings.
type BatchResult struct {
	Summaries map[string]*EmployeeBatchSummary `json:"summaries"`
	Failures  []InvoiceFailure                 `json:"failures"`
	Warnings  []string                         `json:"warnings"`
}

// RecordMetadata is the exact-match filterable part of a stored record
type RecordMetadata struct {
	EmployeeName string `json:"employee_name"`
	Date         string `json:"date"`
	DocumentType string `json:"document_type"`
}

// StoredRecord is the unit held in the vector index, derived 1:1 from a
// ReimbursementVerdict. Created on successful classification, never mutated.
type StoredRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata RecordMetadata `json:"metadata"`
}
