package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by read accessors when an employee has no records.
// Queries treat this as an empty result, never as a hard failure.
var ErrNotFound = errors.New("not found")

// ExtractionError means neither the direct nor the vision path produced
// usable text for a document. Recorded per invoice; the batch continues.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MalformedVerdictError means the classifier's response was missing the
// mandatory status marker or carried a status outside the allowed set.
// The orchestrator records such invoices as Declined with a warning marker.
type MalformedVerdictError struct {
	InvoiceID string
	Raw       string
	Reason    string
}

func (e *MalformedVerdictError) Error() string {
	return fmt.Sprintf("malformed verdict for invoice %s: %s", e.InvoiceID, e.Reason)
}

// StoreError wraps a persistence failure. It is surfaced as a warning in the
// batch result and never retracts a verdict already reported to the caller.
type StoreError struct {
	RecordID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failed for record %s: %v", e.RecordID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
