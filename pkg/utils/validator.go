package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidatePDFFilename checks that an uploaded file looks like a PDF
func ValidatePDFFilename(name string) error {
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return fmt.Errorf("file must be a PDF: %s", name)
	}
	return nil
}

// ValidateEmployeeName rejects empty or control-character employee names
// before they are used as query filters
func ValidateEmployeeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("employee name must not be empty")
	}
	return nil
}

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
