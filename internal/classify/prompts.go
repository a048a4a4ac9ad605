package classify

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Section markers the model is instructed to emit. The verdict parser keys
// on these exact strings, so they are fixed here rather than configurable.
const (
	employeeNameMarker = "**EMPLOYEE NAME:**"
	statusMarker       = "**REIMBURSEMENT STATUS:**"
	detailsMarker      = "**INVOICE DETAILS:**"

	// noEmployeeSentinel is what the model returns when the invoice carries
	// no identifiable person
	noEmployeeSentinel = "No information about employee"
)

// PromptConfig holds the classification prompt text. Operators can tune the
// wording without a rebuild; the section markers stay fixed.
type PromptConfig struct {
	Classification struct {
		System       string `yaml:"system"`
		UserTemplate string `yaml:"user_template"`
	} `yaml:"classification"`
}

const defaultClassificationSystem = "You are an HR reimbursement auditor. You compare employee expense invoices against the company's HR reimbursement policy and produce structured, well-reasoned verdicts. Follow the requested output format exactly."

const defaultClassificationUserTemplate = `Extract invoice information and identify the EMPLOYEE NAME.

EMPLOYEE NAME RULES:
- For MEAL invoices: Look for "Customer Name"
- For TRAVEL invoices: Look for "Passenger Details"
- For CAB invoices: Look for "Customer Name"
- If no customer/passenger name found: use "{{.NoEmployeeSentinel}}"

REIMBURSEMENT STATUS ANALYSIS:
Based on the HR reimbursement policy below, analyze the invoice and determine status:

**HR REIMBURSEMENT POLICY:**
{{.PolicyText}}

**Reimbursement Status Categories:**
- **Fully Reimbursed:** The entire invoice amount is reimbursable according to the HR policy
- **Partially Reimbursed:** Only a portion of the invoice amount is reimbursable according to the HR policy
- **Declined:** The invoice is not reimbursable according to the HR policy

FORMAT:
{{.EmployeeNameMarker}} [exact name or "{{.NoEmployeeSentinel}}"]

{{.StatusMarker}} [**Fully Reimbursed** OR **Partially Reimbursed** OR **Declined**]

{{.DetailsMarker}}
- Invoice Type: [Meal/Travel/Cab/Accommodation/Other]
- Invoice Number: [if available]
- Date: [date]
- Total Amount: [amount with currency]
- Description: [brief description]
- Reason: What is the reason for this reimbursement decision?

Return clean markdown format.

Extracted invoice text:

{{.InvoiceText}}`

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	cfg := &PromptConfig{}
	cfg.Classification.System = defaultClassificationSystem
	cfg.Classification.UserTemplate = defaultClassificationUserTemplate
	return cfg
}

// LoadPrompts loads prompt configuration from a YAML file, falling back to
// the built-in defaults when the file does not exist
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPrompts(), nil
		}
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderClassificationPrompt renders the per-invoice prompt. The policy text
// is embedded in full so every invoice is independently grounded against it.
func renderClassificationPrompt(tmpl *template.Template, policyText, invoiceText string) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, map[string]string{
		"PolicyText":         policyText,
		"InvoiceText":        invoiceText,
		"EmployeeNameMarker": employeeNameMarker,
		"StatusMarker":       statusMarker,
		"DetailsMarker":      detailsMarker,
		"NoEmployeeSentinel": noEmployeeSentinel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render classification prompt: %w", err)
	}
	return buf.String(), nil
}
