package policy

// Context holds the extracted HR reimbursement policy text for one batch
// run. It is an immutable value passed explicitly to every classification
// call, so concurrent unrelated batches never share policy state.
type Context struct {
	text string
}

// NewContext wraps extracted policy text for a batch run
func NewContext(text string) Context {
	return Context{text: text}
}

// Text returns the policy text
func (c Context) Text() string {
	return c.text
}

// Empty reports whether any policy text was captured
func (c Context) Empty() bool {
	return c.text == ""
}
