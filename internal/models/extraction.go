package models

// ExtractedPrompt is one candidate user-authored prompt pulled from a
// request body by the Payload Extractor.
type ExtractedPrompt struct {
	Text       string  `json:"text"`
	IsCurrent  bool    `json:"is_current"`
	Confidence float64 `json:"confidence"`
}

// ExtractionKind discriminates the outcome of a parse attempt, per
// spec.md §9's redesign note: explicit result values instead of
// exception-based control flow.
type ExtractionKind string

const (
	ExtractionOK        ExtractionKind = "ok"
	ExtractionTruncated ExtractionKind = "truncated"
	ExtractionNone      ExtractionKind = "none"
	ExtractionError     ExtractionKind = "error"
)

// Extraction is the result of running the parser registry against a
// request body.
type Extraction struct {
	Kind    ExtractionKind
	Prompts []ExtractedPrompt
	Err     error
}

// Admin is the (single or multi-) dashboard administrator account.
// Password hashing uses Argon2id per spec.md §4.7.
type Admin struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
