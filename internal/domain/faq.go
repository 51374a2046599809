package domain

// FAQ is one indexed knowledge entry. Built offline during ingestion,
// read-only at service runtime. The zero value stands in for a corrupted
// index row whose metadata is missing.
type FAQ struct {
	ID        int    `json:"id"`
	Category  string `json:"category"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	SourceURL string `json:"source_url"`
}

// IsZero reports whether the record carries no content.
func (f FAQ) IsZero() bool {
	return f.Category == "" && f.Question == "" && f.Answer == "" && f.SourceURL == ""
}

// Evidence pairs a retrieved FAQ with its similarity score. Per-request,
// ephemeral.
type Evidence struct {
	FAQ   FAQ
	Score float64
}
