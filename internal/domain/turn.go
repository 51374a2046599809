package domain

// Turn is one logged request/response pair. Created once per request,
// immutable once written.
type Turn struct {
	TS           string
	SessionID    string
	IP           string
	UserAgent    string
	Query        string
	Answer       string
	UsedEvidence bool
	Citations    []string
	LatencyMS    int
	Provider     string
	Model        string
	TopK         int
	Threshold    float64
}
