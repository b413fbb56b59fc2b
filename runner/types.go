package runner

// Task statuses, terminal per task.
const (
	StatusOK               = "ok"
	StatusFetchFailed      = "fetch_failed"
	StatusExtractionFailed = "extraction_failed"
	StatusPaywallDetected  = "paywall_detected"
	StatusError            = "error"
)

// Task is one URL to scrape. Meta is an opaque bag carried through to the
// outcome untouched (search snippets, ranking scores, source engine).
type Task struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	SubQuestionID string            `json:"sub_question_id,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// Outcome is the terminal result of one task. Outcomes are collected in
// completion order; correlate with inputs via TaskID.
type Outcome struct {
	TaskID      string            `json:"task_id"`
	URL         string            `json:"url"`
	Status      string            `json:"status"`
	HTTPStatus  int               `json:"http_status,omitempty"`
	Title       string            `json:"title,omitempty"`
	Lang        string            `json:"lang,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	WordCount   int               `json:"word_count,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	RawPath     string            `json:"raw_path,omitempty"`
	TextPath    string            `json:"text_path,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// note appends one entry to the outcome's ordered note list.
func (o *Outcome) note(s string) {
	o.Notes = append(o.Notes, s)
}

// CountByStatus tallies outcomes per status, the top-level reporting surface
// of a batch.
func CountByStatus(outcomes []Outcome) map[string]int {
	counts := make(map[string]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
