package history

import "time"

// PreviewLength caps stored passage text; full passages stay in the
// vector index, history keeps enough to audit what grounded an answer.
const PreviewLength = 500

// Record is one audited query with its outcome.
type Record struct {
	ID             string    `json:"id"`
	QueryText      string    `json:"query_text"`
	AnswerText     string    `json:"answer_text"`
	TopK           int       `json:"top_k"`
	ResponseTimeMS *int64    `json:"response_time_ms,omitempty"`
	SourceCount    int       `json:"source_count"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Source is one passage that grounded an answer, as recorded.
type Source struct {
	ID              string    `json:"id"`
	QueryID         string    `json:"query_id"`
	Position        int       `json:"position"`
	ContentPreview  string    `json:"content_preview"`
	SimilarityScore float64   `json:"similarity_score"`
	FileName        string    `json:"file_name"`
	Page            *int      `json:"page,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Entry is the input to Record: one finished query, successful or not.
// Sources list the passages in retrieval order; previews longer than
// PreviewLength are truncated on write.
type Entry struct {
	QueryText      string
	AnswerText     string
	TopK           int
	ResponseTimeMS *int64
	Success        bool
	ErrorMessage   string
	Sources        []SourceEntry
}

// SourceEntry is one passage attached to an Entry.
type SourceEntry struct {
	Content         string
	SimilarityScore float64
	FileName        string
	Page            *int
}

// Statistics are the aggregates over all recorded queries.
type Statistics struct {
	TotalQueries       int      `json:"total_queries"`
	SuccessfulQueries  int      `json:"successful_queries"`
	SuccessRatePercent float64  `json:"success_rate_percent"`
	AvgResponseTimeMS  *float64 `json:"avg_response_time_ms,omitempty"`
}
