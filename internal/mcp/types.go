// Package mcp exposes the advisor as Model Context Protocol tools.
package mcp

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Query is the question to answer from the indexed corpus.
	Query string `json:"query" jsonschema:"required,description=The question to answer from the indexed corpus"`
	// TopK is how many passages to ground the answer on.
	TopK int `json:"top_k,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Number of passages to ground the answer on"`
}

// AskOutput contains the generated answer and its sources.
type AskOutput struct {
	// Answer is the grounded answer text.
	Answer string `json:"answer"`
	// Sources lists the passages the answer is grounded on.
	Sources []AskSource `json:"sources"`
}

// AskSource is one passage behind an answer.
type AskSource struct {
	// FileName is the source document.
	FileName string `json:"file_name"`
	// Page is the page number for paged formats, absent otherwise.
	Page *int `json:"page,omitempty"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
	// Content is the passage text.
	Content string `json:"content"`
}

// StatisticsInput defines the input for the get_statistics tool.
// The tool takes no parameters.
type StatisticsInput struct{}

// StatisticsOutput contains aggregates over all recorded queries.
type StatisticsOutput struct {
	TotalQueries       int      `json:"total_queries"`
	SuccessfulQueries  int      `json:"successful_queries"`
	SuccessRatePercent float64  `json:"success_rate_percent"`
	AvgResponseTimeMS  *float64 `json:"avg_response_time_ms,omitempty"`
}

// StatusInput defines the input for the get_index_status tool.
// The tool takes no parameters.
type StatusInput struct{}

// StatusOutput describes the current state of the vector index.
type StatusOutput struct {
	// ChunkCount is the number of indexed passages.
	ChunkCount int `json:"chunk_count"`
	// FileNames lists the distinct indexed documents.
	FileNames []string `json:"file_names"`
	// ModelVersion is the embedding model the index was built with.
	ModelVersion string `json:"model_version,omitempty"`
	// IngestState is the phase of the current or last ingestion run.
	IngestState string `json:"ingest_state"`
}
