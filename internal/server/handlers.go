package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
	"github.com/bull/advisor-rag/internal/retriever"
)

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type sourceResponse struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	FileName string  `json:"file_name"`
	Page     *int    `json:"page,omitempty"`
}

type queryResponse struct {
	Answer          string           `json:"answer"`
	Sources         []sourceResponse `json:"sources"`
	QueryID         string           `json:"query_id,omitempty"`
	HistoryRecorded bool             `json:"history_recorded"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	answer, err := s.service.Query(r.Context(), req.Query, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, advisor.ErrEmptyQuery), errors.Is(err, advisor.ErrInvalidTopK):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:          answer.AnswerText,
		Sources:         toSourceResponses(answer.Sources),
		QueryID:         answer.QueryID,
		HistoryRecorded: answer.HistoryRecorded,
	})
}

type historyListResponse struct {
	Items      []history.Record `json:"items"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	records, total, err := s.history.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("History list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, historyListResponse{
		Items:      records,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	})
}

type historyGetResponse struct {
	Record  *history.Record  `json:"record"`
	Sources []history.Source `json:"sources"`
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, sources, err := s.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("History get failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if sources == nil {
		sources = []history.Source{}
	}

	s.writeJSON(w, http.StatusOK, historyGetResponse{Record: record, Sources: sources})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.Statistics(r.Context())
	if err != nil {
		s.logger.Error("Statistics failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type ingestResponse struct {
	State            ingest.State       `json:"state"`
	TotalDocs        int                `json:"total_docs"`
	SuccessfulDocs   int                `json:"successful_docs"`
	FailedDocs       []ingest.FailedDoc `json:"failed_docs,omitempty"`
	TotalChunks      int                `json:"total_chunks"`
	SkippedUnchanged bool               `json:"skipped_unchanged"`
	DurationMS       int64              `json:"duration_ms"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingester.Run(r.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrInProgress) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("Ingestion failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	s.writeJSON(w, http.StatusOK, toIngestResponse(result))
}

type ingestStatusResponse struct {
	State   ingest.State    `json:"state"`
	LastRun *ingestResponse `json:"last_run,omitempty"`
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	resp := ingestStatusResponse{State: s.ingester.State()}
	if last := s.ingester.LastResult(); last != nil {
		lr := toIngestResponse(last)
		resp.LastRun = &lr
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func toIngestResponse(result *ingest.Result) ingestResponse {
	return ingestResponse{
		State:            result.State,
		TotalDocs:        result.TotalDocs,
		SuccessfulDocs:   result.SuccessfulDocs,
		FailedDocs:       result.FailedDocs,
		TotalChunks:      result.TotalChunks,
		SkippedUnchanged: result.SkippedUnchanged,
		DurationMS:       result.Duration.Milliseconds(),
	}
}

func toSourceResponses(sources []retriever.Result) []sourceResponse {
	out := make([]sourceResponse, len(sources))
	for i, src := range sources {
		out[i] = sourceResponse{
			Content:  src.Text,
			Score:    src.Score,
			FileName: src.Metadata.FileName,
			Page:     src.Metadata.Page,
		}
	}
	return out
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
