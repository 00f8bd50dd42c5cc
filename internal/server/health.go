package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	VectorStoreOK    bool   `json:"vector_store_ok"`
	EmbeddingModelOK bool   `json:"embedding_model_ok"`
	ChatModelOK      bool   `json:"chat_model_ok"`
	Timestamp        string `json:"timestamp"`
}

// HealthChecker probes the three upstream dependencies. Probes run in
// parallel under one deadline; a degraded service still reports which
// parts are up.
type HealthChecker struct {
	VectorStore    Pinger
	EmbeddingModel Pinger
	ChatModel      Pinger
}

// Handle serves the health endpoint. Returns 200 only when every
// dependency responds, 503 otherwise.
func (h *HealthChecker) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type probe struct {
		name string
		p    Pinger
		ok   *bool
	}
	resp := HealthResponse{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	probes := []probe{
		{"vector_store", h.VectorStore, &resp.VectorStoreOK},
		{"embedding_model", h.EmbeddingModel, &resp.EmbeddingModelOK},
		{"chat_model", h.ChatModel, &resp.ChatModelOK},
	}

	done := make(chan struct{})
	for i := range probes {
		go func(p probe) {
			*p.ok = p.p.Ping(ctx) == nil
			done <- struct{}{}
		}(probes[i])
	}
	for range probes {
		<-done
	}
	close(done)

	w.Header().Set("Content-Type", "application/json")
	if resp.VectorStoreOK && resp.EmbeddingModelOK && resp.ChatModelOK {
		resp.Status = "healthy"
		w.WriteHeader(http.StatusOK)
	} else {
		resp.Status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
