package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// metaPointID is the fixed identity of the single metadata point that
// stores the corpus fingerprint alongside the vectors it describes.
const metaPointID = "00000000-0000-0000-0000-000000000001"

// QdrantIndex is the production VectorIndex backed by Qdrant over gRPC.
type QdrantIndex struct {
	client    *qdrant.Client
	host      string
	port      int
	dimension int
}

var _ VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant and fails fast if it is unreachable.
// The health check retries with exponential backoff on startup.
func NewQdrantIndex(host string, port, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:    client,
		host:      host,
		port:      port,
		dimension: dimension,
	}

	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return idx, nil
}

// healthCheckWithRetry performs a startup health check with exponential
// backoff. Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (s *QdrantIndex) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the passages collection if it does not exist,
// with cosine distance and payload indexes on the filterable fields.
// Idempotent.
func (s *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	// Named vectors allow the fingerprint point (no vector) and chunks
	// (with "content" vector) to live in the same collection.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}
	return nil
}

// createPayloadIndexes indexes the fields searches filter on.
func (s *QdrantIndex) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"type",          // Distinguish "chunk" vs "meta".
		"file_name",     // Filter and list by source document.
		"model_version", // Keep vector spaces apart.
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Upsert stores chunks in batches of 100. Point identity is the chunk ID,
// which is derived from (document, span), so repeated ingestion of
// unchanged content replaces points in place.
func (s *QdrantIndex) Upsert(ctx context.Context, chunks []*EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Vector) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Vector), s.dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			payload := map[string]any{
				"type":          "chunk",
				"text":          chunk.Text,
				"file_name":     chunk.Metadata.FileName,
				"source":        chunk.Metadata.Source,
				"span_start":    chunk.Span.Start,
				"span_end":      chunk.Span.End,
				"model_version": chunk.ModelVersion,
			}
			if chunk.Metadata.Page != nil {
				payload["page"] = *chunk.Metadata.Page
			}

			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"content": qdrant.NewVector(chunk.Vector...),
				}),
				Payload: qdrant.NewValueMap(payload),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Search performs vector similarity search over chunks embedded under
// modelVersion. The stored model version must match the query's or the
// whole index is unusable until re-ingestion.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, k int, modelVersion string) ([]*ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	_, activeModel, err := s.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	if activeModel != "" && activeModel != modelVersion {
		return nil, fmt.Errorf("%w: index has %q, query has %q",
			ErrModelVersionMismatch, activeModel, modelVersion)
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "chunk"),
			qdrant.NewMatch("model_version", modelVersion),
		},
	}

	vectorName := "content"
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		chunk := &EmbeddedChunk{
			ID:           result.Id.GetUuid(),
			Text:         payload["text"].GetStringValue(),
			ModelVersion: payload["model_version"].GetStringValue(),
		}
		chunk.Span.Start = int(payload["span_start"].GetIntegerValue())
		chunk.Span.End = int(payload["span_end"].GetIntegerValue())
		chunk.Metadata.FileName = payload["file_name"].GetStringValue()
		chunk.Metadata.Source = payload["source"].GetStringValue()
		if pageVal, ok := payload["page"]; ok {
			page := int(pageVal.GetIntegerValue())
			chunk.Metadata.Page = &page
		}

		scored = append(scored, &ScoredChunk{
			Chunk: chunk,
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// Prune deletes chunks whose IDs are not in keep. Scrolls all chunk
// point IDs, diffs against keep, and deletes the stale ones in batches.
// The metadata point is never touched; its filter excludes it.
func (s *QdrantIndex) Prune(ctx context.Context, keep []string) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
	}
	batchSize := uint32(100)

	var stale []*qdrant.PointId
	var offset *qdrant.PointId
	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return fmt.Errorf("failed to scroll chunks: %w", err)
		}

		for _, result := range results {
			if _, ok := keepSet[result.Id.GetUuid()]; !ok {
				stale = append(stale, result.Id)
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	for i := 0; i < len(stale); i += 100 {
		end := min(i+100, len(stale))
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: CollectionName,
			Points:         qdrant.NewPointsSelector(stale[i:end]...),
		})
		if err != nil {
			return fmt.Errorf("failed to delete stale chunks %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks, excluding the fingerprint
// point.
func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// FileNames returns the distinct source documents, scrolling through all
// chunk points.
func (s *QdrantIndex) FileNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var offset *qdrant.PointId

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
	}
	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("file_name"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll chunks: %w", err)
		}

		for _, result := range results {
			if name := result.Payload["file_name"].GetStringValue(); name != "" {
				seen[name] = struct{}{}
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Fingerprint reads the metadata point written after the last completed
// ingestion run.
func (s *QdrantIndex) Fingerprint(ctx context.Context) (string, string, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: CollectionName,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(metaPointID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to get fingerprint: %w", err)
	}
	if len(result) == 0 {
		return "", "", nil
	}

	payload := result[0].Payload
	return payload["fingerprint"].GetStringValue(), payload["model_version"].GetStringValue(), nil
}

// SetFingerprint upserts the metadata point. The fingerprint lives in the
// same collection as the vectors it describes, so Clear wipes both
// together.
func (s *QdrantIndex) SetFingerprint(ctx context.Context, fingerprint, modelVersion string) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(metaPointID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"type":          "meta",
			"fingerprint":   fingerprint,
			"model_version": modelVersion,
			"updated_at":    time.Now().UTC().Format(time.RFC3339),
		}),
	}
	return s.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// Clear deletes all points by dropping and recreating the collection.
func (s *QdrantIndex) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}
