package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/storage"
)

// makeAskHandler creates the ask tool handler. The full query pipeline
// runs behind it: retrieve, generate, record in history.
func makeAskHandler(service *advisor.Service) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := service.Query(ctx, input.Query, input.TopK)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("query failed: %w", err)
		}

		sources := make([]AskSource, 0, len(answer.Sources))
		for _, src := range answer.Sources {
			sources = append(sources, AskSource{
				FileName: src.Metadata.FileName,
				Page:     src.Metadata.Page,
				Score:    src.Score,
				Content:  src.Text,
			})
		}

		return nil, AskOutput{Answer: answer.AnswerText, Sources: sources}, nil
	}
}

// makeStatisticsHandler creates the get_statistics tool handler.
func makeStatisticsHandler(stats StatisticsProvider) func(
	context.Context, *mcp.CallToolRequest, StatisticsInput,
) (*mcp.CallToolResult, StatisticsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ StatisticsInput) (
		*mcp.CallToolResult, StatisticsOutput, error,
	) {
		s, err := stats.Statistics(ctx)
		if err != nil {
			return nil, StatisticsOutput{}, fmt.Errorf("statistics failed: %w", err)
		}
		return nil, StatisticsOutput{
			TotalQueries:       s.TotalQueries,
			SuccessfulQueries:  s.SuccessfulQueries,
			SuccessRatePercent: s.SuccessRatePercent,
			AvgResponseTimeMS:  s.AvgResponseTimeMS,
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(index storage.VectorIndex, state StateProvider) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		count, err := index.Count(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("count failed: %w", err)
		}
		names, err := index.FileNames(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("list files failed: %w", err)
		}
		if names == nil {
			names = []string{} // Ensure non-nil for JSON marshaling
		}
		_, modelVersion, err := index.Fingerprint(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("read fingerprint failed: %w", err)
		}

		return nil, StatusOutput{
			ChunkCount:   count,
			FileNames:    names,
			ModelVersion: modelVersion,
			IngestState:  string(state.State()),
		}, nil
	}
}
