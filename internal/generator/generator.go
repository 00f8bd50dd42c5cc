// Package generator produces grounded answers from retrieved passages
// via an OpenAI-compatible chat completions API.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/bull/advisor-rag/internal/retriever"
)

const (
	// DefaultModel is the chat model used unless configured otherwise.
	DefaultModel = openai.ChatModelGPT4oMini

	// callTimeout is the ceiling for a single generation call.
	callTimeout = 120 * time.Second
)

// Generator turns a query and its supporting passages into an answer.
type Generator interface {
	Generate(ctx context.Context, query string, passages []retriever.Result) (string, error)
}

// OpenAIGenerator implements Generator against the chat completions API.
// A transient failure is retried once with backoff; a timeout is not,
// the caller already waited the full ceiling.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIGenerator creates a generator for the given chat model.
// The client is shared with the embedder so both reuse one connection.
func NewOpenAIGenerator(client *openai.Client, model string, logger *slog.Logger) *OpenAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGenerator{client: client, model: model, logger: logger}
}

// Generate builds the grounded prompt and calls the chat model. The
// returned answer is the completion text verbatim, trimmed.
func (g *OpenAIGenerator) Generate(ctx context.Context, query string, passages []retriever.Result) (string, error) {
	prompt := BuildPrompt(query, passages)

	var answer string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Model: g.model,
		})
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return backoff.Permanent(fmt.Errorf("%w after %s", ErrTimeout, callTimeout))
			}
			if isTransient(err) {
				return err // Will retry with backoff.
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyCompletion)
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx)); err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrEmptyCompletion) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	g.logger.Debug("Generated answer", "model", g.model, "passages", len(passages), "chars", len(answer))
	return answer, nil
}

// Ping verifies the chat model responds at all, with a tiny completion.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		Model:               g.model,
		MaxCompletionTokens: openai.Int(1),
	})
	if err != nil {
		return fmt.Errorf("chat model ping failed: %w", err)
	}
	return nil
}

// isTransient reports whether the error is worth retrying: rate limits,
// server-side failures and network errors.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
