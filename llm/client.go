// Structured query client - wraps a provider with contract-validated queries.

package llm

import (
	"context"
	"fmt"

	jsonutil "github.com/richinex/stepwise/internal/json"
)

// Validatable is implemented by contract types that carry their own
// structural constraints beyond what JSON unmarshaling enforces.
type Validatable interface {
	Validate() error
}

// Client wraps a Provider with a structured-query interface.
type Client struct {
	provider Provider
	usage    TokenUsage
	calls    int
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Usage returns cumulative token usage across all queries.
func (c *Client) Usage() TokenUsage {
	return c.usage
}

// Calls returns the number of completed provider calls.
func (c *Client) Calls() int {
	return c.calls
}

// Chat sends a plain chat completion request and returns the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	c.record(response)
	return response.Content, nil
}

func (c *Client) record(response LLMResponse) {
	c.calls++
	c.usage.Add(response.Usage)
}

// Query asks the provider for a reply conforming to the given contract and
// decodes it into T.
//
// A reply that cannot be decoded or that fails T's own validation is retried
// exactly once, with the failure fed back as a user message so the model can
// repair its output. A second failure is returned as an error; callers treat
// it as fatal to the run.
func Query[T any](ctx context.Context, c *Client, messages []ChatMessage, format *ResponseFormat) (T, error) {
	var zero T

	result, queryErr := queryOnce[T](ctx, c, messages, format)
	if queryErr == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return zero, queryErr
	}

	repair := append(append([]ChatMessage(nil), messages...), UserMessage(fmt.Sprintf(
		"Your previous reply did not match the required schema (%v). Reply again with a single valid JSON object.",
		queryErr,
	)))

	result, retryErr := queryOnce[T](ctx, c, repair, format)
	if retryErr != nil {
		return zero, fmt.Errorf("structured query failed after retry: %w", retryErr)
	}
	return result, nil
}

func queryOnce[T any](ctx context.Context, c *Client, messages []ChatMessage, format *ResponseFormat) (T, error) {
	var zero T

	response, err := c.provider.ChatWithFormat(ctx, messages, format)
	if err != nil {
		return zero, fmt.Errorf("chat completion failed: %w", err)
	}
	c.record(response)

	result, err := jsonutil.Unmarshal[T](response.Content)
	if err != nil {
		return zero, err
	}

	if v, ok := any(&result).(Validatable); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	} else if v, ok := any(result).(Validatable); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}

	return result, nil
}
