// Package anthropic adapts the Anthropic Messages API to the model.Client
// contract. Structured output is requested by embedding the output schema in
// the system prompt and extracting the JSON object from the response text.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/opper-ai/opper-agent-go/logging"
	"github.com/opper-ai/opper-agent-go/model"
)

// Options configures the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Client wraps the Anthropic Messages API.
type Client struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Client = (*Client)(nil)

// New creates an Anthropic client. Without an explicit APIKey the official
// SDK reads ANTHROPIC_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewFromClient wraps an existing SDK client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Logger:      logging.NoOpLogger{},
	}
}

// Call performs one buffered Messages API round trip.
func (c *Client) Call(ctx context.Context, req model.CallRequest) (*model.CallResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	out := &model.CallResponse{
		Message: text.String(),
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}
	if req.OutputSchema != nil {
		out.ParsedOutput = extractJSON(out.Message)
	}
	return out, nil
}

// Stream performs one streaming Messages API call. Text deltas are emitted as
// root fragments; the final event carries the call's token usage.
func (c *Client) Stream(ctx context.Context, req model.CallRequest) (<-chan model.StreamEvent, <-chan error) {
	out := make(chan model.StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params, err := c.buildParams(req)
		if err != nil {
			errCh <- err
			return
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		usage := model.TokenUsage{}

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = int(ev.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					out <- model.StreamEvent{Delta: delta.Text}
				}
			case anthropic.MessageDeltaEvent:
				usage.OutputTokens = int(ev.Usage.OutputTokens)
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- wrapError(err)
			return
		}

		out <- model.StreamEvent{Usage: &usage}
	}()

	return out, errCh
}

// CreateSpan issues a local span id. The Messages API has no span store;
// spans exist so callers can correlate log lines.
func (c *Client) CreateSpan(ctx context.Context, opts model.SpanOptions) (*model.Span, error) {
	span := &model.Span{ID: uuid.NewString()}
	c.opts.Logger.Debug("span opened", "span_id", span.ID, "name", opts.Name, "parent_id", opts.ParentID)
	return span, nil
}

// UpdateSpan logs the span close.
func (c *Client) UpdateSpan(ctx context.Context, id string, update model.SpanUpdate) error {
	if update.Err != nil {
		c.opts.Logger.Debug("span closed", "span_id", id, "error", update.Err.Error())
		return nil
	}
	c.opts.Logger.Debug("span closed", "span_id", id)
	return nil
}

func (c *Client) buildParams(req model.CallRequest) (anthropic.MessageNewParams, error) {
	modelID := c.opts.Model
	if req.Model != "" {
		modelID = anthropic.Model(req.Model)
	}

	system := req.Instructions
	if req.OutputSchema != nil {
		schemaJSON, err := json.Marshal(req.OutputSchema)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("encode output schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object conforming to this JSON schema, and nothing else:\n" + string(schemaJSON)
	}

	inputJSON, err := json.Marshal(req.Input)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("encode input: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(inputJSON))),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params, nil
}

// extractJSON pulls the outermost JSON object out of a text response,
// tolerating prose or markdown fences around it. Returns nil when no valid
// object is present.
func extractJSON(text string) json.RawMessage {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil
	}
	return json.RawMessage(candidate)
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.ErrorFromStatusCode("anthropic", apiErr.StatusCode, apiErr.Error(), err)
	}
	return model.NetworkError("anthropic", err)
}
