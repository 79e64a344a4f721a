// Package openai adapts the OpenAI Chat Completions API to the model.Client
// contract. Structured output uses the native JSON schema response format.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/opper-ai/opper-agent-go/logging"
	"github.com/opper-ai/opper-agent-go/model"
)

// Options configures the OpenAI adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
	Logger logging.Logger
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}
}

// Client wraps the OpenAI Chat Completions API.
type Client struct {
	client *openai.Client
	opts   Options
}

var _ model.Client = (*Client)(nil)

// New creates an OpenAI client. Without an explicit APIKey option the
// official SDK reads OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(reqOpts...)
	return &Client{client: &client, opts: opts}
}

// NewFromClient wraps an existing SDK client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Call performs one buffered chat completion.
func (c *Client) Call(ctx context.Context, req model.CallRequest) (*model.CallResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	message := resp.Choices[0].Message.Content
	out := &model.CallResponse{
		Message: message,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if req.OutputSchema != nil && json.Valid([]byte(message)) {
		out.ParsedOutput = json.RawMessage(message)
	}
	return out, nil
}

// Stream performs one streaming chat completion. Content deltas are emitted
// as root fragments; the final event carries the call's token usage when the
// API reports it.
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
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		var usage *model.TokenUsage

		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					out <- model.StreamEvent{Delta: choice.Delta.Content}
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = &model.TokenUsage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- wrapError(err)
			return
		}

		if usage != nil {
			out <- model.StreamEvent{Usage: usage}
		}
	}()

	return out, errCh
}

// CreateSpan issues a local span id for log correlation.
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

func (c *Client) buildParams(req model.CallRequest) (openai.ChatCompletionNewParams, error) {
	modelID := c.opts.Model
	if req.Model != "" {
		modelID = req.Model
	}

	inputJSON, err := json.Marshal(req.Input)
	if err != nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("encode input: %w", err)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(string(inputJSON)))

	params := openai.ChatCompletionNewParams{
		Model:               modelID,
		Messages:            messages,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	if req.OutputSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "output",
					Schema: req.OutputSchema,
				},
			},
		}
	}
	return params, nil
}

func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.ErrorFromStatusCode("openai", apiErr.StatusCode, apiErr.Error(), err)
	}
	return model.NetworkError("openai", err)
}
