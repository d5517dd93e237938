package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoOutput indicates the model returned an empty completion.
var ErrNoOutput = errors.New("model returned no output")

// ErrMalformedOutput indicates the completion did not match the declared schema.
var ErrMalformedOutput = errors.New("model output does not match declared schema")

// Client performs a single structured-output chat completion. Implementations
// must not retry; retry policy belongs to the caller.
type Client interface {
	Chat(ctx context.Context, req Request, result any) error
	Model() string
}

// Request describes one structured completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Config holds hosted model connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type client struct {
	openai openai.Client
	model  string
}

// New builds a Client against the OpenAI chat completions API.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &client{
		openai: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *client) Chat(ctx context.Context, req Request, result any) error {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        req.SchemaName,
		Description: openai.String("Structured response schema"),
		Schema:      req.Schema,
		Strict:      openai.Bool(true),
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.SystemPrompt),
		openai.UserMessage(req.UserPrompt),
	}

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return ErrNoOutput
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return ErrNoOutput
	}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return nil
}

func (c *client) Model() string {
	return c.model
}

// GenerateSchema reflects a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Temp returns a pointer to a temperature value.
func Temp(t float64) *float64 {
	return &t
}
