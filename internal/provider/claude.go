package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeBaseURL = "https://api.anthropic.com"

// ClaudeProvider talks to the Anthropic Messages API through the official
// SDK (grounded on original_source/grove_domain_tool/providers/claude.py
// for the request shape, re-implemented against
// github.com/anthropics/anthropic-sdk-go the way
// basegraphhq-basegraph/relay/common/llm/anthropic.go wires the same SDK).
// The client is built fresh per call from apiKey/baseURL/httpClient rather
// than cached, so baseURL can still be pointed at a test server after
// construction the same way the teacher's providers expose a mutable field.
type ClaudeProvider struct {
	apiKey       string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

// NewClaudeProvider constructs a Claude provider. defaultModel falls back
// to "claude-sonnet-4-20250514" when empty.
func NewClaudeProvider(apiKey, defaultModel string) *ClaudeProvider {
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &ClaudeProvider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		baseURL:      defaultClaudeBaseURL,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *ClaudeProvider) Name() string         { return "claude" }
func (p *ClaudeProvider) DefaultModel() string { return p.defaultModel }
func (p *ClaudeProvider) SupportsTools() bool  { return true }

func (p *ClaudeProvider) client() anthropic.Client {
	return anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
	)
}

func (p *ClaudeProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, nil, "", opts)
}

func (p *ClaudeProvider) GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, tools, opts.ToolChoice, opts)
}

func (p *ClaudeProvider) call(ctx context.Context, prompt string, tools []ToolDefinition, toolChoice ToolChoice, opts GenerateOptions) (Response, error) {
	if p.apiKey == "" {
		return Response{}, newAuthenticationError("claude", "ANTHROPIC_API_KEY not configured")
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	temp := clampTemperature(opts.Temperature)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			{Role: anthropic.MessageParamRoleUser, Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}},
		},
		Temperature: anthropic.Float(temp),
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	if len(tools) > 0 {
		params.Tools = anthropicToolUnions(tools)
		switch toolChoice {
		case ToolChoiceAuto, "":
		case ToolChoiceAny:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: string(toolChoice)}}
		}
	}

	client := p.client()
	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyClaudeError(err)
	}

	var content strings.Builder
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = map[string]any{"raw": string(block.Input)}
				}
			}
			toolCalls = append(toolCalls, ToolCall{ToolName: block.Name, Arguments: args})
		}
	}

	return Response{
		Content:  content.String(),
		Model:    string(resp.Model),
		Provider: p.Name(),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		ToolCalls: toolCalls,
	}, nil
}

// classifyClaudeError maps the SDK's *anthropic.Error (HTTP status carried
// through as StatusCode) onto the provider error taxonomy (§7
// "ProviderDegraded").
func classifyClaudeError(err error) error {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		switch aerr.StatusCode {
		case http.StatusTooManyRequests:
			return newRateLimitError("claude", "rate limit exceeded")
		case http.StatusUnauthorized:
			return newAuthenticationError("claude", "authentication failed")
		}
		return newError("claude", "%s", aerr.Error())
	}
	return newError("claude", "request failed: %v", err)
}

// anthropicToolUnions translates the shared ToolDefinition schema into the
// SDK's tool-union param, mirroring
// basegraphhq-basegraph/relay/common/llm/anthropic.go's convertTools.
func anthropicToolUnions(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Type: "object", Properties: t.Parameters["properties"]},
			},
		}
	}
	return out
}
