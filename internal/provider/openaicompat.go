package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openAICompatProvider backs both the DeepSeek and Kimi providers: both
// expose an OpenAI-compatible chat-completions endpoint differing only in
// base URL, default model, and display name (grounded on
// original_source/grove_domain_tool/providers/deepseek.py for the request
// shape, re-implemented against github.com/openai/openai-go the way
// basegraphhq-basegraph/relay/common/llm/openai.go wires the same SDK
// against a custom base URL). The client is built fresh per call rather
// than cached so baseURL stays a mutable field tests can override after
// construction.
type openAICompatProvider struct {
	providerName string
	apiKey       string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

// NewDeepSeekProvider constructs a provider for DeepSeek's chat completions API.
func NewDeepSeekProvider(apiKey, defaultModel string) Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return &openAICompatProvider{
		providerName: "deepseek",
		apiKey:       apiKey,
		defaultModel: defaultModel,
		baseURL:      "https://api.deepseek.com",
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

// NewKimiProvider constructs a provider for Moonshot's Kimi chat completions API.
func NewKimiProvider(apiKey, defaultModel string) Provider {
	if defaultModel == "" {
		defaultModel = "kimi-k2-0528"
	}
	return &openAICompatProvider{
		providerName: "kimi",
		apiKey:       apiKey,
		defaultModel: defaultModel,
		baseURL:      "https://api.moonshot.ai/v1",
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *openAICompatProvider) Name() string         { return p.providerName }
func (p *openAICompatProvider) DefaultModel() string { return p.defaultModel }
func (p *openAICompatProvider) SupportsTools() bool  { return true }

func (p *openAICompatProvider) client() openai.Client {
	return openai.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
	)
}

func (p *openAICompatProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, nil, "", opts)
}

func (p *openAICompatProvider) GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, tools, opts.ToolChoice, opts)
}

func (p *openAICompatProvider) call(ctx context.Context, prompt string, tools []ToolDefinition, toolChoice ToolChoice, opts GenerateOptions) (Response, error) {
	if p.apiKey == "" {
		return Response{}, newAuthenticationError(p.providerName, "API key not configured")
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(opts.MaxTokens)),
		Temperature:         openai.Float(clampTemperature(opts.Temperature)),
	}
	if len(tools) > 0 {
		params.Tools = openAIToolParams(tools)
		switch toolChoice {
		case ToolChoiceAuto, "":
		case ToolChoiceAny:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
		default:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: string(toolChoice)},
				},
			}
		}
	}

	resp, err := p.client().Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, classifyOpenAICompatError(p.providerName, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, newError(p.providerName, "no choices in response")
	}

	choice := resp.Choices[0]
	var toolCalls []ToolCall
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"raw": tc.Function.Arguments}
		}
		toolCalls = append(toolCalls, ToolCall{ToolName: tc.Function.Name, Arguments: args})
	}

	return Response{
		Content:  choice.Message.Content,
		Model:    resp.Model,
		Provider: p.providerName,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		ToolCalls: toolCalls,
	}, nil
}

// classifyOpenAICompatError maps the SDK's *openai.Error onto the provider
// error taxonomy (§7 "ProviderDegraded").
func classifyOpenAICompatError(providerName string, err error) error {
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		switch oerr.StatusCode {
		case http.StatusTooManyRequests:
			return newRateLimitError(providerName, "rate limit exceeded")
		case http.StatusUnauthorized:
			return newAuthenticationError(providerName, "authentication failed")
		}
		return newError(providerName, "%s", oerr.Error())
	}
	return newError(providerName, "request failed: %v", err)
}

// openAIToolParams translates the shared ToolDefinition schema into the
// SDK's function-tool param, mirroring
// basegraphhq-basegraph/relay/common/llm/openai.go's convertTools.
func openAIToolParams(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		var params shared.FunctionParameters
		if t.Parameters != nil {
			data, _ := json.Marshal(t.Parameters)
			_ = json.Unmarshal(data, &params)
		}
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		}
	}
	return out
}
