package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CloudflareProvider calls the Cloudflare Workers AI REST API, account-scoped
// by bearer token (grounded on
// original_source/grove_domain_tool/providers/cloudflare.py).
const defaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4/accounts"

type CloudflareProvider struct {
	apiToken     string
	accountID    string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

// NewCloudflareProvider constructs a Cloudflare Workers AI provider.
func NewCloudflareProvider(apiToken, accountID, defaultModel string) *CloudflareProvider {
	if defaultModel == "" {
		defaultModel = "@cf/meta/llama-4-scout-17b-16e-instruct"
	}
	return &CloudflareProvider{
		apiToken:     apiToken,
		accountID:    accountID,
		defaultModel: defaultModel,
		baseURL:      defaultCloudflareBaseURL,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *CloudflareProvider) Name() string         { return "cloudflare" }
func (p *CloudflareProvider) DefaultModel() string { return p.defaultModel }
func (p *CloudflareProvider) SupportsTools() bool  { return true }

func (p *CloudflareProvider) url(model string) string {
	return fmt.Sprintf("%s/%s/ai/run/%s", p.baseURL, p.accountID, model)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cloudflareRequest struct {
	Messages    []chatMessage    `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature"`
	Tools       []map[string]any `json:"tools,omitempty"`
}

type cloudflareToolCall struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type cloudflareResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		Response  string               `json:"response"`
		ToolCalls []cloudflareToolCall `json:"tool_calls"`
		Usage     *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	} `json:"result"`
}

func (p *CloudflareProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, nil, opts)
}

func (p *CloudflareProvider) GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	return p.call(ctx, prompt, tools, opts)
}

func (p *CloudflareProvider) call(ctx context.Context, prompt string, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	if p.apiToken == "" {
		return Response{}, newAuthenticationError("cloudflare", "CLOUDFLARE_API_TOKEN not configured")
	}
	if p.accountID == "" {
		return Response{}, newAuthenticationError("cloudflare", "CLOUDFLARE_ACCOUNT_ID not configured")
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	var messages []chatMessage
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := cloudflareRequest{
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if len(tools) > 0 {
		req.Tools = openAITools(tools) // Cloudflare's tool shape mirrors OpenAI's
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, newError("cloudflare", "encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(model), bytes.NewReader(body))
	if err != nil {
		return Response{}, newError("cloudflare", "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, newError("cloudflare", "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, newError("cloudflare", "read response: %v", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, newRateLimitError("cloudflare", "rate limit exceeded")
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return Response{}, newAuthenticationError("cloudflare", "authentication failed")
	}
	if resp.StatusCode >= 300 {
		return Response{}, newError("cloudflare", "HTTP %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	var parsed cloudflareResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Response{}, newError("cloudflare", "decode response: %v", err)
	}
	if !parsed.Success {
		msg := "unknown error"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Message
		}
		return Response{}, newError("cloudflare", "%s", msg)
	}

	var toolCalls []ToolCall
	for _, tc := range parsed.Result.ToolCalls {
		args := map[string]any{}
		switch a := tc.Arguments.(type) {
		case map[string]any:
			args = a
		case string:
			if err := json.Unmarshal([]byte(a), &args); err != nil {
				args = map[string]any{"raw": a}
			}
		}
		toolCalls = append(toolCalls, ToolCall{ToolName: tc.Name, Arguments: args})
	}

	var usage Usage
	if parsed.Result.Usage != nil {
		usage = Usage{
			InputTokens:  parsed.Result.Usage.PromptTokens,
			OutputTokens: parsed.Result.Usage.CompletionTokens,
		}
	}

	return Response{
		Content:   parsed.Result.Response,
		Model:     model,
		Provider:  p.Name(),
		Usage:     usage,
		ToolCalls: toolCalls,
	}, nil
}
