package provider

// DriverTool is the generator's tool schema: a single array-of-strings
// argument (§4.3 "a single tool whose argument schema is {domains:
// string[]}"). Declared once here and translated by each provider adapter.
var DriverTool = ToolDefinition{
	Name:        "generate_domain_candidates",
	Description: "Generate domain name candidates for a business. Call this tool with your list of suggested domains.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"domains": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of domain candidates (e.g. ['example.com', 'mysite.io']). Each must be a valid domain with TLD.",
			},
		},
		"required": []string{"domains"},
	},
}

// EvaluatorTool mirrors DomainResult's evaluation fields (§4.4).
var EvaluatorTool = ToolDefinition{
	Name:        "evaluate_domains",
	Description: "Evaluate domain candidates for quality, memorability, and brand fit. Call this tool with your evaluations.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"evaluations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"domain":         map[string]any{"type": "string"},
						"score":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						"worth_checking": map[string]any{"type": "boolean"},
						"pronounceable":  map[string]any{"type": "boolean"},
						"memorable":      map[string]any{"type": "boolean"},
						"brand_fit":      map[string]any{"type": "boolean"},
						"email_friendly": map[string]any{"type": "boolean"},
						"flags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"notes":          map[string]any{"type": "string"},
					},
					"required": []string{"domain", "score", "worth_checking"},
				},
			},
		},
		"required": []string{"evaluations"},
	},
}

// openAITool translates a ToolDefinition to OpenAI's function-call wire
// format for Cloudflare Workers AI, which (per the original source) mirrors
// OpenAI's tool-calling shape but has no Go SDK to wire against, unlike the
// DeepSeek/Kimi path in openaicompat.go.
func openAITool(t ToolDefinition) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		},
	}
}

func openAITools(tools []ToolDefinition) []map[string]any {
	out := make([]map[string]any, len(tools))
	for i, t := range tools {
		out[i] = openAITool(t)
	}
	return out
}
