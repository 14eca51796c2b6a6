package mcp

// allTools lists the tools this server advertises on tools/list.
func allTools() []Tool {
	return []Tool{
		{
			Name: "web_fetch",
			Description: "Fetch one or more URLs and extract readable content. " +
				"Returns title, description, main text, and links per URL. " +
				"Degrades automatically across transport (HTTP/2 to HTTP/1.1) and " +
				"rendering (JavaScript to static) tiers.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"description": "URL or list of URLs to fetch",
						"oneOf": []map[string]any{
							{"type": "string"},
							{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
					"prefer_js_rendering": map[string]any{
						"type":        "boolean",
						"description": "Render with a headless browser when available",
					},
					"timeout_ms": map[string]any{
						"type":        "integer",
						"description": "Hard deadline per fetch attempt in milliseconds",
					},
					"extract_links": map[string]any{
						"type":        "boolean",
						"description": "Include extracted links in the result (default true)",
					},
					"headers": map[string]any{
						"type":        "object",
						"description": "Extra request headers",
						"additionalProperties": map[string]any{
							"type": "string",
						},
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name: "web_search",
			Description: "Search the web and return ranked results with title, " +
				"URL, snippet, and source domain per hit.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search terms",
					},
					"num_results": map[string]any{
						"type":        "integer",
						"description": "Number of results to return (default 15)",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Language restriction code such as en or vi (default en)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: "fetch_status",
			Description: "Report which acquisition tiers are active (HTTP/2, " +
				"JavaScript rendering) without issuing a network fetch.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}
