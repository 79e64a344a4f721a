package agent

// decisionSchema is the output contract of every think call. Models are
// prompted with snake_case keys; ParseDecision also tolerates camelCase.
func decisionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief reasoning about the current state and what to do next.",
			},
			"tool_calls": map[string]any{
				"type":        "array",
				"description": "Tools to invoke this iteration. Empty when no tools are needed.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":    map[string]any{"type": "string"},
						"name":  map[string]any{"type": "string"},
						"input": map[string]any{"type": "object"},
					},
					"required": []string{"name"},
				},
			},
			"memory_reads": map[string]any{
				"type":        "array",
				"description": "Memory keys to load before the next iteration.",
				"items":       map[string]any{"type": "string"},
			},
			"memory_updates": map[string]any{
				"type":        "object",
				"description": "Memory entries to store, keyed by entry name.",
			},
			"is_complete": map[string]any{
				"type":        "boolean",
				"description": "True when the task is done and no further tool calls are needed.",
			},
			"final_result": map[string]any{
				"description": "The final answer, set only when is_complete is true.",
			},
		},
		"required": []string{"reasoning", "is_complete"},
	}
}
