package agent

import (
	"fmt"

	"github.com/opper-ai/opper-agent-go/core"
)

// AsTool wraps the agent as a core.Tool so a parent agent can delegate to it.
// Each delegated call runs a full, isolated invocation; the child's usage is
// folded into the parent's ExecutionContext under the child agent's name.
func (a *Agent) AsTool(optFns ...func(o *AsToolOptions)) core.Tool {
	opts := AsToolOptions{
		Name:        a.name,
		Description: a.description,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Description == "" {
		opts.Description = fmt.Sprintf("Delegate a task to the %s agent.", a.name)
	}
	return &agentTool{agent: a, name: opts.Name, description: opts.Description}
}

// AsToolOptions override the delegate tool's registry identity.
type AsToolOptions struct {
	Name        string
	Description string
}

type agentTool struct {
	agent       *Agent
	name        string
	description string
}

func (t *agentTool) Name() string        { return t.name }
func (t *agentTool) Description() string { return t.description }

func (t *agentTool) InputSchema() map[string]any {
	if t.agent.inputSchema != nil {
		return t.agent.inputSchema
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The task to hand to the agent.",
			},
		},
		"required": []string{"task"},
	}
}

func (t *agentTool) Execute(tc *core.ToolContext, input map[string]any) (any, error) {
	var childInput any = input
	if t.agent.inputSchema == nil {
		if task, ok := input["task"]; ok && len(input) == 1 {
			childInput = task
		}
	}

	result, childCtx, err := t.agent.run(tc.Context(), childInput)
	if tc.Execution != nil && childCtx != nil {
		tc.Execution.AddUsageFromSource(t.agent.name, childCtx.Usage())
	}
	return result, err
}

// GraphNode is one agent in a delegation tree.
type GraphNode struct {
	Name      string      `json:"name"`
	ToolNames []string    `json:"tools,omitempty"`
	Delegates []GraphNode `json:"delegates,omitempty"`
}

// Graph returns the delegation tree rooted at this agent. Cycles are broken
// by refusing to re-enter an agent already on the path.
func (a *Agent) Graph() GraphNode {
	return a.graph(map[*Agent]bool{})
}

func (a *Agent) graph(visited map[*Agent]bool) GraphNode {
	visited[a] = true
	node := GraphNode{Name: a.name}

	for _, t := range a.registry.Tools() {
		if at, ok := t.(*agentTool); ok {
			if visited[at.agent] {
				continue
			}
			node.Delegates = append(node.Delegates, at.agent.graph(visited))
			continue
		}
		node.ToolNames = append(node.ToolNames, t.Name())
	}
	delete(visited, a)
	return node
}
