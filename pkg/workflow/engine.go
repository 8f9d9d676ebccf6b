package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/reporover/backend/pkg/agents"
	"github.com/reporover/backend/pkg/logger"
)

var placeholderPattern = regexp.MustCompile(`^\{\{\s*([^{}\s]+)\s*\}\}$`)

// Engine executes workflows step by step against an agent registry. Each
// execution owns a private copy of the initial context; steps communicate
// only through that context.
type Engine struct {
	workflows *Registry
	agents    *agents.Registry
}

func NewEngine(workflows *Registry, agentRegistry *agents.Registry) *Engine {
	return &Engine{
		workflows: workflows,
		agents:    agentRegistry,
	}
}

// Execute runs the named workflow. Steps run strictly in order. A step
// naming an unregistered agent is logged and skipped; a placeholder that
// cannot be resolved binds nil and the step still runs. A step whose agent
// returns an error aborts the workflow and the error propagates. The final
// context is the workflow's result.
func (e *Engine) Execute(ctx context.Context, name string, initialContext map[string]any) (map[string]any, error) {
	wf, err := e.workflows.Get(name)
	if err != nil {
		return nil, err
	}

	logger.Info("[Workflow][Execute] Starting workflow", "name", wf.Name, "steps", len(wf.Steps))

	wctx := deepCopyMap(wf.InitialContext)
	for key, value := range deepCopyMap(initialContext) {
		wctx[key] = value
	}

	for _, step := range wf.Steps {
		agent, ok := e.agents.Get(step.Agent)
		if !ok {
			logger.Error("[Workflow][Execute] Agent not registered, skipping step", "workflow", wf.Name, "step", step.Name, "agent", step.Agent)
			continue
		}

		input := e.resolveInput(step, wctx)

		logger.Debug("[Workflow][Execute] Running step", "workflow", wf.Name, "step", step.Name, "agent", step.Agent)
		result, err := agent.Execute(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("workflow %s step %s: %w", wf.Name, step.Name, err)
		}

		if step.Output != "" {
			wctx[step.Output] = unwrapResult(step, result)
		}
	}

	logger.Info("[Workflow][Execute] Workflow finished", "name", wf.Name)
	return wctx, nil
}

// resolveInput builds the agent input for a step. Literal values pass
// through unchanged; placeholder strings are resolved by dotted-path lookup
// into the context. A failed resolution binds nil so the step still runs
// with a degraded input.
func (e *Engine) resolveInput(step Step, wctx map[string]any) map[string]any {
	input := make(map[string]any, len(step.Input))
	for key, value := range step.Input {
		str, isString := value.(string)
		if !isString {
			input[key] = value
			continue
		}
		match := placeholderPattern.FindStringSubmatch(str)
		if match == nil {
			input[key] = value
			continue
		}

		resolved, err := resolvePath(wctx, match[1])
		if err != nil {
			logger.Error("[Workflow][Execute] Placeholder resolution failed", "step", step.Name, "param", key, "path", match[1], "error", err)
			input[key] = nil
			continue
		}
		input[key] = resolved
	}
	return input
}

// resolvePath indexes successively into nested maps by splitting the dotted
// path.
func resolvePath(wctx map[string]any, path string) (any, error) {
	var current any = wctx
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("segment %q: value is not a map", part)
		}
		current, ok = node[part]
		if !ok {
			return nil, fmt.Errorf("segment %q: key not found", part)
		}
	}
	return current, nil
}

// unwrapResult narrows retriever-style results before they are stored, so
// downstream steps see the retrieved payload instead of the full status
// envelope.
func unwrapResult(step Step, result map[string]any) map[string]any {
	if !strings.Contains(step.Agent, "retriever") {
		return result
	}
	if _, ok := result["collected_data"]; !ok {
		return result
	}
	return map[string]any{
		"collected_data": result["collected_data"],
		"final_output":   result["final_output"],
	}
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		copied := make([]any, len(typed))
		for i, elem := range typed {
			copied[i] = deepCopyValue(elem)
		}
		return copied
	default:
		return value
	}
}
