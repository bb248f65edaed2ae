package task

import (
	"context"
	"encoding/json"
	"fmt"

	"go-approvals/internal/features/approval"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// CompletionScript is a tengo program run for every finally approved request.
// It sees `request` and may reassign `title`, `description` and `priority`.
type CompletionScript struct {
	source []byte
}

func NewCompletionScript(source []byte) (*CompletionScript, error) {
	s := &CompletionScript{source: source}
	// Compile once up front so a broken script fails at startup.
	if _, err := s.compile(map[string]any{}, approval.FollowUp{}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CompletionScript) Apply(ctx context.Context, req approval.Request, followUp approval.FollowUp) (approval.FollowUp, error) {
	vars, err := scriptRequest(req)
	if err != nil {
		return followUp, err
	}

	compiled, err := s.compile(vars, followUp)
	if err != nil {
		return followUp, err
	}
	if err := compiled.RunContext(ctx); err != nil {
		return followUp, fmt.Errorf("failed to run completion script: %w", err)
	}

	if v := compiled.Get("title").String(); v != "" {
		followUp.Title = v
	}
	if v := compiled.Get("description").String(); v != "" {
		followUp.Description = v
	}
	if v := compiled.Get("priority").String(); v != "" {
		followUp.Priority = v
	}
	return followUp, nil
}

func (s *CompletionScript) compile(request map[string]any, followUp approval.FollowUp) (*tengo.Compiled, error) {
	script := tengo.NewScript(s.source)
	script.SetImports(stdlib.GetModuleMap("fmt", "text", "math", "times"))

	for name, value := range map[string]any{
		"request":     request,
		"title":       followUp.Title,
		"description": followUp.Description,
		"priority":    followUp.Priority,
	} {
		if err := script.Add(name, value); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion script: %w", err)
	}
	return compiled, nil
}

// scriptRequest flattens the request into values tengo can convert
func scriptRequest(req approval.Request) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var vars map[string]any
	if err := json.Unmarshal(body, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
