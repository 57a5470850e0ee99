// Package orchestrator coordinates multiple agent sessions behind a
// supervisor. The supervisor is itself a conversation loop whose only
// capability is delegating sub-tasks to registered specialist agents.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nwiesmann/faktotum/pkg/agent"
	"github.com/nwiesmann/faktotum/pkg/errors"
	"github.com/nwiesmann/faktotum/pkg/llm"
	"github.com/nwiesmann/faktotum/pkg/telemetry"
	"github.com/nwiesmann/faktotum/pkg/tool"
)

// DelegateToolName is the name of the single synthetic tool the
// supervisor's model sees.
const DelegateToolName = "delegate"

// Supervisor runs a conversation loop that hands sub-tasks to a fixed
// set of delegate sessions and folds their answers back into its own
// history. Delegates are invoked strictly one at a time.
type Supervisor struct {
	session   *agent.Session
	delegates map[string]*agent.Session
	names     []string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds a supervisor over the given delegates. The delegate
// registry is fixed at construction; opts configure the supervisor's
// own session (prompt, model, retry) and must not include a tool set,
// the supervisor owns its single delegation tool.
func New(name string, provider llm.Provider, delegates []*agent.Session, opts ...agent.Option) (*Supervisor, error) {
	if len(delegates) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "supervisor requires at least one delegate", nil)
	}

	s := &Supervisor{
		delegates: make(map[string]*agent.Session, len(delegates)),
		logger:    slog.Default(),
		tracer:    otel.Tracer("faktotum/orchestrator"),
	}

	for _, d := range delegates {
		if d == nil {
			return nil, errors.New(errors.CodeInvalidInput, "nil delegate session", nil)
		}
		if _, exists := s.delegates[d.Name()]; exists {
			return nil, errors.New(errors.CodeInvalidInput,
				fmt.Sprintf("duplicate delegate %q", d.Name()), nil)
		}
		// Delegates must not be able to delegate themselves; recursion
		// is ruled out at construction, not by configuration discipline.
		for _, tn := range d.Tools() {
			if tn == DelegateToolName {
				return nil, errors.New(errors.CodeInvalidInput,
					fmt.Sprintf("delegate %q exposes a tool named %q", d.Name(), DelegateToolName), nil)
			}
		}
		s.delegates[d.Name()] = d
		s.names = append(s.names, d.Name())
	}
	sort.Strings(s.names)

	registry, err := tool.NewRegistry(s.delegationTool())
	if err != nil {
		return nil, err
	}

	opts = append(opts, agent.WithTools(registry))
	session, err := agent.New(name, provider, opts...)
	if err != nil {
		return nil, err
	}
	s.session = session
	return s, nil
}

// Run executes the supervisor loop for one task and returns the
// composed answer.
func (s *Supervisor) Run(ctx context.Context, task string) (string, error) {
	return s.session.Run(ctx, task)
}

// Delegates returns the sorted names of the registered delegates.
func (s *Supervisor) Delegates() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Supervisor) delegationTool() tool.Tool {
	return tool.NewFunc(DelegateToolName,
		fmt.Sprintf("Delegate a task to a specialized agent. Available agents: %s. Returns the agent's response.", strings.Join(s.names, ", ")),
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent_name": map[string]any{
					"type":        "string",
					"description": "Name of the agent to delegate to.",
					"enum":        s.names,
				},
				"task": map[string]any{
					"type":        "string",
					"description": "The task description for the agent.",
				},
			},
			"required": []string{"agent_name", "task"},
		},
		s.delegate,
	)
}

func (s *Supervisor) delegate(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["agent_name"].(string)
	task, _ := args["task"].(string)

	delegate, known := s.delegates[name]

	ctx, span := s.tracer.Start(ctx, "supervisor.delegate",
		trace.WithAttributes(telemetry.DelegateAttributes(name, known)...))
	defer span.End()

	if !known {
		s.logger.WarnContext(ctx, "supervisor.delegate.unknown",
			"agent", name, "available", s.names)
		return fmt.Sprintf("Error: Unknown agent '%s'. Available agents: %s",
			name, strings.Join(s.names, ", ")), nil
	}

	s.logger.InfoContext(ctx, "supervisor.delegate.start", "agent", name)
	answer, err := delegate.Run(ctx, task)
	if err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "supervisor.delegate.failed",
			"agent", name, "error", err)
		return "", err
	}

	s.logger.InfoContext(ctx, "supervisor.delegate.done", "agent", name)
	return fmt.Sprintf("[%s]: %s", delegate.DisplayName(), answer), nil
}
