package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
)

const exhaustedAnswer = "I reached the current execution limits. Please refine the request and try again."

// AgentLimits bounds one tool-agent run.
type AgentLimits struct {
	MaxIterations int
	StepTimeout   time.Duration
	ToolTimeout   time.Duration
}

func (l AgentLimits) withDefaults() AgentLimits {
	if l.MaxIterations <= 0 {
		l.MaxIterations = 6
	}
	if l.StepTimeout <= 0 {
		l.StepTimeout = 30 * time.Second
	}
	if l.ToolTimeout <= 0 {
		l.ToolTimeout = 30 * time.Second
	}
	return l
}

type agentStep struct {
	Type   string `json:"type"`
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Answer string `json:"answer"`
}

// ToolAgent runs one destination's think/act loop: the model either calls one
// of the bound tools or emits a final answer, with every tool output appended
// to the conversation as a tool message.
type ToolAgent struct {
	generator ports.TextGenerator
	tools     map[string]ports.Tool
	toolOrder []string
	system    string
	limits    AgentLimits
	logger    *slog.Logger
}

func NewToolAgent(generator ports.TextGenerator, tools []ports.Tool, system string, limits AgentLimits, logger *slog.Logger) *ToolAgent {
	byName := make(map[string]ports.Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
		order = append(order, tool.Name())
	}
	return &ToolAgent{
		generator: generator,
		tools:     byName,
		toolOrder: order,
		system:    system,
		limits:    limits.withDefaults(),
		logger:    logger,
	}
}

// Execute extends the conversation with tool messages and a final assistant
// answer. The input slice is never mutated.
func (a *ToolAgent) Execute(ctx context.Context, messages []domain.Message) ([]domain.Message, error) {
	out := append([]domain.Message(nil), messages...)

	for i := 1; i <= a.limits.MaxIterations; i++ {
		step, err := a.nextStep(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("agent step %d: %w", i, err)
		}

		switch step.Type {
		case "final":
			answer := strings.TrimSpace(step.Answer)
			if answer == "" {
				answer = exhaustedAnswer
			}
			return append(out, domain.Message{Role: domain.RoleAssistant, Content: answer}), nil
		case "tool":
			out = append(out, a.callTool(ctx, step))
		default:
			a.logger.Warn("unsupported agent step type", "type", step.Type)
			out = append(out, domain.Message{
				Role:     domain.RoleTool,
				ToolName: step.Tool,
				Content:  fmt.Sprintf(`{"error":"unsupported step type %q"}`, step.Type),
			})
		}
	}

	return append(out, domain.Message{Role: domain.RoleAssistant, Content: exhaustedAnswer}), nil
}

func (a *ToolAgent) nextStep(ctx context.Context, messages []domain.Message) (agentStep, error) {
	stepCtx, cancel := context.WithTimeout(ctx, a.limits.StepTimeout)
	raw, err := a.generator.GenerateJSONFromPrompt(stepCtx, a.buildPrompt(messages))
	cancel()
	if err != nil {
		return agentStep{}, err
	}

	step, err := parseAgentStep(raw)
	if err == nil {
		return step, nil
	}

	// One repair attempt before giving up on the malformed step.
	repairCtx, cancel := context.WithTimeout(ctx, a.limits.StepTimeout)
	repaired, repairErr := a.generator.GenerateJSONFromPrompt(repairCtx, buildRepairPrompt(raw))
	cancel()
	if repairErr != nil {
		return agentStep{}, repairErr
	}
	return parseAgentStep(repaired)
}

func (a *ToolAgent) callTool(ctx context.Context, step agentStep) domain.Message {
	tool, ok := a.tools[step.Tool]
	if !ok {
		return domain.Message{
			Role:     domain.RoleTool,
			ToolName: step.Tool,
			Content:  fmt.Sprintf(`{"error":"unknown tool %q"}`, step.Tool),
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, a.limits.ToolTimeout)
	output, err := tool.Call(toolCtx, step.Input)
	cancel()
	if err != nil {
		a.logger.Warn("tool call failed", "tool", step.Tool, "error", err)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		output = string(payload)
	}
	return domain.Message{Role: domain.RoleTool, ToolName: step.Tool, Content: output}
}

func (a *ToolAgent) buildPrompt(messages []domain.Message) string {
	var tools strings.Builder
	for _, name := range a.toolOrder {
		fmt.Fprintf(&tools, "- %s: %s\n", name, a.tools[name].Description())
	}

	var convo strings.Builder
	for _, msg := range messages {
		if msg.Role == domain.RoleTool {
			fmt.Fprintf(&convo, "tool[%s]: %s\n", msg.ToolName, msg.Content)
			continue
		}
		fmt.Fprintf(&convo, "%s: %s\n", msg.Role, msg.Content)
	}

	return fmt.Sprintf(`%s

Available tools:
%s
Return ONLY a valid JSON object with one step.
Schema:
{"type":"tool","tool":"<tool name>","input":"<tool input string>"}
or
{"type":"final","answer":"<answer for the user>"}

Conversation so far:
%s`, a.system, tools.String(), convo.String())
}

func parseAgentStep(raw string) (agentStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return agentStep{}, fmt.Errorf("empty agent step")
	}
	var step agentStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return agentStep{}, fmt.Errorf("unmarshal agent step: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.TrimSpace(step.Tool)
	return step, nil
}

func buildRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object for this schema:
{"type":"tool","tool":"<tool name>","input":"<tool input string>"}
or {"type":"final","answer":"<answer for the user>"}
Return only JSON.
Text:
%s`, raw)
}
