package crew

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/knowledge"
	"NoccStacks-Crew/internal/llm"
	"NoccStacks-Crew/internal/tools"
)

const defaultMaxIterations = 6

// Agent 按角色定义驱动大模型，并在回复中执行工具调用。
type Agent struct {
	name          string
	def           AgentDef
	llm           llm.Client
	tools         *tools.Registry
	knowledge     knowledge.Provider
	maxIterations int
	llmTimeout    time.Duration
	log           *slog.Logger
}

// TaskInput 是交给智能体执行的一个任务。
type TaskInput struct {
	Name           string
	Description    string
	ExpectedOutput string
	Context        string
}

// ToolInvocation 记录一次工具调用及其结果。
type ToolInvocation struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// AgentOutput 是智能体完成任务后的结果。
type AgentOutput struct {
	Output     string           `json:"output"`
	Raw        string           `json:"raw"`
	Iterations int              `json:"iterations"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	Usage      llm.Usage        `json:"usage"`
}

// NewAgent 创建智能体。registry 为 nil 时智能体不使用工具。
func NewAgent(name string, def AgentDef, client llm.Client, registry *tools.Registry, opts ...Option) *Agent {
	settings := newSettings(opts)
	a := &Agent{
		name:          name,
		def:           def,
		llm:           client,
		tools:         registry,
		knowledge:     settings.knowledge,
		maxIterations: settings.maxIterations,
		llmTimeout:    settings.llmTimeout,
		log:           settings.log.With(slog.String("agent", name)),
	}
	if def.MaxIterations > 0 {
		a.maxIterations = def.MaxIterations
	}
	if a.maxIterations <= 0 {
		a.maxIterations = defaultMaxIterations
	}
	return a
}

// Name 返回智能体标识。
func (a *Agent) Name() string {
	return a.name
}

// Execute 执行任务：模型回复包含工具调用时执行并回传结果，直到回复不再调用工具
// 或达到最大轮数。达到上限后要求模型直接给出最终答案。
func (a *Agent) Execute(ctx context.Context, task TaskInput) (*AgentOutput, error) {
	if a.llm == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}

	req := llm.Request{
		System:   a.systemPrompt(task),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: taskPrompt(task)}},
	}
	out := &AgentOutput{}

	for out.Iterations < a.maxIterations {
		resp, err := a.generate(ctx, req)
		if err != nil {
			return nil, err
		}
		out.Iterations++
		out.Usage.Add(resp.Usage)

		calls := ExtractToolCalls(resp.Content)
		if len(calls) == 0 || a.tools == nil {
			out.Raw = resp.Content
			out.Output = FinalAnswer(resp.Content)
			return out, nil
		}

		results := make([]ToolResult, 0, len(calls))
		for _, call := range calls {
			inv := a.invoke(ctx, call)
			out.ToolCalls = append(out.ToolCalls, inv)
			output := inv.Output
			if inv.Error != "" {
				output = "error: " + inv.Error
			}
			results = append(results, ToolResult{Tool: call.Tool, Output: output})
		}
		req.Messages = append(req.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: FormatToolResults(results)},
		)
	}

	a.log.Warn("达到最大工具调用轮数，要求模型直接给出答案", slog.Int("iterations", out.Iterations))
	req.Messages = append(req.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: "You have reached the maximum number of tool calls. Do not call any more tools; give your best complete answer now inside <final_answer></final_answer>.",
	})
	resp, err := a.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	out.Iterations++
	out.Usage.Add(resp.Usage)
	out.Raw = resp.Content
	out.Output = FinalAnswer(resp.Content)
	return out, nil
}

func (a *Agent) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	callCtx, cancel := llm.WithTimeout(ctx, a.llmTimeout)
	defer cancel()
	resp, err := a.llm.Generate(callCtx, req)
	if err != nil {
		return nil, llm.ClassifyError("LLM", err)
	}
	return resp, nil
}

func (a *Agent) invoke(ctx context.Context, call ToolCall) ToolInvocation {
	inv := ToolInvocation{Tool: call.Tool, Input: call.Parameters}
	started := time.Now()
	output, err := a.tools.Execute(ctx, call.Tool, call.Parameters)
	if err != nil {
		inv.Error = err.Error()
		a.log.Info("工具调用失败", slog.String("tool", call.Tool), slog.String("error", err.Error()))
		return inv
	}
	inv.Output = output
	a.log.Debug("工具调用完成", slog.String("tool", call.Tool), slog.Duration("elapsed", time.Since(started)))
	return inv
}

func (a *Agent) systemPrompt(task TaskInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n%s\n\nYour personal goal is: %s\n", a.def.Role, a.def.Backstory, a.def.Goal)

	if a.knowledge != nil {
		if snippets := a.knowledge.Query(a.def.Goal, task.Description); len(snippets) > 0 {
			b.WriteString("\nReference knowledge:\n")
			for idx, s := range snippets {
				fmt.Fprintf(&b, "[%d] %s: %s\n", idx+1, strings.TrimSpace(s.Title), strings.TrimSpace(s.Content))
			}
		}
	}

	b.WriteString("\n")
	if a.tools != nil && len(a.tools.Descriptors()) > 0 {
		fmt.Fprintf(&b, toolInstructions, toolCatalogue(a.tools.Descriptors()))
	} else {
		b.WriteString(noToolInstructions)
	}
	return b.String()
}

func taskPrompt(task TaskInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n\nThis is the expected criteria for your final answer: %s\n", task.Description, task.ExpectedOutput)
	if ctx := strings.TrimSpace(task.Context); ctx != "" {
		fmt.Fprintf(&b, "\nThis is the context you're working with:\n%s\n", ctx)
	}
	b.WriteString("\nBegin! This is VERY important to you, use the tools available and give your best Final Answer.")
	return b.String()
}
