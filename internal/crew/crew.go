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
	"NoccStacks-Crew/pkg/logger"
)

// DefaultInputs 是未提供输入时使用的示例项目。
var DefaultInputs = map[string]string{
	"project_name": "Newsletter",
	"project_description": "A decentralized newsletter platform built on Stacks blockchain that allows users to subscribe, " +
		"publish content, and manage subscriptions. Features include subscription management, content publishing, " +
		"payment handling, and governance features.",
}

// Option 定义可选的 Crew 与 Agent 配置。
type Option func(*settings)

type settings struct {
	knowledge     knowledge.Provider
	maxIterations int
	llmTimeout    time.Duration
	defaultInputs map[string]string
	log           *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{maxIterations: defaultMaxIterations}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.log == nil {
		s.log = logger.Named("crew")
	}
	return s
}

// WithKnowledgeProvider 配置知识库，用于在推理前补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(s *settings) {
		s.knowledge = provider
	}
}

// WithMaxIterations 设置每个智能体的最大工具调用轮数。
func WithMaxIterations(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithLLMTimeout 设置单次调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.llmTimeout = timeout
		}
	}
}

// WithDefaultInputs 覆盖内置的默认输入，调用方输入仍然优先。
func WithDefaultInputs(inputs map[string]string) Option {
	return func(s *settings) {
		s.defaultInputs = inputs
	}
}

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.log = l
	}
}

// TaskOutput 是单个任务的执行结果。
type TaskOutput struct {
	Name        string           `json:"name"`
	Agent       string           `json:"agent"`
	Description string           `json:"description"`
	Output      string           `json:"output"`
	Iterations  int              `json:"iterations"`
	ToolCalls   []ToolInvocation `json:"tool_calls,omitempty"`
	Usage       llm.Usage        `json:"usage"`
	DurationMS  int64            `json:"duration_ms"`
}

// Result 是一次 kickoff 的完整结果。
type Result struct {
	Inputs map[string]string `json:"inputs"`
	Tasks  []TaskOutput      `json:"tasks"`
	Final  string            `json:"final"`
	Usage  llm.Usage         `json:"usage"`
}

// Crew 按顺序执行任务，每个任务以之前全部任务的输出为上下文。
type Crew struct {
	defs          *Definitions
	agents        map[string]*Agent
	defaultInputs map[string]string
	log           *slog.Logger
}

// New 根据定义创建 Crew。智能体声明的工具必须在 registry 中存在。
func New(defs *Definitions, client llm.Client, registry *tools.Registry, opts ...Option) (*Crew, error) {
	if defs == nil {
		return nil, xerrors.New(CodeConfigInvalid, "缺少 crew 定义")
	}
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	s := newSettings(opts)

	c := &Crew{
		defs:          defs,
		agents:        make(map[string]*Agent, len(defs.Agents)),
		defaultInputs: mergeInputs(DefaultInputs, s.defaultInputs),
		log:           s.log,
	}
	for name, def := range defs.Agents {
		var agentTools *tools.Registry
		if len(def.Tools) > 0 {
			if registry == nil {
				return nil, xerrors.New(CodeConfigInvalid, fmt.Sprintf("智能体 %s 需要工具但未提供工具注册表", name))
			}
			sub, err := registry.Subset(def.Tools...)
			if err != nil {
				return nil, xerrors.Wrap(CodeConfigInvalid, err, fmt.Sprintf("智能体 %s 的工具配置无效", name))
			}
			agentTools = sub
		}
		c.agents[name] = NewAgent(name, def, client, agentTools, opts...)
	}
	return c, nil
}

// Inputs 返回合并默认值后的输入。
func (c *Crew) Inputs(inputs map[string]string) map[string]string {
	return mergeInputs(c.defaultInputs, inputs)
}

// Kickoff 合并输入并依次执行全部任务。
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*Result, error) {
	merged := c.Inputs(inputs)
	result := &Result{Inputs: merged}
	var previous []string

	for _, task := range c.defs.Tasks {
		if err := ctx.Err(); err != nil {
			return result, xerrors.Wrap(xerrors.CodeTimeout, err, "kickoff 被取消", xerrors.WithRetryable(false))
		}

		agent := c.agents[task.Agent]
		def := task.TaskDef.interpolate(merged)
		agent = agent.withDefinition(agent.def.interpolate(merged))

		started := time.Now()
		c.log.Info("开始执行任务", slog.String("task", task.Name), slog.String("agent", task.Agent))
		out, err := agent.Execute(ctx, TaskInput{
			Name:           task.Name,
			Description:    def.Description,
			ExpectedOutput: def.ExpectedOutput,
			Context:        strings.Join(previous, "\n\n"),
		})
		if err != nil {
			c.log.Error("任务执行失败", slog.String("task", task.Name), slog.String("error", err.Error()))
			return result, wrapTaskError(task.Name, err)
		}

		elapsed := time.Since(started)
		c.log.Info("任务完成", slog.String("task", task.Name), slog.Int("iterations", out.Iterations), slog.Duration("elapsed", elapsed))
		result.Tasks = append(result.Tasks, TaskOutput{
			Name:        task.Name,
			Agent:       task.Agent,
			Description: def.Description,
			Output:      out.Output,
			Iterations:  out.Iterations,
			ToolCalls:   out.ToolCalls,
			Usage:       out.Usage,
			DurationMS:  elapsed.Milliseconds(),
		})
		result.Usage.Add(out.Usage)
		result.Final = out.Output
		previous = append(previous, out.Output)
	}
	return result, nil
}

func (a *Agent) withDefinition(def AgentDef) *Agent {
	clone := *a
	clone.def = def
	return &clone
}

func wrapTaskError(task string, err error) error {
	if e, ok := xerrors.From(err); ok {
		return xerrors.Wrap(e.Code(), err, fmt.Sprintf("任务 %s 执行失败", task),
			xerrors.WithRetryable(e.Retryable()), xerrors.WithMetadata("task", task))
	}
	return xerrors.Wrap(xerrors.CodeExecutorFailure, err, fmt.Sprintf("任务 %s 执行失败", task), xerrors.WithMetadata("task", task))
}

func mergeInputs(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
