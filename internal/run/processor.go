package run

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"NoccStacks-Crew/internal/crew"
	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/observability/metrics"
	"NoccStacks-Crew/internal/proofs"
	"NoccStacks-Crew/pkg/logger"
)

// Executor 定义了处理器所需的 crew 能力。
type Executor interface {
	Kickoff(ctx context.Context, inputs map[string]string) (*crew.Result, error)
}

// Processor 从队列消费 run 并交给 crew 执行。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	attester    *proofs.Attester
	workerCount int
	runTimeout  time.Duration
	logger      *slog.Logger
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = l
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAttester 为成功的 run 附加产物证明。
func WithAttester(attester *proofs.Attester) ProcessorOption {
	return func(p *Processor) {
		p.attester = attester
	}
}

// WithRunTimeout 限制单次 kickoff 的执行时间。
func WithRunTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.runTimeout = timeout
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
		logger:      logger.Named("run"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动消费循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置 run 消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, runID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	run, err := p.store.Claim(ctx, runID)
	if err != nil {
		if stdErrors.Is(err, ErrRunNotFound) || stdErrors.Is(err, ErrRunCompleted) || stdErrors.Is(err, ErrRunExhausted) {
			p.logger.Debug("跳过 run", slog.String("run_id", runID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取 run 失败", slog.Any("error", err), slog.String("run_id", runID))
		return err
	}
	logger.Audit().Info("run 开始执行",
		slog.String("run_id", run.ID),
		slog.String("project_name", run.ProjectName),
		slog.Int("attempt", run.Attempts),
	)

	execCtx := ctx
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}
	result, execErr := p.executor.Kickoff(execCtx, cloneInputs(run.Inputs))
	if execErr != nil {
		if ctx.Err() == nil && stdErrors.Is(execCtx.Err(), context.DeadlineExceeded) &&
			xerrors.CodeOf(execErr) != xerrors.CodeTimeout {
			execErr = xerrors.Wrap(xerrors.CodeTimeout, execErr, fmt.Sprintf("run 执行超过 %s", p.runTimeout))
		}
		return p.handleExecutionFailure(ctx, run, execErr)
	}

	record, err := p.buildResult(result)
	if err != nil {
		return p.handleExecutionFailure(ctx, run, err)
	}
	if err := p.store.MarkSucceeded(ctx, run.ID, record); err != nil {
		p.logger.Error("标记 run 成功状态失败", slog.Any("error", err), slog.String("run_id", run.ID))
		if storeErr := p.store.MarkFailed(ctx, run.ID, CodeRunProcessing, err.Error(), false); storeErr != nil {
			return storeErr
		}
		if pubErr := p.producer.Publish(ctx, run.ID); pubErr != nil {
			return xerrors.Wrap(CodeRunPublish, pubErr, fmt.Sprintf("run %s 在标记成功失败后重投失败", run.ID))
		}
		return nil
	}
	metrics.ObserveRun("succeeded")
	logger.Audit().Info("run 执行成功",
		slog.String("run_id", run.ID),
		slog.String("project_name", run.ProjectName),
		slog.Int("tasks", len(record.Tasks)),
		slog.Int("total_tokens", record.Usage.TotalTokens),
		slog.Int("proofs", len(record.Proofs)),
	)
	return nil
}

func (p *Processor) buildResult(result *crew.Result) (ExecutionResult, error) {
	if result == nil {
		return ExecutionResult{}, nil
	}
	record := ExecutionResult{
		Tasks: result.Tasks,
		Final: result.Final,
		Usage: result.Usage,
	}
	if p.attester == nil {
		return record, nil
	}
	for _, task := range result.Tasks {
		proof, err := p.attester.Attest(task.Name, []byte(task.Output))
		if err != nil {
			return ExecutionResult{}, xerrors.Wrap(CodeRunProcessing, err, "生成产物证明失败", xerrors.WithRetryable(false))
		}
		record.Proofs = append(record.Proofs, proof)
	}
	return record, nil
}

func (p *Processor) handleExecutionFailure(ctx context.Context, run *Run, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeRunProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	terminal := run.Attempts >= run.MaxRetries || !retryable

	if err := p.store.MarkFailed(ctx, run.ID, code, execErr.Error(), terminal); err != nil {
		p.logger.Error("标记 run 失败状态出错", slog.Any("error", err), slog.String("run_id", run.ID))
		return err
	}
	logger.Audit().Warn("run 执行失败",
		slog.String("run_id", run.ID),
		slog.Bool("terminal", terminal),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", run.Attempts),
		slog.Int("max_retries", run.MaxRetries),
	)
	if terminal {
		metrics.ObserveRun("failed")
		return nil
	}
	metrics.ObserveRun("retried")
	if err := p.producer.Publish(ctx, run.ID); err != nil {
		return xerrors.Wrap(CodeRunPublish, err, fmt.Sprintf("run %s 重投失败", run.ID))
	}
	p.logger.Debug("run 已重新排队", slog.String("run_id", run.ID), slog.Int("attempts", run.Attempts))
	return nil
}
