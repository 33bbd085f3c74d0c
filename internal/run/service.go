package run

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/pkg/logger"
)

const (
	inputProjectName        = "project_name"
	inputProjectDescription = "project_description"
)

// Service 负责 run 的创建与查询。
type Service struct {
	store         Store
	producer      Producer
	maxRetries    int
	defaultInputs map[string]string
	validate      *validator.Validate
}

// ServiceOption 定义可选配置。
type ServiceOption func(*Service)

// WithDefaultInputs 设置提交时合并的默认输入，请求中的值优先。
func WithDefaultInputs(inputs map[string]string) ServiceOption {
	return func(s *Service) {
		s.defaultInputs = cloneInputs(inputs)
	}
}

// NewService 构造 run 服务。
func NewService(store Store, producer Producer, maxRetries int, opts ...ServiceOption) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	s := &Service{
		store:      store,
		producer:   producer,
		maxRetries: maxRetries,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit 创建一个新的 run 并推送到队列。携带已存在的 ID 时直接返回已有记录。
func (s *Service) Submit(ctx context.Context, req KickoffRequest) (*Run, error) {
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "run 服务未初始化")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, xerrors.Wrap(CodeRunValidation, err, "kickoff 参数无效")
	}

	runID := strings.TrimSpace(req.ID)
	if runID != "" {
		existing, err := s.store.Get(ctx, runID)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, ErrRunNotFound) {
			return nil, err
		}
	} else {
		runID = uuid.NewString()
	}

	inputs := s.resolveInputs(req)
	run := &Run{
		ID:                 runID,
		ProjectName:        inputs[inputProjectName],
		ProjectDescription: inputs[inputProjectDescription],
		Inputs:             inputs,
		Status:             StatusPending,
		MaxRetries:         s.maxRetries,
	}
	if err := s.store.Create(ctx, run); err != nil {
		if stdErrors.Is(err, ErrRunConflict) {
			if existing, getErr := s.store.Get(ctx, runID); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, runID); err != nil {
		logger.L().Error("run 入队失败", slog.Any("error", err), slog.String("run_id", runID))
		wrapped := xerrors.Wrap(CodeRunPublish, err, "发布 run 到队列失败")
		_ = s.store.MarkFailed(ctx, runID, CodeRunPublish, wrapped.Error(), true)
		return nil, wrapped
	}
	logger.Audit().Info("run 已入队",
		slog.String("run_id", runID),
		slog.String("project_name", run.ProjectName),
		slog.Int("max_retries", run.MaxRetries),
	)
	return run, nil
}

func (s *Service) resolveInputs(req KickoffRequest) map[string]string {
	inputs := cloneInputs(s.defaultInputs)
	if inputs == nil {
		inputs = make(map[string]string, len(req.Inputs)+2)
	}
	for k, v := range req.Inputs {
		inputs[k] = v
	}
	if name := strings.TrimSpace(req.ProjectName); name != "" {
		inputs[inputProjectName] = name
	}
	if desc := strings.TrimSpace(req.ProjectDescription); desc != "" {
		inputs[inputProjectDescription] = desc
	}
	return inputs
}

// Get 返回指定 run。
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "run 存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的 run。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "run 存储未初始化")
	}
	return s.store.List(ctx, BuildListOptions(opts...))
}

// Stats 返回符合过滤条件的统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (Stats, error) {
	if s.store == nil {
		return Stats{}, xerrors.New(xerrors.CodeInitializationFailure, "run 存储未初始化")
	}
	return s.store.Stats(ctx, BuildListOptions(opts...))
}

// Close 释放存储与队列。
func (s *Service) Close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	if s.producer != nil {
		err = stdErrors.Join(err, s.producer.Close())
	}
	return err
}

// WaitUntilCompleted 轮询直到 run 进入 succeeded 或 failed。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Run, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.Status == StatusSucceeded || run.Status == StatusFailed {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
