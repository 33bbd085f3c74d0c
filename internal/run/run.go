package run

import (
	"NoccStacks-Crew/internal/crew"
	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/llm"
	"NoccStacks-Crew/internal/proofs"
)

// Status 表示 run 在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ExecutionResult 保存一次 kickoff 的产物。
type ExecutionResult struct {
	Tasks  []crew.TaskOutput `json:"tasks"`
	Final  string            `json:"final"`
	Usage  llm.Usage         `json:"usage"`
	Proofs []proofs.Proof    `json:"proofs,omitempty"`
}

// Run 描述一次排队执行的 crew kickoff。
type Run struct {
	ID                 string            `json:"id"`
	ProjectName        string            `json:"project_name"`
	ProjectDescription string            `json:"project_description"`
	Inputs             map[string]string `json:"inputs,omitempty"`
	Status             Status            `json:"status"`
	Attempts           int               `json:"attempts"`
	MaxRetries         int               `json:"max_retries"`
	LastError          string            `json:"last_error,omitempty"`
	ErrorCode          string            `json:"error_code,omitempty"`
	Result             *ExecutionResult  `json:"result,omitempty"`
	CreatedAt          int64             `json:"created_at"`
	UpdatedAt          int64             `json:"updated_at"`
}

// KickoffRequest 是提交 run 的参数。Inputs 中的键会覆盖 crew 默认输入。
type KickoffRequest struct {
	ID                 string            `json:"id,omitempty" validate:"omitempty,max=64"`
	ProjectName        string            `json:"project_name,omitempty" validate:"max=200"`
	ProjectDescription string            `json:"project_description,omitempty" validate:"max=20000"`
	Inputs             map[string]string `json:"inputs,omitempty" validate:"dive,keys,required,max=64,endkeys"`
}

const (
	CodeRunNotFound   xerrors.Code = "RUN_NOT_FOUND"
	CodeRunConflict   xerrors.Code = "RUN_CONFLICT"
	CodeRunCompleted  xerrors.Code = "RUN_COMPLETED"
	CodeRunExhausted  xerrors.Code = "RUN_RETRIES_EXHAUSTED"
	CodeRunValidation xerrors.Code = "RUN_VALIDATION_FAILED"
	CodeRunPublish    xerrors.Code = "RUN_PUBLISH_FAILED"
	CodeRunProcessing xerrors.Code = "RUN_PROCESSING_FAILED"
)

var (
	// ErrRunNotFound 表示指定的 run 不存在。
	ErrRunNotFound = xerrors.New(CodeRunNotFound, "run not found")
	// ErrRunConflict 表示 run 在当前状态下无法执行所请求的操作。
	ErrRunConflict = xerrors.New(CodeRunConflict, "run conflict")
	// ErrRunCompleted 表示 run 已经成功完成。
	ErrRunCompleted = xerrors.New(CodeRunCompleted, "run already completed")
	// ErrRunExhausted 表示重试次数已耗尽。
	ErrRunExhausted = xerrors.New(CodeRunExhausted, "run retries exhausted")
)

func init() {
	xerrors.Register(CodeRunNotFound, xerrors.Attributes{Message: "run not found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeRunConflict, xerrors.Attributes{Message: "run conflict", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeRunCompleted, xerrors.Attributes{Message: "run already completed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeRunExhausted, xerrors.Attributes{Message: "run retries exhausted", Severity: xerrors.SeverityCritical})
	xerrors.Register(CodeRunValidation, xerrors.Attributes{Message: "run validation failed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeRunPublish, xerrors.Attributes{Message: "failed to publish run", Severity: xerrors.SeverityCritical, Retryable: true})
	xerrors.Register(CodeRunProcessing, xerrors.Attributes{Message: "run execution failed", Severity: xerrors.SeverityWarning, Retryable: true})
}

// IsValidStatus 检查状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneInputs(inputs map[string]string) map[string]string {
	if inputs == nil {
		return nil
	}
	cloned := make(map[string]string, len(inputs))
	for k, v := range inputs {
		cloned[k] = v
	}
	return cloned
}

func cloneRun(r *Run) *Run {
	clone := *r
	clone.Inputs = cloneInputs(r.Inputs)
	if r.Result != nil {
		result := *r.Result
		result.Tasks = append([]crew.TaskOutput(nil), r.Result.Tasks...)
		result.Proofs = append([]proofs.Proof(nil), r.Result.Proofs...)
		clone.Result = &result
	}
	return &clone
}
