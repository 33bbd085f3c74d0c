package llm

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	xerrors "NoccStacks-Crew/internal/errors"
)

// 对话角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 是一条对话消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 描述一次对话补全请求。
type Request struct {
	System   string
	Messages []Message
}

// Usage 记录 token 消耗。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add 累加另一次调用的消耗。
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response 是大模型返回的文本与用量。
type Response struct {
	Content string
	Usage   Usage
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ClassifyError 将 provider 错误映射为统一错误码：超时为 TIMEOUT，
// 其他为 EXECUTOR_FAILURE，二者均可重试。
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeTimeout, err, fmt.Sprintf("调用 %s 超时", provider))
	}
	if stdErrors.Is(err, context.Canceled) {
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, fmt.Sprintf("调用 %s 被取消", provider), xerrors.WithRetryable(false))
	}
	return xerrors.Wrap(xerrors.CodeExecutorFailure, err, fmt.Sprintf("调用 %s 失败", provider))
}

// WithTimeout 为单次调用设置超时，timeout 不大于 0 时不生效。
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
