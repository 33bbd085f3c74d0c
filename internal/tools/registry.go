package tools

import (
	"context"
	"fmt"
	"sync"

	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/observability/metrics"
)

// Registry 保存已注册的工具，按注册顺序列出。
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Executor
	order []string
}

// NewRegistry 创建空的工具注册表。
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Executor)}
}

// Register 注册工具，名称重复时返回错误。
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return fmt.Errorf("工具不能为空")
	}
	name := exec.Descriptor().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("工具 %s 已注册", name))
	}
	r.tools[name] = exec
	r.order = append(r.order, name)
	return nil
}

// Get 返回指定名称的工具。
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.tools[name]
	return exec, ok
}

// Descriptors 返回全部工具描述。
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

// Subset 返回只包含指定工具的新注册表，未知名称返回错误。
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		exec, ok := r.Get(name)
		if !ok {
			return nil, notFound(name)
		}
		if err := sub.Register(exec); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Execute 调用指定工具。
func (r *Registry) Execute(ctx context.Context, name, input string) (string, error) {
	exec, ok := r.Get(name)
	if !ok {
		return "", notFound(name)
	}
	out, err := exec.Execute(ctx, input)
	metrics.ObserveToolCall(name, err != nil)
	return out, err
}

func notFound(name string) error {
	return xerrors.New(CodeToolNotFound, fmt.Sprintf("未找到工具 %s", name), xerrors.WithMetadata("tool", name))
}
