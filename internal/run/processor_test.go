package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"NoccStacks-Crew/internal/crew"
	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/llm"
	"NoccStacks-Crew/internal/proofs"
)

type fakeCrew struct {
	calls   atomic.Int32
	latency time.Duration
	fail    func(call int32) error
}

func (f *fakeCrew) Kickoff(ctx context.Context, inputs map[string]string) (*crew.Result, error) {
	call := f.calls.Add(1)
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return nil, err
		}
	}
	out := "plan for " + inputs["project_name"]
	return &crew.Result{
		Inputs: inputs,
		Tasks: []crew.TaskOutput{
			{Name: "analyze_project", Agent: "project_manager", Output: out},
			{Name: "create_tests", Agent: "testing_agent", Output: "describe(\"x\")"},
		},
		Final: "describe(\"x\")",
		Usage: llm.Usage{TotalTokens: 42},
	}, nil
}

type harness struct {
	store   *MemoryStore
	service *Service
	crew    *fakeCrew
	cancel  context.CancelFunc
}

func startHarness(t *testing.T, fc *fakeCrew, maxRetries int, opts ...ProcessorOption) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore()
	queue := NewMemoryQueue(256)
	service := NewService(store, queue, maxRetries)
	processor := NewProcessor(fc, store, queue, queue, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{store: store, service: service, crew: fc, cancel: cancel}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProcessorHandlesConcurrentRuns(t *testing.T) {
	fc := &fakeCrew{latency: 5 * time.Millisecond}
	h := startHarness(t, fc, 3, WithWorkerCount(8))
	ctx := context.Background()

	total := 100
	for i := 0; i < total; i++ {
		if _, err := h.service.Submit(ctx, KickoffRequest{ProjectName: fmt.Sprintf("p-%d", i)}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitFor(t, "all runs to succeed", func() bool {
		stats, _ := h.service.Stats(ctx)
		return stats.Succeeded == total
	})
	if int(fc.calls.Load()) != total {
		t.Fatalf("expected %d kickoffs, got %d", total, fc.calls.Load())
	}
}

func TestProcessorRetriesRetryableFailures(t *testing.T) {
	fc := &fakeCrew{fail: func(call int32) error {
		if call == 1 {
			return xerrors.New(xerrors.CodeTimeout, "llm timed out")
		}
		return nil
	}}
	h := startHarness(t, fc, 3)
	ctx := context.Background()

	submitted, err := h.service.Submit(ctx, KickoffRequest{ProjectName: "Vault"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "retry to succeed", func() bool {
		r, _ := h.service.Get(ctx, submitted.ID)
		return r != nil && r.Status == StatusSucceeded
	})
	r, _ := h.service.Get(ctx, submitted.ID)
	if r.Attempts != 2 || r.ErrorCode != "" || r.Result == nil {
		t.Fatalf("unexpected run: %+v", r)
	}
	if r.Result.Tasks[0].Output != "plan for Vault" || r.Result.Usage.TotalTokens != 42 {
		t.Fatalf("unexpected result: %+v", r.Result)
	}
}

func TestProcessorStopsOnNonRetryableFailure(t *testing.T) {
	fc := &fakeCrew{fail: func(int32) error {
		return xerrors.New(crew.CodeConfigInvalid, "unknown agent")
	}}
	h := startHarness(t, fc, 3)
	ctx := context.Background()

	submitted, _ := h.service.Submit(ctx, KickoffRequest{})
	waitFor(t, "run to fail", func() bool {
		r, _ := h.service.Get(ctx, submitted.ID)
		return r != nil && r.Status == StatusFailed
	})
	time.Sleep(50 * time.Millisecond)
	r, _ := h.service.Get(ctx, submitted.ID)
	if r.Attempts != 1 || r.ErrorCode != string(crew.CodeConfigInvalid) {
		t.Fatalf("unexpected run: %+v", r)
	}
	if fc.calls.Load() != 1 {
		t.Fatalf("non-retryable failure should not be retried, calls=%d", fc.calls.Load())
	}
}

func TestProcessorExhaustsRetries(t *testing.T) {
	fc := &fakeCrew{fail: func(int32) error {
		return xerrors.Wrap(xerrors.CodeExecutorFailure, errors.New("provider unavailable"), "")
	}}
	h := startHarness(t, fc, 2)
	ctx := context.Background()

	submitted, _ := h.service.Submit(ctx, KickoffRequest{})
	waitFor(t, "retries to be exhausted", func() bool {
		r, _ := h.service.Get(ctx, submitted.ID)
		return r != nil && r.Status == StatusFailed && r.Attempts == 2
	})
	time.Sleep(50 * time.Millisecond)
	if fc.calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", fc.calls.Load())
	}
}

func TestProcessorAttachesProofs(t *testing.T) {
	attester, err := proofs.NewAttester("")
	if err != nil {
		t.Fatalf("attester: %v", err)
	}
	h := startHarness(t, &fakeCrew{}, 3, WithAttester(attester))
	ctx := context.Background()

	submitted, _ := h.service.Submit(ctx, KickoffRequest{ProjectName: "Vault"})
	waitFor(t, "run to succeed", func() bool {
		r, _ := h.service.Get(ctx, submitted.ID)
		return r != nil && r.Status == StatusSucceeded
	})
	r, _ := h.service.Get(ctx, submitted.ID)
	if len(r.Result.Proofs) != len(r.Result.Tasks) {
		t.Fatalf("expected one proof per task, got %+v", r.Result.Proofs)
	}
	for i, task := range r.Result.Tasks {
		if err := proofs.Verify(r.Result.Proofs[i], []byte(task.Output)); err != nil {
			t.Fatalf("proof %d does not verify: %v", i, err)
		}
	}
}

func TestProcessorRunTimeoutIsRetriedThenFails(t *testing.T) {
	fc := &fakeCrew{latency: 2 * time.Second}
	h := startHarness(t, fc, 2, WithRunTimeout(30*time.Millisecond))
	ctx := context.Background()

	submitted, err := h.service.Submit(ctx, KickoffRequest{ProjectName: "Slow"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "timed out run to fail", func() bool {
		r, _ := h.service.Get(ctx, submitted.ID)
		return r != nil && r.Status == StatusFailed && r.Attempts == 2
	})
	r, _ := h.service.Get(ctx, submitted.ID)
	if r.ErrorCode != string(xerrors.CodeTimeout) {
		t.Fatalf("expected TIMEOUT error code, got %+v", r)
	}
	if fc.calls.Load() != 2 {
		t.Fatalf("expected the timeout to be retried once, calls=%d", fc.calls.Load())
	}
}
