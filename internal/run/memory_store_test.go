package run

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-2 * time.Minute)

	runs := []*Run{
		{ID: "r1", ProjectName: "Newsletter", Status: StatusPending, MaxRetries: 3},
		{ID: "r2", ProjectName: "Vault", Status: StatusPending, MaxRetries: 3},
		{ID: "r3", ProjectName: "Token", Status: StatusPending, MaxRetries: 3},
	}
	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create run %s: %v", r.ID, err)
		}
	}
	if err := store.MarkFailed(ctx, "r2", CodeRunProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "r3", ExecutionResult{Final: "describe(\"token\")"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.runs["r1"].UpdatedAt = base.Unix()
	store.runs["r2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.runs["r3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" || all[2].ID != "r1" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	asc, _ := store.List(ctx, BuildListOptions(WithSortOrder(SortByUpdatedAsc), WithLimit(2)))
	if len(asc) != 2 || asc[0].ID != "r1" || asc[1].ID != "r2" {
		t.Fatalf("unexpected ascending page: %v", ids(asc))
	}

	page, _ := store.List(ctx, BuildListOptions(WithOffset(2)))
	if len(page) != 1 || page[0].ID != "r1" {
		t.Fatalf("unexpected offset page: %v", ids(page))
	}

	failed, _ := store.List(ctx, BuildListOptions(WithStatuses(StatusFailed, "bogus")))
	if len(failed) != 1 || failed[0].ID != "r2" {
		t.Fatalf("unexpected failed list: %v", ids(failed))
	}

	withResult, _ := store.List(ctx, BuildListOptions(WithResultPresence(true)))
	if len(withResult) != 1 || withResult[0].ID != "r3" {
		t.Fatalf("unexpected result list: %v", ids(withResult))
	}

	recent, _ := store.List(ctx, BuildListOptions(WithUpdatedSince(base.Add(15*time.Second))))
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent runs, got %v", ids(recent))
	}

	queried, _ := store.List(ctx, BuildListOptions(WithQuery("VAULT")))
	if len(queried) != 1 || queried[0].ID != "r2" {
		t.Fatalf("unexpected query result: %v", ids(queried))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, &Run{ID: id, Status: StatusPending, MaxRetries: 3}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = store.MarkFailed(ctx, "b", CodeRunProcessing, "boom", true)
	_ = store.MarkSucceeded(ctx, "c", ExecutionResult{Final: "ok"})

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestUpdatedAt == 0 || stats.NewestUpdatedAt < stats.OldestUpdatedAt {
		t.Fatalf("unexpected timestamps: %+v", stats)
	}

	empty, _ := store.Stats(ctx, BuildListOptions(WithStatuses(StatusRunning)))
	if empty.Total != 0 || empty.OldestUpdatedAt != 0 {
		t.Fatalf("expected empty stats, got %+v", empty)
	}
}

func TestMemoryStoreClaimTransitions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Run{ID: "x", Status: StatusPending, MaxRetries: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Run{ID: "x", Status: StatusPending}); !errors.Is(err, ErrRunConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	claimed, err := store.Claim(ctx, "x")
	if err != nil || claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v %v", claimed, err)
	}
	if _, err := store.Claim(ctx, "x"); !errors.Is(err, ErrRunConflict) {
		t.Fatalf("expected running conflict, got %v", err)
	}
	_ = store.MarkFailed(ctx, "x", CodeRunProcessing, "boom", false)
	if _, err := store.Claim(ctx, "x"); !errors.Is(err, ErrRunExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
	if _, err := store.Claim(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	r := &Run{ID: "c", Status: StatusPending, Inputs: map[string]string{"project_name": "Vault"}}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Inputs["project_name"] = "changed"

	got, _ := store.Get(ctx, "c")
	got.Inputs["project_name"] = "mutated"

	again, _ := store.Get(ctx, "c")
	if again.Inputs["project_name"] != "Vault" {
		t.Fatalf("store leaked internal state: %v", again.Inputs)
	}
}

func ids(runs []*Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
