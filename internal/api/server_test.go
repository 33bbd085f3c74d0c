package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"NoccStacks-Crew/internal/run"
	"NoccStacks-Crew/internal/scraper"
	"NoccStacks-Crew/internal/testgen"
	"NoccStacks-Crew/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server  *Server
	store   *run.MemoryStore
	service *run.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := tools.NewBuiltinRegistry(tools.Dependencies{
		Scraper: scraper.NewDocScraper(scraper.NewClient(), "http://127.0.0.1:1", []string{}),
		Tests:   testgen.NewGenerator(testgen.StaticPatterns{}),
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := run.NewMemoryStore()
	service := run.NewService(store, run.NewMemoryQueue(16), 3)
	return &fixture{
		server:  NewServer(Config{AllowOrigins: []string{"https://app.example"}}, service, registry),
		store:   store,
		service: service,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitAndGetRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/runs", `{"project_name":"Vault","project_description":"A simple STX vault"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	submitted := decode[run.Run](t, rec)
	if submitted.ID == "" || submitted.Status != run.StatusPending || submitted.ProjectName != "Vault" {
		t.Fatalf("unexpected run: %+v", submitted)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/runs/"+submitted.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[run.Run](t, rec); got.ProjectDescription != "A simple STX vault" {
		t.Fatalf("unexpected run: %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/runs/missing", "")
	if rec.Code != http.StatusNotFound || decode[errorEnvelope](t, rec).Error.Code != string(run.CodeRunNotFound) {
		t.Fatalf("expected 404 RUN_NOT_FOUND, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitRunWithoutBodyUsesDefaults(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/runs", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitRunRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/v1/runs", `{"project_name":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}
	long := strings.Repeat("x", 300)
	rec := f.do(t, http.MethodPost, "/api/v1/runs", `{"project_name":"`+long+`"}`)
	if rec.Code != http.StatusBadRequest || decode[errorEnvelope](t, rec).Error.Code != string(run.CodeRunValidation) {
		t.Fatalf("expected validation failure, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListRunsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := f.store.Create(ctx, &run.Run{ID: id, ProjectName: "p-" + id, Status: run.StatusPending, MaxRetries: 3}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = f.store.MarkFailed(ctx, "b", run.CodeRunProcessing, "boom", true)

	rec := f.do(t, http.MethodGet, "/api/v1/runs?status=failed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	listed := decode[struct {
		Runs  []run.Run `json:"runs"`
		Count int       `json:"count"`
	}](t, rec)
	if listed.Count != 1 || listed.Runs[0].ID != "b" {
		t.Fatalf("unexpected list: %+v", listed)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/runs?limit=2&order=asc&q=p-", "")
	if got := decode[struct {
		Count int `json:"count"`
	}](t, rec); got.Count != 2 {
		t.Fatalf("expected 2 runs, got %d", got.Count)
	}

	for _, bad := range []string{"status=paused", "limit=-1", "order=sideways", "has_result=maybe", "updated_since=yesterday"} {
		if rec := f.do(t, http.MethodGet, "/api/v1/runs?"+bad, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, rec.Code)
		}
	}

	rec = f.do(t, http.MethodGet, "/api/v1/runs/stats", "")
	stats := decode[run.Stats](t, rec)
	if stats.Total != 3 || stats.Pending != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestToolEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/tools", "")
	listed := decode[struct {
		Tools []tools.Descriptor `json:"tools"`
	}](t, rec)
	if len(listed.Tools) != 3 || listed.Tools[0].Name != tools.ClarityDocScraper {
		t.Fatalf("unexpected tools: %+v", listed.Tools)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/tools/smart_contract_generator", `{"contract_name":"vault","features":["deposit"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoke: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), ";; vault") || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected scaffold: %q", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/tools/smart_contract_generator", `{"features":["deposit"]}`)
	if rec.Code != http.StatusBadRequest || decode[errorEnvelope](t, rec).Error.Code != string(tools.CodeToolInputInvalid) {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/tools/nope", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUninitialisedServicesReturn503(t *testing.T) {
	server := NewServer(Config{}, nil, nil)
	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/stats", "/api/v1/tools"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestCORSAndMetrics(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}

	f.do(t, http.MethodGet, "/healthz", "")
	rec = f.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `stackscrew_http_requests_total{route="/healthz",method="GET",code="200"}`) {
		t.Fatalf("metrics missing healthz counter:\n%s", rec.Body.String())
	}
}
