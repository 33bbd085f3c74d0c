package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQueryMatchesKeywordsAndTags(t *testing.T) {
	p := NewStaticProvider([]Snippet{
		{Title: "maps", Keywords: []string{"define-map"}},
		{Title: "tokens", Keywords: []string{"sip-010"}, Tags: []string{"fungible"}},
		{Title: "always"},
	}, 5)

	got := p.Query("Build a Fungible token", "")
	if len(got) != 2 || got[0].Title != "tokens" || got[1].Title != "always" {
		t.Fatalf("unexpected matches: %+v", got)
	}
}

func TestQueryRespectsMaxResults(t *testing.T) {
	p := NewStaticProvider([]Snippet{{Title: "a"}, {Title: "b"}, {Title: "c"}}, 2)
	if got := p.Query("anything"); len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	var nilProvider *StaticProvider
	if nilProvider.Query("x") != nil {
		t.Fatalf("nil provider should return nil")
	}
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(path, []byte(`[{"title":"post-conditions","content":"Use post-conditions.","keywords":["transfer"]}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadStaticProvider(path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := p.Query("stx transfer"); len(got) != 1 || got[0].Content != "Use post-conditions." {
		t.Fatalf("unexpected result: %+v", got)
	}
	if _, err := LoadStaticProvider("", 1); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
