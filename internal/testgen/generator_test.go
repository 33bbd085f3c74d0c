package testgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NoccStacks-Crew/internal/scraper"
)

func decodeRequest(t *testing.T, raw string) Request {
	t.Helper()
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req
}

func TestCategorizeFirstMatchWins(t *testing.T) {
	cases := map[string]Bucket{
		"import { expect } from 'vitest'":         BucketImports,
		"beforeEach(() => { expect(1) })":          BucketTestSetup,
		"expect(result).toBe(true)":                BucketAssertions,
		"describe('counter', () => {})":            BucketExamples,
		"it('should count', () => {})":             BucketExamples,
		"(define-public (increment) (ok true))":    BucketNone,
		"assertEquals(block.receipts.length, 1);": BucketAssertions,
	}
	for code, want := range cases {
		if got := Categorize(code); got != want {
			t.Fatalf("Categorize(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestRenderOffline(t *testing.T) {
	req := decodeRequest(t, `{
		"contract_name": "counter",
		"contract_description": "A simple counter",
		"functions": [{"name": "get-count", "args": []}]
	}`)

	got := Render(req, Patterns{})
	want := strings.Join([]string{
		"import { Chain, Clarinet, Tx, types } from '@stacks/blockchain-api-client';",
		"import { describe, expect, it, beforeEach } from 'vitest';",
		"",
		"describe('counter', () => {",
		"  // A simple counter",
		"  let chain: Chain;",
		"  let accounts: Map<string, Account>;",
		"",
		"  beforeEach(() => {",
		"    chain = new Chain();",
		"    accounts = new Map();",
		"    accounts.set('deployer', new Account('ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM'));",
		"    accounts.set('wallet_1', new Account('ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5'));",
		"  });",
		"",
		"  describe('get-count', () => {",
		"    it('should execute get count successfully', () => {",
		"      const deployer = accounts.get('deployer')!;",
		"      const receipt = chain.mineBlock([",
		"        Tx.contractCall(",
		"          'counter',",
		"          'get-count',",
		"          [],",
		"          deployer.address",
		"        )",
		"      ]).receipts[0];",
		"",
		"      expect(receipt.result).toBe(types.ok(true));",
		"    });",
		"  });",
		"",
		"});",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected test file:\n%s", got)
	}
}

func TestRenderDescriptionsAndBehaviourAssertions(t *testing.T) {
	req := decodeRequest(t, `{
		"contract_name": "vault",
		"contract_description": "Vault",
		"functions": [
			{"name": "deposit", "description": "Accept STX Deposits", "args": ["u100", {"name": "sender"}, 7], "expected_behavior": "Returns an error and updates state"},
			{"name": "withdraw", "expected_behavior": "Return the Balance"},
			{"description": "no name"}
		]
	}`)

	got := Render(req, Patterns{})
	for _, want := range []string{
		"    it('should accept stx deposits', () => {",
		"          [u100, sender, 7],",
		"      expect(receipt.result).toHaveProperty('error');",
		"      expect(receipt.result).not.toBeNull();",
		"      // Verify state changes\n      const state = chain.getAssetsMaps();\n      expect(state).toBeDefined();",
		"    it('should return the balance', () => {",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Count(got, "Tx.contractCall(") != 2 {
		t.Fatalf("functions without a name should be skipped:\n%s", got)
	}
}

func TestRenderUsesHarvestedPatterns(t *testing.T) {
	patterns := Patterns{
		Imports:    []string{"import { describe } from 'vitest';", "import { Tx } from '@stacks/blockchain-api-client';"},
		Assertions: []string{"toBe(true)", "expect(receipt.result).toBeOk(Cl.bool(true));"},
		Examples:   []string{"it('transfers', () => {})", "simnet.callPublicFn('contract-name', 'function-name', [], deployer);"},
	}
	req := decodeRequest(t, `{
		"contract_name": "token",
		"contract_description": "Token",
		"functions": [{"name": "mint"}],
		"test_scenarios": [
			{"description": "Callpublicfn works", "function": "mint"},
			{"description": "zzz", "test_code": "      expect(1).toBe(1);"},
			{"description": "qqq"},
			{"function": "skipped"}
		]
	}`)

	got := Render(req, patterns)
	for _, want := range []string{
		"import { Tx } from '@stacks/blockchain-api-client';\n\ndescribe('token', () => {",
		"      expect(receipt.result).toBeOk(Cl.bool(true));",
		"  describe('Scenario: Callpublicfn works', () => {\n    it('should handle the scenario correctly', () => {\n      simnet.callPublicFn('token', 'mint', [], deployer);",
		"  describe('Scenario: zzz', () => {\n    it('should handle the scenario correctly', () => {\n      expect(1).toBe(1);",
		"  describe('Scenario: qqq', () => {\n    it('should handle the scenario correctly', () => {\n      // Add test implementation",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "skipped") {
		t.Fatalf("scenario without description should be skipped")
	}
	if !strings.HasSuffix(got, "\n});") {
		t.Fatalf("expected closing line, got %q", got[len(got)-10:])
	}
}

func TestHarvesterBucketsPageSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/unit-testing" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<pre>import { describe } from "vitest";</pre>
<pre>beforeEach(() => {});</pre>
<pre>expect(result).toBeOk(Cl.bool(true));</pre>
<pre>it("works", () => {});</pre>
<pre>npm install</pre>
</body></html>`))
	}))
	defer srv.Close()

	h := NewHarvester(scraper.NewClient(scraper.WithTimeout(2*time.Second)), []string{srv.URL + "/missing", srv.URL + "/unit-testing"}, nil)
	patterns := h.Patterns(context.Background())

	if len(patterns.Imports) != 1 || len(patterns.TestSetup) != 1 || len(patterns.Assertions) != 1 || len(patterns.Examples) != 1 {
		t.Fatalf("unexpected buckets: %+v", patterns)
	}

	gen := NewGenerator(h)
	out := gen.Generate(context.Background(), Request{ContractName: "c", ContractDescription: "d"})
	if !strings.HasPrefix(out, "import { Chain, Clarinet, Tx, types }") {
		t.Fatalf("imports without the blockchain client should fall back to the default header:\n%s", out)
	}
}
