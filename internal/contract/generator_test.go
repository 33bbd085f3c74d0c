package contract

import (
	"encoding/json"
	"strings"
	"testing"

	"NoccStacks-Crew/internal/descriptor"
)

func decodeRequest(t *testing.T, raw string) Request {
	t.Helper()
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req
}

func TestGenerateVaultDeposit(t *testing.T) {
	req := decodeRequest(t, `{
		"contract_name": "vault",
		"features": ["deposits"],
		"functions": [{"name": "deposit", "is_read_only": false, "body": "(ok true)"}]
	}`)

	got := Generate(req)
	want := strings.Join([]string{
		";; vault",
		";; Generated smart contract based on Clarity documentation patterns",
		"",
		";; Functions",
		"(define-public (deposit )",
		"    (ok true)",
		")",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected contract:\n%s", got)
	}
}

func TestGenerateHeaderOnly(t *testing.T) {
	got := Generate(Request{ContractName: "empty", Features: []string{}})
	want := ";; empty\n;; Generated smart contract based on Clarity documentation patterns\n"
	if got != want {
		t.Fatalf("unexpected output: %q", got)
	}
	for _, header := range []string{";; Data vars", ";; Maps", ";; Functions", ";; Error codes"} {
		if strings.Contains(got, header) {
			t.Fatalf("empty lists should omit %q", header)
		}
	}
}

func TestGenerateAllSections(t *testing.T) {
	req := decodeRequest(t, `{
		"contract_name": "newsletter",
		"features": ["subscriptions"],
		"data_vars": [
			{"name": "subscriber-count", "type": "uint", "initial": "u0"},
			{"name": "paused", "type": "bool"},
			{"name": "broken"}
		],
		"maps": [
			{"name": "subscribers", "key_type": "principal", "value_type": "{ active: bool }"},
			{"name": "legacy", "key": "uint", "value": "principal"},
			{"name": "defaults"},
			{"key_type": "uint"}
		],
		"functions": [
			{"name": "subscribe", "parameters": [{"name": "who", "type": "principal"}, {"name": "tier", "type": "uint"}, {"name": "bad"}], "body": "(ok (map-set subscribers who { active: true }))"},
			{"name": "get-count", "is_read_only": true, "args": [{"name": "unused", "type": "bool"}], "body": "(ok (var-get subscriber-count))"},
			{"body": "(ok false)"}
		],
		"error_codes": [
			{"name": "err-not-found", "code": 404, "message": "subscriber not found"},
			{"name": "err-paused", "code": "500"},
			{"name": "err-missing-code"}
		]
	}`)

	got := Generate(req)
	want := strings.Join([]string{
		";; newsletter",
		";; Generated smart contract based on Clarity documentation patterns",
		"",
		";; Data vars",
		"(define-data-var subscriber-count uint u0)",
		"(define-data-var paused bool false)",
		"",
		";; Maps",
		"(define-map subscribers principal { active: bool })",
		"(define-map legacy uint principal)",
		"(define-map defaults principal bool)",
		"",
		";; Functions",
		"(define-public (subscribe (who principal) (tier uint))",
		"    (ok (map-set subscribers who { active: true }))",
		")",
		"",
		"(define-read-only (get-count (unused bool))",
		"    (ok (var-get subscriber-count))",
		")",
		"",
		";; Error codes",
		";; subscriber not found",
		"(define-constant err-not-found (err u404))",
		"(define-constant err-paused (err u500))",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected contract:\n%s\n--- want ---\n%s", got, want)
	}
}

func TestGenerateSkipsMalformedEntriesButKeepsHeader(t *testing.T) {
	req := decodeRequest(t, `{"contract_name": "c", "features": [], "data_vars": [42, "x"], "maps": [{"key": "uint"}]}`)
	got := Generate(req)
	if !strings.Contains(got, ";; Data vars\n\n;; Maps\n") {
		t.Fatalf("expected headers for non-empty lists even when every entry is skipped:\n%s", got)
	}
	if strings.Contains(got, "define-") {
		t.Fatalf("no definitions expected:\n%s", got)
	}
}

func TestGenerateOneBlockPerFunctionInOrder(t *testing.T) {
	req := Request{
		ContractName: "ordered",
		Features:     []string{"a"},
		Functions: descriptor.Of(
			descriptor.Function{Name: descriptor.Text("first")},
			descriptor.Function{Name: descriptor.Text("second"), IsReadOnly: descriptor.Bool(true)},
			descriptor.Function{Name: descriptor.Text("third"), Body: descriptor.Text("(ok u3)")},
		),
	}
	got := Generate(req)
	first := strings.Index(got, "(define-public (first )")
	second := strings.Index(got, "(define-read-only (second )")
	third := strings.Index(got, "(define-public (third )\n    (ok u3)\n)")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Fatalf("functions missing or out of order:\n%s", got)
	}
	if strings.Count(got, "\n)\n") != 3 {
		t.Fatalf("expected three function blocks:\n%s", got)
	}
}
