package descriptor

import (
	"encoding/json"
	"testing"
)

func TestListSkipsNonObjects(t *testing.T) {
	var payload struct {
		DataVars List[DataVar] `json:"data_vars"`
	}
	raw := `{"data_vars": [{"name":"counter","type":"uint","initial":0}, 42, "x", null, {"name": 1}]}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.DataVars.Len != 5 {
		t.Fatalf("expected raw length 5, got %d", payload.DataVars.Len)
	}
	if len(payload.DataVars.Items) != 2 {
		t.Fatalf("expected 2 object items, got %d", len(payload.DataVars.Items))
	}
	first := payload.DataVars.Items[0]
	if first.Name.String() != "counter" || first.Initial.String() != "0" {
		t.Fatalf("unexpected first item: %q %q", first.Name, first.Initial)
	}
	if payload.DataVars.Items[1].Type.Set() {
		t.Fatalf("missing type should not be set")
	}
}

func TestListNonArrayIsEmpty(t *testing.T) {
	var l List[Map]
	if err := json.Unmarshal([]byte(`"oops"`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !l.Empty() || !l.Present {
		t.Fatalf("expected present empty list, got %+v", l)
	}
}

func TestLiteralRendering(t *testing.T) {
	cases := map[string]string{
		`"u100"`:        "u100",
		`100`:           "100",
		`true`:          "true",
		`{"a": 1}`:      `{"a":1}`,
		`"(ok true)"`:   "(ok true)",
		`"quote \" in"`: `quote " in`,
	}
	for raw, want := range cases {
		var l Literal
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if got := l.String(); got != want {
			t.Fatalf("String(%s) = %q, want %q", raw, got, want)
		}
	}

	var missing Literal
	if missing.Set() || missing.Or("false") != "false" {
		t.Fatalf("zero literal should fall back to default")
	}
}

func TestLiteralTruthy(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`"true"`:  true,
		`"false"`: false,
		`"yes"`:   true,
		`""`:      false,
		`1`:       true,
		`0`:       false,
		`null`:    false,
	}
	for raw, want := range cases {
		var l Literal
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if got := l.Truthy(); got != want {
			t.Fatalf("Truthy(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestFunctionParamsPrecedence(t *testing.T) {
	var fn Function
	raw := `{"name":"transfer","parameters":[{"name":"amount","type":"uint"},{"name":"to"}],"args":[{"name":"ignored","type":"bool"}]}`
	if err := json.Unmarshal([]byte(raw), &fn); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	params := fn.Params()
	if len(params) != 1 || params[0].Name.String() != "amount" {
		t.Fatalf("expected only the well-formed parameter, got %+v", params)
	}

	var withArgs Function
	if err := json.Unmarshal([]byte(`{"name":"f","args":["u1",{"name":"who","type":"principal"}]}`), &withArgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	params = withArgs.Params()
	if len(params) != 1 || params[0].Type.String() != "principal" {
		t.Fatalf("expected object args to be used as params, got %+v", params)
	}
}

func TestListRoundTripKeepsPresence(t *testing.T) {
	fn := Function{Name: Text("f"), Args: ValuesOf(Text("u1"))}
	data, err := json.Marshal(fn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Function
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Parameters.Present {
		t.Fatalf("absent parameters should stay absent after a round trip: %s", data)
	}
	if len(decoded.Args.Items) != 1 || decoded.Args.Items[0].String() != "u1" {
		t.Fatalf("unexpected args after round trip: %s", data)
	}
}
