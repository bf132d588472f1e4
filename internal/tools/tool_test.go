package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/config"
	"github.com/cogniwarden/memory/internal/toolerr"
)

func TestNormalizePassesThroughAnObject(t *testing.T) {
	raw := json.RawMessage(`{"a": 1}`)
	out, err := normalize(raw, maxNormalizeDepth)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("got %s, want %s", out, raw)
	}
}

func TestNormalizeUnwrapsNestedJSONStrings(t *testing.T) {
	inner := `{"a": 1}`
	onceWrapped, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}
	out, err := normalize(onceWrapped, maxNormalizeDepth)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(out) != inner {
		t.Fatalf("got %s, want %s", out, inner)
	}
}

func TestNormalizeRejectsExcessiveNesting(t *testing.T) {
	raw := json.RawMessage(`{"a": 1}`)
	for i := 0; i < maxNormalizeDepth+1; i++ {
		wrapped, err := json.Marshal(string(raw))
		if err != nil {
			t.Fatal(err)
		}
		raw = wrapped
	}
	if _, err := normalize(raw, maxNormalizeDepth); err == nil {
		t.Fatalf("expected an error for input nested deeper than %d levels", maxNormalizeDepth)
	}
}

// TestNormalizeDoubleWrapSucceedsTripleWrapFails pins the exact contract a
// client library sees: json.Marshal(json.Marshal(D)) must still decode to D,
// and one more wrap on top of that must fail with a max-depth error.
func TestNormalizeDoubleWrapSucceedsTripleWrapFails(t *testing.T) {
	inner := `{"a": 1}`

	onceWrapped, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}
	twiceWrapped, err := json.Marshal(string(onceWrapped))
	if err != nil {
		t.Fatal(err)
	}
	out, err := normalize(twiceWrapped, maxNormalizeDepth)
	if err != nil {
		t.Fatalf("double-wrapped input must normalize successfully, got: %v", err)
	}
	if string(out) != inner {
		t.Fatalf("got %s, want %s", out, inner)
	}

	thriceWrapped, err := json.Marshal(string(twiceWrapped))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := normalize(thriceWrapped, maxNormalizeDepth); err == nil {
		t.Fatalf("triple-wrapped input must fail with a max recursion depth error")
	}
}

func TestNormalizeAcceptsTopLevelArray(t *testing.T) {
	raw := json.RawMessage(`[1, 2, 3]`)
	out, err := normalize(raw, maxNormalizeDepth)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("got %s, want %s", out, raw)
	}
}

func TestNormalizeRejectsScalar(t *testing.T) {
	if _, err := normalize(json.RawMessage(`42`), maxNormalizeDepth); err == nil {
		t.Fatalf("expected an error for a bare scalar")
	}
}

func newTestWatcher(t *testing.T) *config.Watcher {
	t.Helper()
	w, err := config.NewWatcher("")
	if err != nil {
		t.Fatalf("config.NewWatcher: %v", err)
	}
	return w
}

func TestInjectNamespaceFillsAbsentField(t *testing.T) {
	w := newTestWatcher(t)
	w.SetCurrentNamespace("team-a")
	inv := &Invoker{cfg: w}

	out := inv.injectNamespace(json.RawMessage(`{"text": "hi"}`))
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded["namespace_id"] != "team-a" {
		t.Fatalf("got namespace_id=%v, want team-a", decoded["namespace_id"])
	}
	if decoded["text"] != "hi" {
		t.Fatalf("injectNamespace must not disturb other fields, got %v", decoded)
	}
}

func TestInjectNamespaceLeavesExplicitValueAlone(t *testing.T) {
	w := newTestWatcher(t)
	w.SetCurrentNamespace("team-a")
	inv := &Invoker{cfg: w}

	raw := json.RawMessage(`{"namespace_id": "team-b"}`)
	out := inv.injectNamespace(raw)
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded["namespace_id"] != "team-b" {
		t.Fatalf("got namespace_id=%v, want team-b (explicit value must win)", decoded["namespace_id"])
	}
}

func TestInjectNamespaceNoopsOnArrayInput(t *testing.T) {
	w := newTestWatcher(t)
	inv := &Invoker{cfg: w}

	raw := json.RawMessage(`[1, 2, 3]`)
	out := inv.injectNamespace(raw)
	if string(out) != string(raw) {
		t.Fatalf("got %s, want unchanged %s", out, raw)
	}
}

type decodeTarget struct {
	Name string `json:"name"`
}

func (d *decodeTarget) Validate() error { return nil }

func TestDecodeIntoRejectsUnknownFields(t *testing.T) {
	var target decodeTarget
	err := decodeInto(json.RawMessage(`{"name": "a", "unexpected": true}`), &target)
	if err == nil {
		t.Fatalf("expected an error for an unknown field")
	}
}

func TestDecodeIntoFillsKnownFields(t *testing.T) {
	var target decodeTarget
	if err := decodeInto(json.RawMessage(`{"name": "a"}`), &target); err != nil {
		t.Fatalf("decodeInto: %v", err)
	}
	if target.Name != "a" {
		t.Fatalf("got %q, want a", target.Name)
	}
}

func TestInvokeUnknownToolReturnsValidationError(t *testing.T) {
	inv := NewInvoker(NewRegistry(), nil, nil)
	env := inv.Invoke(context.Background(), "NoSuchTool", json.RawMessage(`{}`))
	if env.Success {
		t.Fatalf("expected failure for an unknown tool")
	}
	if env.ErrorCode != string(toolerr.ValidationError) {
		t.Fatalf("got error_code=%q, want %q", env.ErrorCode, toolerr.ValidationError)
	}
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:    "Explode",
		NewArgs: func() Args { return &decodeTarget{} },
		Func: func(ctx context.Context, b *bank.Bank, args Args) (interface{}, error) {
			panic("boom")
		},
	})
	inv := NewInvoker(r, nil, nil)

	env := inv.Invoke(context.Background(), "Explode", json.RawMessage(`{"name": "a"}`))
	if env.Success {
		t.Fatalf("expected failure when the tool func panics")
	}
	if env.ErrorCode != string(toolerr.InternalError) {
		t.Fatalf("got error_code=%q, want %q", env.ErrorCode, toolerr.InternalError)
	}
}
