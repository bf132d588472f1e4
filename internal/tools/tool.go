// Package tools is the CogniTool framework: descriptors, a registry, and the
// normalize -> inject_namespace -> validate -> execute -> serialize pipeline
// every RPC endpoint in internal/rpc dispatches through.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/config"
	"github.com/cogniwarden/memory/internal/toolerr"
)

// maxNormalizeDepth bounds repeated string-then-JSON unwrapping of a raw
// payload (spec.md §4.5: inputs may be a map, a JSON string, or a JSON string
// containing a JSON string). A double-wrapped payload must still unwrap
// successfully; a triple-wrapped one must fail, so the cap is 2 unwraps.
const maxNormalizeDepth = 2

// Args is implemented by every tool's typed input struct. Validate applies
// the checks that don't require a database round-trip; anything that does
// (namespace existence, block existence) is left to the tool function, which
// has access to the bank.
type Args interface {
	Validate() error
}

// Func is a tool's pure call, given validated input and (when MemoryLinked)
// a bank to operate against.
type Func func(ctx context.Context, b *bank.Bank, args Args) (interface{}, error)

// Tool is the CogniTool descriptor (spec.md §4.5).
type Tool struct {
	Name         string
	Description  string
	MemoryLinked bool
	// NeedsNamespace marks tools whose input accepts namespace_id and should
	// receive it from process context when absent. False for block-id-only
	// lookups (spec.md §4.5 step 2: "Block-id-only lookups do not receive
	// injection").
	NeedsNamespace bool
	// NewArgs returns a fresh zero-value Args for this tool to unmarshal into.
	NewArgs func() Args
	Func    Func
}

// Registry holds every registered Tool by name.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry builds an empty registry. Tools are added with Register,
// typically through RegisterAll, which calls each category file's
// registration function.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds t to the registry. Panics on duplicate name: a name
// collision is a programming error caught at startup, not a runtime one.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration for %q", t.Name))
	}
	r.tools[t.Name] = t
}

// Lookup returns the tool registered under name, or (nil, false).
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, for endpoint enumeration at
// server startup (spec.md §4.5: "generates one RPC endpoint per tool").
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Envelope is the response shape every tool invocation returns, success or
// failure (spec.md §4.5 step 5).
type Envelope struct {
	Success      bool        `json:"success"`
	Error        string      `json:"error,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	ActiveBranch string      `json:"active_branch,omitempty"`
	Result       interface{} `json:"result,omitempty"`
}

// Invoker runs the pipeline for one tool call. It is the thing internal/rpc
// holds one of per process, built once at startup from a Registry plus the
// collaborators every tool needs.
type Invoker struct {
	registry *Registry
	bank     *bank.Bank
	cfg      *config.Watcher
}

// NewInvoker builds an Invoker. cfg may be nil in tests that only exercise
// tools without MemoryLinked namespace injection.
func NewInvoker(registry *Registry, b *bank.Bank, cfg *config.Watcher) *Invoker {
	return &Invoker{registry: registry, bank: b, cfg: cfg}
}

// Invoke runs the full pipeline for name against raw input, never letting a
// panic or error escape as anything other than an Envelope (spec.md §4.5
// step 5: "the wrapper catches and emits an envelope with the same shape so
// that no exception escapes").
func (inv *Invoker) Invoke(ctx context.Context, name string, raw json.RawMessage) (env Envelope) {
	env.Timestamp = time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			env = Envelope{
				Success:   false,
				Error:     fmt.Sprintf("panic: %v", r),
				ErrorCode: string(toolerr.InternalError),
				Timestamp: time.Now().UTC(),
			}
		}
	}()

	t, ok := inv.registry.Lookup(name)
	if !ok {
		return errEnvelope(toolerr.New(toolerr.ValidationError, "unknown tool %q", name))
	}

	normalized, err := normalize(raw, maxNormalizeDepth)
	if err != nil {
		return errEnvelope(err)
	}

	if t.MemoryLinked && t.NeedsNamespace {
		normalized = inv.injectNamespace(normalized)
	}

	args := t.NewArgs()
	if err := decodeInto(normalized, args); err != nil {
		return errEnvelope(toolerr.Wrap(toolerr.ValidationError, err, "decode input for %s", name))
	}
	if err := args.Validate(); err != nil {
		return errEnvelope(toolerr.Wrap(toolerr.ValidationError, err, "validate input for %s", name))
	}

	var b *bank.Bank
	if t.MemoryLinked {
		b = inv.bank
	}

	result, err := t.Func(ctx, b, args)
	if err != nil {
		env = errEnvelope(err)
	} else {
		env.Success = true
		env.Result = result
	}
	if t.MemoryLinked && inv.bank != nil {
		env.ActiveBranch = inv.currentBranch(ctx)
	}
	return env
}

func errEnvelope(err error) Envelope {
	te, ok := toolerr.As(err)
	if !ok {
		return Envelope{
			Success:   false,
			Error:     err.Error(),
			ErrorCode: string(toolerr.InternalError),
			Timestamp: time.Now().UTC(),
		}
	}
	return Envelope{
		Success:   false,
		Error:     te.Message,
		ErrorCode: string(te.Code),
		Timestamp: time.Now().UTC(),
	}
}

// currentBranch reports the active branch for the response envelope, read
// from the process config watcher; empty when no watcher is installed. This
// is advisory metadata, not load-bearing for the result itself.
func (inv *Invoker) currentBranch(ctx context.Context) string {
	if inv.cfg == nil {
		return ""
	}
	return inv.cfg.CurrentBranch()
}

// normalize repeatedly unwraps a JSON-encoded string, up to maxDepth levels,
// so callers may pass a map, a JSON string, or a JSON string containing a
// JSON string (spec.md §4.5 step 1). Lists are accepted at the top level for
// bulk tools; anything that isn't an object, array, or nested string at the
// end of unwrapping is rejected.
func normalize(raw json.RawMessage, maxDepth int) (json.RawMessage, error) {
	current := raw
	for depth := 0; depth <= maxDepth; depth++ {
		var asString string
		if err := json.Unmarshal(current, &asString); err != nil {
			// Not a JSON string at this level: unwrapping is done.
			return validateNormalizedShape(current)
		}
		if depth == maxDepth {
			return nil, toolerr.New(toolerr.ValidationError,
				"input nested as a JSON string more than %d levels deep", maxDepth)
		}
		current = json.RawMessage(asString)
	}
	return validateNormalizedShape(current)
}

func validateNormalizedShape(raw json.RawMessage) (json.RawMessage, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "input is not valid JSON")
	}
	switch probe.(type) {
	case map[string]interface{}, []interface{}:
		return raw, nil
	default:
		return nil, toolerr.New(toolerr.ValidationError,
			"input must be a JSON object or array, got %T", probe)
	}
}

// injectNamespace fills namespace_id from process context when the field is
// absent or null, operating on a shallow copy so the caller's parsed map is
// never mutated (spec.md §4.5 step 2).
func (inv *Invoker) injectNamespace(raw json.RawMessage) json.RawMessage {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		// Not an object (e.g. a bulk list) — nothing to inject into.
		return raw
	}
	if v, present := obj["namespace_id"]; present && v != nil {
		return raw
	}
	if inv.cfg == nil {
		return raw
	}
	copied := make(map[string]interface{}, len(obj)+1)
	for k, v := range obj {
		copied[k] = v
	}
	copied["namespace_id"] = inv.cfg.CurrentNamespace()
	out, err := json.Marshal(copied)
	if err != nil {
		return raw
	}
	return out
}

func decodeInto(raw json.RawMessage, args Args) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(args)
}
