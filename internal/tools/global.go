package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/config"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
	"github.com/cogniwarden/memory/internal/vectorindex"
)

func registerGlobalTools(r *Registry, idx vectorindex.Index, cfg *config.Watcher) {
	r.Register(&Tool{
		Name:         "GlobalMemoryInventory",
		Description:  "Summarize block counts across every namespace, grouped by type and state.",
		MemoryLinked: true,
		NewArgs:      func() Args { return &GlobalMemoryInventoryArgs{} },
		Func:         globalMemoryInventory,
	})
	r.Register(&Tool{
		Name:         "GlobalSemanticSearch",
		Description:  "Query the vector index for blocks semantically close to an embedding.",
		MemoryLinked: true,
		NewArgs:      func() Args { return newGlobalSemanticSearchArgs(idx) },
		Func:         globalSemanticSearch,
	})
	r.Register(&Tool{
		Name:         "SetContext",
		Description:  "Set the process-wide current branch and/or namespace.",
		MemoryLinked: false,
		NewArgs:      func() Args { return newSetContextArgs(cfg) },
		Func:         setContext,
	})
	r.Register(&Tool{
		Name:           "LogInteractionBlock",
		Description:    "Append an interaction-type memory block, a convenience wrapper over CreateMemoryBlock.",
		MemoryLinked:   true,
		NeedsNamespace: true,
		NewArgs:        func() Args { return &LogInteractionBlockArgs{} },
		Func:           logInteractionBlock,
	})
}

// GlobalMemoryInventoryArgs is the GlobalMemoryInventory input model (no
// fields: it always scans every namespace).
type GlobalMemoryInventoryArgs struct{}

func (a *GlobalMemoryInventoryArgs) Validate() error { return nil }

// InventorySummary is the GlobalMemoryInventory result shape.
type InventorySummary struct {
	TotalBlocks int            `json:"total_blocks"`
	ByNamespace map[string]int `json:"by_namespace"`
	ByType      map[string]int `json:"by_type"`
	ByState     map[string]int `json:"by_state"`
}

func globalMemoryInventory(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	blocks, err := b.GetAllMemoryBlocks(ctx, types.Filter{})
	if err != nil {
		return nil, err
	}

	summary := InventorySummary{
		ByNamespace: map[string]int{},
		ByType:      map[string]int{},
		ByState:     map[string]int{},
	}
	for _, block := range blocks {
		summary.TotalBlocks++
		summary.ByNamespace[block.NamespaceID]++
		summary.ByType[string(block.Type)]++
		summary.ByState[string(block.State)]++
	}
	return summary, nil
}

// GlobalSemanticSearchArgs is the GlobalSemanticSearch input model.
type GlobalSemanticSearchArgs struct {
	Embedding []float32 `json:"embedding"`
	TopK      int       `json:"top_k,omitempty"`
	idx       vectorindex.Index
}

func newGlobalSemanticSearchArgs(idx vectorindex.Index) *GlobalSemanticSearchArgs {
	return &GlobalSemanticSearchArgs{idx: idx}
}

func (a *GlobalSemanticSearchArgs) Validate() error {
	if len(a.Embedding) != types.EmbeddingDim {
		return fmt.Errorf("embedding length %d, want %d", len(a.Embedding), types.EmbeddingDim)
	}
	return nil
}

func globalSemanticSearch(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*GlobalSemanticSearchArgs)
	topK := a.TopK
	if topK <= 0 {
		topK = 10
	}
	if a.idx == nil || !a.idx.IsReady(ctx) {
		return nil, toolerr.New(toolerr.InternalError, "vector index is not ready")
	}
	return a.idx.Query(ctx, a.Embedding, topK)
}

// SetContextArgs is the SetContext input model.
type SetContextArgs struct {
	Branch    *string `json:"branch,omitempty"`
	Namespace *string `json:"namespace,omitempty"`
	cfg       *config.Watcher
}

func newSetContextArgs(cfg *config.Watcher) *SetContextArgs {
	return &SetContextArgs{cfg: cfg}
}

func (a *SetContextArgs) Validate() error {
	if a.Branch == nil && a.Namespace == nil {
		return fmt.Errorf("at least one of branch or namespace must be set")
	}
	return nil
}

// setContext is not memory_linked: it mutates process context directly
// rather than going through the bank (spec.md §5 "Current-branch /
// current-namespace context: per-process values set at startup from
// environment; tools read them via the injector" — this tool is the one
// write path for that same state at runtime).
func setContext(ctx context.Context, _ *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*SetContextArgs)
	if a.cfg == nil {
		return nil, toolerr.New(toolerr.InternalError, "no process configuration available")
	}
	result := map[string]string{}
	if a.Branch != nil {
		a.cfg.SetCurrentBranch(*a.Branch)
		result["branch"] = *a.Branch
	}
	if a.Namespace != nil {
		a.cfg.SetCurrentNamespace(*a.Namespace)
		result["namespace"] = *a.Namespace
	}
	return result, nil
}

// LogInteractionBlockArgs is the LogInteractionBlock input model.
type LogInteractionBlockArgs struct {
	NamespaceID string                 `json:"namespace_id"`
	Text        string                 `json:"text"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy   *string                `json:"created_by,omitempty"`
}

func (a *LogInteractionBlockArgs) Validate() error {
	if a.NamespaceID == "" {
		return fmt.Errorf("namespace_id is required")
	}
	if a.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

func logInteractionBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*LogInteractionBlockArgs)
	published := types.StatePublished
	return createMemoryBlock(ctx, b, &CreateMemoryBlockArgs{
		NamespaceID: a.NamespaceID,
		Type:        string(types.BlockInteraction),
		Text:        a.Text,
		Tags:        a.Tags,
		Metadata:    a.Metadata,
		CreatedBy:   a.CreatedBy,
		State:       statePtr(published),
	})
}

func statePtr(s types.BlockState) *string {
	v := string(s)
	return &v
}
