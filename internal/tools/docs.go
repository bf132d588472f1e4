package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
	"github.com/cogniwarden/memory/internal/vectorindex"
)

func registerDocTools(r *Registry, idx vectorindex.Index) {
	r.Register(&Tool{
		Name:           "CreateDocMemoryBlock",
		Description:    "Create a doc-type memory block from a source file or URI.",
		MemoryLinked:   true,
		NeedsNamespace: true,
		NewArgs:        func() Args { return &CreateDocMemoryBlockArgs{} },
		Func:           createDocMemoryBlock,
	})
	r.Register(&Tool{
		Name:           "QueryDocMemoryBlock",
		Description:    "Semantically search doc-type memory blocks, optionally scoped to a namespace.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return newQueryDocMemoryBlockArgs(idx) },
		Func:           queryDocMemoryBlock,
	})
}

// CreateDocMemoryBlockArgs is the CreateDocMemoryBlock input model, a thin
// wrapper over CreateMemoryBlock that pins the type to "doc".
type CreateDocMemoryBlockArgs struct {
	NamespaceID string                 `json:"namespace_id"`
	Text        string                 `json:"text"`
	SourceFile  *string                `json:"source_file,omitempty"`
	SourceURI   *string                `json:"source_uri,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy   *string                `json:"created_by,omitempty"`
	Embedding   []float32              `json:"embedding,omitempty"`
}

func (a *CreateDocMemoryBlockArgs) Validate() error {
	if a.NamespaceID == "" {
		return fmt.Errorf("namespace_id is required")
	}
	if a.Text == "" {
		return fmt.Errorf("text is required")
	}
	if a.SourceFile == nil && a.SourceURI == nil {
		return fmt.Errorf("source_file or source_uri is required")
	}
	return nil
}

func createDocMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*CreateDocMemoryBlockArgs)
	return createMemoryBlock(ctx, b, &CreateMemoryBlockArgs{
		NamespaceID: a.NamespaceID,
		Type:        string(types.BlockDoc),
		Text:        a.Text,
		SourceFile:  a.SourceFile,
		SourceURI:   a.SourceURI,
		Tags:        a.Tags,
		Metadata:    a.Metadata,
		CreatedBy:   a.CreatedBy,
		Embedding:   a.Embedding,
	})
}

// QueryDocMemoryBlockArgs is the QueryDocMemoryBlock input model.
type QueryDocMemoryBlockArgs struct {
	Embedding   []float32 `json:"embedding"`
	NamespaceID string    `json:"namespace_id,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	idx         vectorindex.Index
}

func newQueryDocMemoryBlockArgs(idx vectorindex.Index) *QueryDocMemoryBlockArgs {
	return &QueryDocMemoryBlockArgs{idx: idx}
}

func (a *QueryDocMemoryBlockArgs) Validate() error {
	if len(a.Embedding) != types.EmbeddingDim {
		return fmt.Errorf("embedding length %d, want %d", len(a.Embedding), types.EmbeddingDim)
	}
	return nil
}

// queryDocMemoryBlock runs the semantic query against the full index, then
// loads each hit's block and filters to doc-type blocks matching the
// requested namespace (the index itself carries no type/namespace
// dimension, see internal/vectorindex — filtering after the fact is the
// only option without extending that index's schema).
func queryDocMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*QueryDocMemoryBlockArgs)
	if a.idx == nil || !a.idx.IsReady(ctx) {
		return nil, toolerr.New(toolerr.InternalError, "vector index is not ready")
	}
	topK := a.TopK
	if topK <= 0 {
		topK = 10
	}

	// Over-fetch to absorb post-filtering, bounded to keep this a single
	// index round-trip rather than an adaptive retry loop.
	hits, err := a.idx.Query(ctx, a.Embedding, topK*4)
	if err != nil {
		return nil, err
	}

	var results []*types.MemoryBlock
	for _, hit := range hits {
		if len(results) >= topK {
			break
		}
		block, err := b.GetMemoryBlock(ctx, hit.BlockID)
		if err != nil {
			continue
		}
		if block.Type != types.BlockDoc {
			continue
		}
		if a.NamespaceID != "" && block.NamespaceID != a.NamespaceID {
			continue
		}
		results = append(results, block)
	}
	return results, nil
}
