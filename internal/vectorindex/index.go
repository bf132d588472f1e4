// Package vectorindex defines the narrow interface StructuredMemoryBank uses
// to mirror block embeddings for semantic retrieval, plus a deterministic
// in-memory implementation used as the default and in tests. The embedding
// model and any real backing vector store are external collaborators (spec.md
// §1 Non-goals); this package only defines and exercises the seam.
package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cogniwarden/memory/internal/types"
)

// ScoredNode is one semantic-search hit.
type ScoredNode struct {
	BlockID string
	Score   float64
}

// Index is the contract every vector backend must satisfy.
type Index interface {
	AddBlock(ctx context.Context, block *types.MemoryBlock) error
	UpdateBlock(ctx context.Context, block *types.MemoryBlock) error
	DeleteBlock(ctx context.Context, id string) error
	Query(ctx context.Context, embedding []float32, topK int) ([]ScoredNode, error)
	IsReady(ctx context.Context) bool
}

// MemoryIndex is a best-effort, process-local mirror of block embeddings
// using cosine similarity. It treats the SQL store as the source of truth and
// never blocks a reader that only needs properties (spec.md §4.2/§5).
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

func (m *MemoryIndex) AddBlock(_ context.Context, block *types.MemoryBlock) error {
	if block.Embedding == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[block.ID] = block.Embedding
	return nil
}

func (m *MemoryIndex) UpdateBlock(ctx context.Context, block *types.MemoryBlock) error {
	return m.AddBlock(ctx, block)
}

func (m *MemoryIndex) DeleteBlock(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, embedding []float32, topK int) ([]ScoredNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]ScoredNode, 0, len(m.vectors))
	for id, vec := range m.vectors {
		scored = append(scored, ScoredNode{BlockID: id, Score: cosineSimilarity(embedding, vec)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *MemoryIndex) IsReady(context.Context) bool { return true }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
