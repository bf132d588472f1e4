// Package types defines the persisted record shapes for memory blocks, links,
// namespaces and proofs, plus the relation registry and metadata value model.
package types

import (
	"fmt"
	"strings"
	"time"
)

// BlockType is the closed set of memory block kinds.
type BlockType string

const (
	BlockKnowledge   BlockType = "knowledge"
	BlockTask        BlockType = "task"
	BlockProject     BlockType = "project"
	BlockDoc         BlockType = "doc"
	BlockInteraction BlockType = "interaction"
	BlockLog         BlockType = "log"
	BlockEpic        BlockType = "epic"
	BlockBug         BlockType = "bug"
)

func (t BlockType) Valid() bool {
	switch t {
	case BlockKnowledge, BlockTask, BlockProject, BlockDoc, BlockInteraction, BlockLog, BlockEpic, BlockBug:
		return true
	}
	return false
}

// BlockState is the publication lifecycle of a block.
type BlockState string

const (
	StateDraft     BlockState = "draft"
	StatePublished BlockState = "published"
	StateArchived  BlockState = "archived"
)

func (s BlockState) Valid() bool {
	switch s {
	case StateDraft, StatePublished, StateArchived:
		return true
	}
	return false
}

// Visibility controls access shape, not authentication (trust boundary is upstream).
type Visibility string

const (
	VisibilityInternal   Visibility = "internal"
	VisibilityPublic     Visibility = "public"
	VisibilityRestricted Visibility = "restricted"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityInternal, VisibilityPublic, VisibilityRestricted:
		return true
	}
	return false
}

// MaxTags bounds MemoryBlock.Tags per spec.md invariant (tags size <= 20).
const MaxTags = 20

// EmbeddingDim is the fixed embedding length the current embedding contract uses.
const EmbeddingDim = 384

// Confidence holds the human/ai confidence pair, both in [0,1].
type Confidence struct {
	Human *float64 `json:"human,omitempty"`
	AI    *float64 `json:"ai,omitempty"`
}

func (c Confidence) Validate() error {
	check := func(name string, v *float64) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 1 {
			return fmt.Errorf("confidence.%s must be in [0,1], got %v", name, *v)
		}
		return nil
	}
	if err := check("human", c.Human); err != nil {
		return err
	}
	return check("ai", c.AI)
}

// BlockDraft is the constructor-input shape for a new block: no id, version,
// or timestamps yet. Mirrors the original implementation's MemoryBlockBase/MemoryBlock
// split (draft vs. persisted record).
type BlockDraft struct {
	NamespaceID   string
	Type          BlockType
	SchemaVersion *int
	Text          string
	State         *BlockState
	Visibility    *Visibility
	Tags          []string
	Metadata      map[string]MetadataValue
	SourceFile    *string
	SourceURI     *string
	CreatedBy     *string
	Confidence    *Confidence
	Embedding     []float32
}

// MemoryBlock is the persisted record.
type MemoryBlock struct {
	ID            string
	NamespaceID   string
	Type          BlockType
	SchemaVersion *int
	Text          string
	State         BlockState
	Visibility    Visibility
	BlockVersion  int
	Tags          []string
	Metadata      map[string]MetadataValue
	SourceFile    *string
	SourceURI     *string
	CreatedBy     *string
	Confidence    *Confidence
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Embedding     []float32
}

// Validate checks the invariants from spec.md §3 that do not require a database
// round-trip (namespace existence and block_version monotonicity are checked by
// the caller, which has access to storage).
func (b *MemoryBlock) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !b.Type.Valid() {
		return fmt.Errorf("invalid block type %q", b.Type)
	}
	if !b.State.Valid() {
		return fmt.Errorf("invalid block state %q", b.State)
	}
	if !b.Visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", b.Visibility)
	}
	if b.BlockVersion <= 0 {
		return fmt.Errorf("block_version must be > 0")
	}
	if len(b.Tags) > MaxTags {
		return fmt.Errorf("tags length %d exceeds max %d", len(b.Tags), MaxTags)
	}
	if b.Embedding != nil && len(b.Embedding) != EmbeddingDim {
		return fmt.Errorf("embedding length %d, want %d", len(b.Embedding), EmbeddingDim)
	}
	if b.Confidence != nil {
		if err := b.Confidence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DedupTags removes duplicate tags, preserving first-seen order, and truncates
// to MaxTags (merge-time invariant enforcement per spec.md §3/§8 property 6).
func DedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
