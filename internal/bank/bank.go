// Package bank implements StructuredMemoryBank, the only component that
// mutates both the SQL persistence layer and the vector index. It enforces
// the cross-substrate invariants spec.md §4.4 describes: namespace
// validation, the auto-commit policy, proofs, and the branch-operation tools.
package bank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cogniwarden/memory/internal/linkmanager"
	"github.com/cogniwarden/memory/internal/storage/dolt"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
	"github.com/cogniwarden/memory/internal/vectorindex"
)

// Store is the slice of *dolt.DoltStore the bank drives directly. A single
// concrete backend is wired (the factory/provider indirection the teacher used
// to pick among multiple storage backends has no caller here — Dolt is the
// only persistence substrate spec.md names), but the interface keeps bank's
// tests independent of a live Dolt connection.
type Store interface {
	CreateBlock(ctx context.Context, b *types.MemoryBlock) error
	GetBlock(ctx context.Context, id string) (*types.MemoryBlock, error)
	ListBlocks(ctx context.Context, filter types.Filter) ([]*types.MemoryBlock, error)
	UpdateBlock(ctx context.Context, b *types.MemoryBlock, expectedVersion *int) error
	DeleteBlock(ctx context.Context, id string) error
	CreateNamespace(ctx context.Context, ns *types.Namespace) error
	GetNamespace(ctx context.Context, id string) (*types.Namespace, error)
	ListNamespaces(ctx context.Context) ([]*types.Namespace, error)
	AppendProof(ctx context.Context, p *types.BlockProof) error

	Add(ctx context.Context, tables ...string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
	Branch(ctx context.Context, name string) error
	Checkout(ctx context.Context, branch string) error
	Merge(ctx context.Context, branch string) ([]dolt.Conflict, error)
	CurrentBranch(ctx context.Context) (string, error)
	DeleteBranch(ctx context.Context, branch string) error
	Log(ctx context.Context, limit int) ([]dolt.CommitInfo, error)
	Status(ctx context.Context) (*dolt.DoltStatus, error)
	ListBranches(ctx context.Context) ([]string, error)
	Diff(ctx context.Context, fromRev, toRev string) ([]dolt.DiffEntry, error)
	Reset(ctx context.Context, tables []string, hard bool) error
	AutoCommitAndPush(ctx context.Context, message string) (bool, error)
}

// Bank is the StructuredMemoryBank coordinator.
type Bank struct {
	store   Store
	links   *linkmanager.Manager
	vectors vectorindex.Index

	autoCommit bool

	nsMu    sync.RWMutex
	nsCache map[string]bool // normalized (lowercased) namespace id -> exists
	nsGroup singleflight.Group
}

// New builds a Bank. autoCommit controls whether mutations stage+commit
// immediately (spec.md §4.4 Auto-commit policy) or leave changes in the
// working set for an explicit branch-op tool to commit.
func New(store Store, links *linkmanager.Manager, vectors vectorindex.Index, autoCommit bool) *Bank {
	return &Bank{
		store:      store,
		links:      links,
		vectors:    vectors,
		autoCommit: autoCommit,
		nsCache:    map[string]bool{},
	}
}

// Result is the envelope every coordinator mutation returns alongside its
// error (spec.md §4.4 Failure model): the affected block, the commit hash, the
// active branch, and whether state may be inconsistent after a failed rollback.
// The machine-readable code and human message travel in the returned toolerr
// error.
type Result struct {
	Block        *types.MemoryBlock
	CommitHash   string
	ActiveBranch string
	Inconsistent bool
}

// CreateMemoryBlock validates the namespace, persists the block and its typed
// properties, mirrors it into the vector index, commits if auto-commit is on,
// and appends a create proof (with an "uncommitted:" marker in place of a
// commit hash when auto-commit is off).
func (b *Bank) CreateMemoryBlock(ctx context.Context, draft *types.BlockDraft) (*Result, error) {
	if err := b.validateNamespace(ctx, draft.NamespaceID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := types.StateDraft
	if draft.State != nil {
		state = *draft.State
	}
	visibility := types.VisibilityInternal
	if draft.Visibility != nil {
		visibility = *draft.Visibility
	}

	block := &types.MemoryBlock{
		ID:            uuid.NewString(),
		NamespaceID:   draft.NamespaceID,
		Type:          draft.Type,
		SchemaVersion: draft.SchemaVersion,
		Text:          draft.Text,
		State:         state,
		Visibility:    visibility,
		BlockVersion:  1,
		Tags:          types.DedupTags(draft.Tags),
		Metadata:      draft.Metadata,
		SourceFile:    draft.SourceFile,
		SourceURI:     draft.SourceURI,
		CreatedBy:     draft.CreatedBy,
		Confidence:    draft.Confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
		Embedding:     draft.Embedding,
	}
	if err := block.Validate(); err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid block")
	}

	if err := b.store.CreateBlock(ctx, block); err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "create block %s", block.ID)
	}

	if err := b.vectors.AddBlock(ctx, block); err != nil {
		if rbErr := b.store.DeleteBlock(ctx, block.ID); rbErr != nil {
			return nil, toolerr.Wrap(toolerr.PersistenceFailure, fmt.Errorf("vector add failed (%v) and rollback failed: %w", err, rbErr),
				"create block %s: inconsistent state", block.ID)
		}
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "vector index add failed, SQL write rolled back")
	}

	return b.finishMutation(ctx, block, types.ProofCreate)
}

// GetMemoryBlock loads a single block by id.
func (b *Bank) GetMemoryBlock(ctx context.Context, id string) (*types.MemoryBlock, error) {
	block, err := b.store.GetBlock(ctx, id)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "get block %s", id)
	}
	if block == nil {
		return nil, toolerr.New(toolerr.BlockNotFound, "block %s not found", id)
	}
	return block, nil
}

// GetAllMemoryBlocks returns all blocks matching filter.
func (b *Bank) GetAllMemoryBlocks(ctx context.Context, filter types.Filter) ([]*types.MemoryBlock, error) {
	blocks, err := b.store.ListBlocks(ctx, filter)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "list blocks")
	}
	return blocks, nil
}

// Patch describes an update_memory_block request: zero-value fields are
// left unchanged unless the corresponding Set* flag is true, and the merge
// flags control whether Tags/Metadata are merged into the existing value or
// replace it outright (spec.md §4.5 Patch semantics).
type Patch struct {
	PreviousBlockVersion *int

	Text    *string
	State   *types.BlockState
	Tags    []string
	Metadata map[string]types.MetadataValue

	MergeTags     bool
	MergeMetadata bool
}

// UpdateMemoryBlock reads the current version, enforces the optimistic lock
// when PreviousBlockVersion is supplied, applies the patch, re-writes
// properties, updates the vector index, and proofs with "update".
func (b *Bank) UpdateMemoryBlock(ctx context.Context, id string, patch Patch) (*Result, error) {
	current, err := b.store.GetBlock(ctx, id)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "get block %s", id)
	}
	if current == nil {
		return nil, toolerr.New(toolerr.BlockNotFound, "block %s not found", id)
	}

	if patch.PreviousBlockVersion != nil && *patch.PreviousBlockVersion != current.BlockVersion {
		return nil, toolerr.New(toolerr.VersionConflict,
			"block %s: expected version %d, found %d", id, *patch.PreviousBlockVersion, current.BlockVersion)
	}

	if patch.Text != nil {
		current.Text = *patch.Text
	}
	if patch.State != nil {
		current.State = *patch.State
	}
	if patch.Tags != nil {
		if patch.MergeTags {
			current.Tags = types.DedupTags(append(append([]string{}, current.Tags...), patch.Tags...))
		} else {
			current.Tags = types.DedupTags(patch.Tags)
		}
	}
	if patch.Metadata != nil {
		if patch.MergeMetadata {
			current.Metadata = types.MergeMetadata(current.Metadata, patch.Metadata)
		} else {
			current.Metadata = patch.Metadata
		}
	}

	current.BlockVersion++
	current.UpdatedAt = time.Now().UTC()

	if err := current.Validate(); err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid block")
	}

	expected := current.BlockVersion - 1
	if err := b.store.UpdateBlock(ctx, current, &expected); err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "update block %s", id)
	}

	if err := b.vectors.UpdateBlock(ctx, current); err != nil {
		return nil, toolerr.Wrap(toolerr.ReIndexFailure, err, "vector index update failed for block %s", id)
	}

	return b.finishMutation(ctx, current, types.ProofUpdate)
}

// DeleteMemoryBlock removes a block's links, properties, and row, then
// deletes it from the vector index and proofs with "delete". Dependent-link
// blocking (DEPENDENCIES_EXIST unless forced) is the caller's (tool-layer)
// responsibility: the bank always performs the delete it's asked to.
func (b *Bank) DeleteMemoryBlock(ctx context.Context, id string) (*Result, error) {
	block, err := b.store.GetBlock(ctx, id)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "get block %s", id)
	}
	if block == nil {
		return nil, toolerr.New(toolerr.BlockNotFound, "block %s not found", id)
	}

	if err := b.store.DeleteBlock(ctx, id); err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "delete block %s", id)
	}

	if err := b.vectors.DeleteBlock(ctx, id); err != nil {
		return nil, toolerr.Wrap(toolerr.ReIndexFailure, err, "vector index delete failed for block %s", id)
	}

	return b.finishMutation(ctx, block, types.ProofDelete)
}

// finishMutation applies the auto-commit policy and appends a proof, shared
// by create/update/delete.
func (b *Bank) finishMutation(ctx context.Context, block *types.MemoryBlock, op types.ProofOperation) (*Result, error) {
	branch, branchErr := b.store.CurrentBranch(ctx)
	if branchErr != nil {
		branch = ""
	}

	var commitHash string
	if b.autoCommit {
		message := fmt.Sprintf("%s block %s", op, block.ID)
		if err := b.store.Commit(ctx, message); err != nil {
			// Discard the uncommitted write; state is only inconsistent if
			// that rollback fails too.
			inconsistent := b.store.Reset(ctx, nil, true) != nil
			return &Result{Block: block, ActiveBranch: branch, Inconsistent: inconsistent},
				toolerr.Wrap(toolerr.CommitFailed, err, "commit after %s of block %s", op, block.ID)
		}
		log, err := b.store.Log(ctx, 1)
		if err == nil && len(log) > 0 {
			commitHash = log[0].Hash
		}
	} else {
		commitHash = "uncommitted:" + uuid.NewString()
	}

	proof := &types.BlockProof{
		BlockID:    block.ID,
		Operation:  op,
		CommitHash: commitHash,
		Timestamp:  time.Now().UTC(),
	}
	if err := b.store.AppendProof(ctx, proof); err != nil {
		return &Result{Block: block, CommitHash: commitHash, ActiveBranch: branch},
			toolerr.Wrap(toolerr.PersistenceFailure, err, "append proof for block %s", block.ID)
	}

	return &Result{Block: block, CommitHash: commitHash, ActiveBranch: branch}, nil
}

// validateNamespace normalizes id case-insensitively, short-circuits for the
// reserved "legacy" namespace, and caches lookups process-locally (spec.md
// §4.4 Namespace validation). Only positive lookups short-circuit; a miss or a
// cached negative re-checks storage, with concurrent checks of one id collapsed
// into a single round-trip. Entries are dropped by InvalidateNamespaceCache,
// which CreateNamespace calls.
func (b *Bank) validateNamespace(ctx context.Context, id string) error {
	if id == "" {
		return toolerr.New(toolerr.NamespaceNotFound, "namespace_id is required")
	}
	normalized := strings.ToLower(id)
	if normalized == types.LegacyNamespace {
		return nil
	}

	b.nsMu.RLock()
	exists, cached := b.nsCache[normalized]
	b.nsMu.RUnlock()
	if cached && exists {
		return nil
	}

	// Collapse concurrent misses on the same namespace into a single storage
	// round-trip rather than letting every caller race to populate the cache.
	v, err, _ := b.nsGroup.Do(normalized, func() (interface{}, error) {
		ns, err := b.store.GetNamespace(ctx, id)
		if err != nil {
			return nil, err
		}
		b.nsMu.Lock()
		b.nsCache[normalized] = ns != nil && ns.IsActive
		b.nsMu.Unlock()
		return ns, nil
	})
	if err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "look up namespace %s", id)
	}
	ns, _ := v.(*types.Namespace)
	if ns == nil || !ns.IsActive {
		return toolerr.New(toolerr.NamespaceNotFound, "namespace %q not found", id)
	}
	return nil
}

// InvalidateNamespaceCache drops a cached namespace-existence entry. Call
// this after namespace create/delete so the next validateNamespace call
// re-checks storage (spec.md §4.4: "Cache entries are invalidated on
// namespace create/delete").
func (b *Bank) InvalidateNamespaceCache(id string) {
	b.nsMu.Lock()
	defer b.nsMu.Unlock()
	delete(b.nsCache, strings.ToLower(id))
}

// Links exposes the LinkManager for tools that operate on links directly.
func (b *Bank) Links() *linkmanager.Manager { return b.links }

// SetBlockNamespace moves a block to a different namespace, validating the
// target first. Used by the BulkUpdateNamespace tool, which stages many of
// these together and commits once (spec.md §4.5).
func (b *Bank) SetBlockNamespace(ctx context.Context, blockID, namespaceID string) (*Result, error) {
	if err := b.validateNamespace(ctx, namespaceID); err != nil {
		return nil, err
	}

	current, err := b.store.GetBlock(ctx, blockID)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "get block %s", blockID)
	}
	if current == nil {
		return nil, toolerr.New(toolerr.BlockNotFound, "block %s not found", blockID)
	}

	current.NamespaceID = namespaceID
	current.BlockVersion++
	current.UpdatedAt = time.Now().UTC()

	expected := current.BlockVersion - 1
	if err := b.store.UpdateBlock(ctx, current, &expected); err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "update block %s namespace", blockID)
	}

	return &Result{Block: current}, nil
}

// CreateNamespace persists a new namespace and invalidates any cached
// negative lookup for its id (spec.md §4.4: cache entries invalidated on
// namespace create/delete).
func (b *Bank) CreateNamespace(ctx context.Context, ns *types.Namespace) error {
	if err := b.store.CreateNamespace(ctx, ns); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "create namespace %s", ns.ID)
	}
	b.InvalidateNamespaceCache(ns.ID)
	return nil
}

// ListNamespaces returns every namespace.
func (b *Bank) ListNamespaces(ctx context.Context) ([]*types.Namespace, error) {
	namespaces, err := b.store.ListNamespaces(ctx)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "list namespaces")
	}
	return namespaces, nil
}

// The methods below are thin pass-throughs to the underlying Store's branch
// and version-control operations, exposed here so the branch-op tools never
// need a direct dependency on internal/storage/dolt.

func (b *Bank) Add(ctx context.Context, tables ...string) error {
	if err := b.store.Add(ctx, tables...); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt add")
	}
	return nil
}

func (b *Bank) Commit(ctx context.Context, message string) error {
	if err := b.store.Commit(ctx, message); err != nil {
		return toolerr.Wrap(toolerr.CommitFailed, err, "dolt commit")
	}
	return nil
}

func (b *Bank) Push(ctx context.Context) error {
	if err := b.store.Push(ctx); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt push")
	}
	return nil
}

func (b *Bank) Pull(ctx context.Context) error {
	if err := b.store.Pull(ctx); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt pull")
	}
	return nil
}

func (b *Bank) Branch(ctx context.Context, name string) error {
	if err := b.store.Branch(ctx, name); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt branch %s", name)
	}
	return nil
}

func (b *Bank) Checkout(ctx context.Context, branch string) error {
	if err := b.store.Checkout(ctx, branch); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt checkout %s", branch)
	}
	return nil
}

func (b *Bank) Merge(ctx context.Context, branch string) ([]dolt.Conflict, error) {
	conflicts, err := b.store.Merge(ctx, branch)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt merge %s", branch)
	}
	return conflicts, nil
}

func (b *Bank) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := b.store.CurrentBranch(ctx)
	if err != nil {
		return "", toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt current branch")
	}
	return branch, nil
}

func (b *Bank) ListBranches(ctx context.Context) ([]string, error) {
	branches, err := b.store.ListBranches(ctx)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt list branches")
	}
	return branches, nil
}

func (b *Bank) Status(ctx context.Context) (*dolt.DoltStatus, error) {
	status, err := b.store.Status(ctx)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt status")
	}
	return status, nil
}

func (b *Bank) Diff(ctx context.Context, fromRev, toRev string) ([]dolt.DiffEntry, error) {
	diff, err := b.store.Diff(ctx, fromRev, toRev)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt diff %s..%s", fromRev, toRev)
	}
	return diff, nil
}

func (b *Bank) Reset(ctx context.Context, tables []string, hard bool) error {
	if err := b.store.Reset(ctx, tables, hard); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt reset")
	}
	return nil
}

func (b *Bank) AutoCommitAndPush(ctx context.Context, message string) (bool, error) {
	pushed, err := b.store.AutoCommitAndPush(ctx, message)
	if err != nil {
		return false, toolerr.Wrap(toolerr.PersistenceFailure, err, "dolt auto-commit-and-push")
	}
	return pushed, nil
}
