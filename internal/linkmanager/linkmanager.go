// Package linkmanager is the only writer of block_links rows. It resolves
// relation aliases against the closed registry, enforces cycle-freedom for
// hierarchical relations via a depth-bounded DFS, and exposes paged reads.
package linkmanager

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

// DefaultMaxCycleDepth bounds the DFS walk used by cycle detection. Chosen
// generously above any realistic hierarchy depth while still bounding worst-case
// query fan-out on a pathological graph.
const DefaultMaxCycleDepth = 64

// DefaultPageSize bounds LinksFrom/LinksTo pages, including the pages read
// per node when walking the graph for cycle detection (every page is read).
const DefaultPageSize = 200

// Store is the slice of the SQL persistence layer LinkManager needs. Satisfied
// structurally by *dolt.DoltStore.
type Store interface {
	GetBlock(ctx context.Context, id string) (*types.MemoryBlock, error)
	CreateLink(ctx context.Context, l *types.BlockLink) error
	DeleteLink(ctx context.Context, fromID, toID string, relation types.Relation) error
	LinksFrom(ctx context.Context, blockID string, relation *types.Relation, cursor string, limit int) ([]*types.BlockLink, string, error)
	LinksTo(ctx context.Context, blockID string, relation *types.Relation, cursor string, limit int) ([]*types.BlockLink, string, error)
}

// Manager is the LinkManager described in spec.md §4.3.
type Manager struct {
	store         Store
	maxCycleDepth int
	pageSize      int
}

// New builds a Manager with default depth/page bounds.
func New(store Store) *Manager {
	return &Manager{store: store, maxCycleDepth: DefaultMaxCycleDepth, pageSize: DefaultPageSize}
}

// Page is one cursor-paged slice of links plus the cursor to fetch the next.
// An empty NextCursor means there is nothing more to read.
type Page struct {
	Links      []*types.BlockLink
	NextCursor string
}

// ResolveAlias maps an alias or canonical name to its canonical relation.
func ResolveAlias(name string) (types.Relation, error) {
	def, ok := types.Registry.Resolve(name)
	if !ok {
		return "", toolerr.New(toolerr.LinkValidationError, "unknown relation %q", name)
	}
	return def.Name, nil
}

// CreateLink creates a single directed link. A pre-existing identical triple is
// absorbed idempotently (spec.md §4.3: "idempotent creates may be absorbed"):
// the existing link is returned with no error.
func (m *Manager) CreateLink(ctx context.Context, fromID, toID, relationName string, priority int, metadata map[string]types.MetadataValue, createdBy *string) (*types.BlockLink, error) {
	def, ok := types.Registry.Resolve(relationName)
	if !ok {
		return nil, toolerr.New(toolerr.LinkValidationError, "unknown relation %q", relationName)
	}

	if err := m.checkEndpoint(ctx, fromID); err != nil {
		return nil, err
	}
	if err := m.checkEndpoint(ctx, toID); err != nil {
		return nil, err
	}

	if existing, err := m.findLink(ctx, fromID, toID, def.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if def.Hierarchical {
		reaches, err := m.canReach(ctx, toID, fromID, def.Name, m.maxCycleDepth)
		if err != nil {
			return nil, err
		}
		if reaches {
			return nil, toolerr.New(toolerr.LinkValidationError,
				"creating %s -%s-> %s would close a cycle", fromID, def.Name, toID)
		}
	}

	link := &types.BlockLink{
		FromID:       fromID,
		ToID:         toID,
		Relation:     def.Name,
		Priority:     priority,
		LinkMetadata: metadata,
		CreatedBy:    createdBy,
	}
	if err := m.store.CreateLink(ctx, link); err != nil {
		return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "create link %s -%s-> %s", fromID, def.Name, toID)
	}
	return link, nil
}

// CreateBidirectional creates the forward link and its canonical inverse
// atomically at the LinkManager level: if the inverse fails, the forward link
// is rolled back so that both succeed or neither does (spec.md §4.3).
func (m *Manager) CreateBidirectional(ctx context.Context, fromID, toID, relationName string, priority int, metadata map[string]types.MetadataValue, createdBy *string) (forward, inverse *types.BlockLink, retErr error) {
	def, ok := types.Registry.Resolve(relationName)
	if !ok {
		return nil, nil, toolerr.New(toolerr.LinkValidationError, "unknown relation %q", relationName)
	}
	if def.Inverse == "" {
		return nil, nil, toolerr.New(toolerr.LinkValidationError, "relation %q has no declared inverse", def.Name)
	}

	forward, err := m.CreateLink(ctx, fromID, toID, string(def.Name), priority, metadata, createdBy)
	if err != nil {
		return nil, nil, err
	}

	inverse, err = m.CreateLink(ctx, toID, fromID, string(def.Inverse), priority, metadata, createdBy)
	if err != nil {
		_ = m.store.DeleteLink(ctx, fromID, toID, def.Name)
		return nil, nil, err
	}

	return forward, inverse, nil
}

// DeleteLink removes one link identified by its (from, to, relation) key.
func (m *Manager) DeleteLink(ctx context.Context, fromID, toID, relationName string) error {
	def, ok := types.Registry.Resolve(relationName)
	if !ok {
		return toolerr.New(toolerr.LinkValidationError, "unknown relation %q", relationName)
	}
	if err := m.store.DeleteLink(ctx, fromID, toID, def.Name); err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "delete link %s -%s-> %s", fromID, def.Name, toID)
	}
	return nil
}

// LinksFrom returns links outgoing from id, optionally filtered to one relation.
func (m *Manager) LinksFrom(ctx context.Context, id string, relationName string, cursor string, limit int) (Page, error) {
	return m.page(ctx, m.store.LinksFrom, id, relationName, cursor, limit)
}

// LinksTo returns links incoming to id, optionally filtered to one relation.
func (m *Manager) LinksTo(ctx context.Context, id string, relationName string, cursor string, limit int) (Page, error) {
	return m.page(ctx, m.store.LinksTo, id, relationName, cursor, limit)
}

type pageFunc func(ctx context.Context, blockID string, relation *types.Relation, cursor string, limit int) ([]*types.BlockLink, string, error)

func (m *Manager) page(ctx context.Context, fn pageFunc, id, relationName, cursor string, limit int) (Page, error) {
	var relPtr *types.Relation
	if relationName != "" {
		def, ok := types.Registry.Resolve(relationName)
		if !ok {
			return Page{}, toolerr.New(toolerr.LinkValidationError, "unknown relation %q", relationName)
		}
		relPtr = &def.Name
	}
	if limit <= 0 {
		limit = m.pageSize
	}
	links, next, err := fn(ctx, id, relPtr, cursor, limit)
	if err != nil {
		return Page{}, toolerr.Wrap(toolerr.PersistenceFailure, err, "list links for %s", id)
	}
	return Page{Links: links, NextCursor: next}, nil
}

func (m *Manager) checkEndpoint(ctx context.Context, id string) error {
	block, err := m.store.GetBlock(ctx, id)
	if err != nil {
		return toolerr.Wrap(toolerr.PersistenceFailure, err, "look up block %s", id)
	}
	if block == nil {
		return toolerr.New(toolerr.LinkValidationError, "block %s does not exist", id)
	}
	return nil
}

func (m *Manager) findLink(ctx context.Context, fromID, toID string, relation types.Relation) (*types.BlockLink, error) {
	var cursor string
	for {
		links, next, err := m.store.LinksFrom(ctx, fromID, &relation, cursor, m.pageSize)
		if err != nil {
			return nil, toolerr.Wrap(toolerr.PersistenceFailure, err, "check duplicate link %s -%s-> %s", fromID, relation, toID)
		}
		for _, l := range links {
			if l.ToID == toID {
				return l, nil
			}
		}
		if next == "" {
			return nil, nil
		}
		cursor = next
	}
}

// canReach reports whether target is reachable from start by following
// outgoing links of relation, within depth hops. Used to detect whether
// inserting target->start would close a cycle: if start can already reach
// target, the new edge completes a cycle.
func (m *Manager) canReach(ctx context.Context, start, target string, relation types.Relation, depth int) (bool, error) {
	visited := map[string]bool{}
	return m.canReachDFS(ctx, start, target, relation, depth, visited)
}

func (m *Manager) canReachDFS(ctx context.Context, current, target string, relation types.Relation, depth int, visited map[string]bool) (bool, error) {
	if current == target {
		return true, nil
	}
	if depth <= 0 || visited[current] {
		return false, nil
	}
	visited[current] = true

	var cursor string
	for {
		links, next, err := m.store.LinksFrom(ctx, current, &relation, cursor, m.pageSize)
		if err != nil {
			return false, fmt.Errorf("walk links from %s: %w", current, err)
		}
		for _, l := range links {
			reached, err := m.canReachDFS(ctx, l.ToID, target, relation, depth-1, visited)
			if err != nil {
				return false, err
			}
			if reached {
				return true, nil
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return false, nil
}
