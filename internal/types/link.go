package types

import "time"

// Relation is a canonical link relation name from the closed registry.
type Relation string

const (
	RelSubtaskOf   Relation = "subtask_of"
	RelDependsOn   Relation = "depends_on"
	RelBlocks      Relation = "blocks"
	RelChildOf     Relation = "child_of"
	RelParentOf    Relation = "parent_of"
	RelRelatedTo   Relation = "related_to"
	RelMentions    Relation = "mentions"
	RelDerivedFrom Relation = "derived_from"
)

// RelationDef describes one canonical relation: its optional inverse and
// whether cycle detection applies to it.
type RelationDef struct {
	Name         Relation
	Inverse      Relation // "" if none
	Hierarchical bool
}

// Registry is the closed, immutable set of canonical relations plus their
// aliases, initialized once at package load (spec.md §9: "Relation registry:
// immutable after initialization; lock-free").
var Registry = newRelationRegistry()

type relationRegistry struct {
	defs    map[Relation]RelationDef
	aliases map[string]Relation
}

func newRelationRegistry() *relationRegistry {
	defs := map[Relation]RelationDef{
		RelSubtaskOf:   {Name: RelSubtaskOf, Hierarchical: true},
		RelDependsOn:   {Name: RelDependsOn, Inverse: RelBlocks, Hierarchical: true},
		RelBlocks:      {Name: RelBlocks, Inverse: RelDependsOn, Hierarchical: false},
		RelChildOf:     {Name: RelChildOf, Inverse: RelParentOf, Hierarchical: true},
		RelParentOf:    {Name: RelParentOf, Inverse: RelChildOf, Hierarchical: true},
		RelRelatedTo:   {Name: RelRelatedTo},
		RelMentions:    {Name: RelMentions},
		RelDerivedFrom: {Name: RelDerivedFrom},
	}
	aliases := map[string]Relation{
		"is_blocked_by": RelDependsOn,
		"blocked_by":    RelDependsOn,
		"is_parent_of":  RelParentOf,
		"is_child_of":   RelChildOf,
		"relates_to":    RelRelatedTo,
		"mentioned_in":  RelMentions,
	}
	return &relationRegistry{defs: defs, aliases: aliases}
}

// Resolve maps an alias or canonical name to its canonical RelationDef.
func (r *relationRegistry) Resolve(name string) (RelationDef, bool) {
	if def, ok := r.defs[Relation(name)]; ok {
		return def, true
	}
	if canon, ok := r.aliases[name]; ok {
		return r.defs[canon], true
	}
	return RelationDef{}, false
}

// BlockLink is a directed typed link between two blocks.
type BlockLink struct {
	FromID       string
	ToID         string
	Relation     Relation
	Priority     int
	LinkMetadata map[string]MetadataValue
	CreatedBy    *string
	CreatedAt    time.Time
}
