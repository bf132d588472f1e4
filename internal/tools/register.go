package tools

import (
	"github.com/cogniwarden/memory/internal/config"
	"github.com/cogniwarden/memory/internal/vectorindex"
)

// RegisterAll wires every tool category into r. idx is threaded through to
// the handful of tools that query the vector index directly rather than
// through the bank's mutation path (GlobalSemanticSearch, QueryDocMemoryBlock,
// HealthCheck). cfg backs SetContext's runtime branch/namespace mutators.
func RegisterAll(r *Registry, idx vectorindex.Index, cfg *config.Watcher) {
	registerBlockTools(r)
	registerLinkTools(r)
	registerNamespaceTools(r)
	registerBulkTools(r)
	registerWorkItemTools(r)
	registerDocTools(r, idx)
	registerSystemTools(r, idx)
	registerBranchTools(r)
	registerGlobalTools(r, idx, cfg)
}
