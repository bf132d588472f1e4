package tools

import (
	"context"
	"time"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/vectorindex"
)

func registerSystemTools(r *Registry, idx vectorindex.Index) {
	r.Register(&Tool{
		Name:         "HealthCheck",
		Description:  "Report whether the SQL store and vector index are reachable.",
		MemoryLinked: true,
		NewArgs:      func() Args { return newHealthCheckArgs(idx) },
		Func:         healthCheck,
	})
}

// HealthCheckArgs is the HealthCheck input model (no fields).
type HealthCheckArgs struct {
	idx vectorindex.Index
}

func newHealthCheckArgs(idx vectorindex.Index) *HealthCheckArgs {
	return &HealthCheckArgs{idx: idx}
}

func (a *HealthCheckArgs) Validate() error { return nil }

// HealthStatus is the HealthCheck result shape.
type HealthStatus struct {
	Healthy       bool   `json:"healthy"`
	StoreReady    bool   `json:"store_ready"`
	VectorReady   bool   `json:"vector_index_ready"`
	CurrentBranch string `json:"current_branch,omitempty"`
	Error         string `json:"error,omitempty"`
}

func healthCheck(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*HealthCheckArgs)

	status := HealthStatus{VectorReady: a.idx != nil && a.idx.IsReady(ctx)}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	branch, err := b.CurrentBranch(checkCtx)
	if err != nil {
		status.Error = err.Error()
	} else {
		status.StoreReady = true
		status.CurrentBranch = branch
	}

	status.Healthy = status.StoreReady && status.VectorReady
	return status, nil
}
