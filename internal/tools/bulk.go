package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/toolerr"
)

// maxBulkConcurrency bounds how many items in one bulk call run against the
// store/vector index at once (spec.md §5: "pathological latency" must be
// bounded; an unbounded bulk fan-out could exhaust the connection pool).
const maxBulkConcurrency = 8

func registerBulkTools(r *Registry) {
	r.Register(&Tool{Name: "BulkCreateBlocks", Description: "Create many memory blocks in one call.", MemoryLinked: true,
		NewArgs: func() Args { return &BulkCreateBlocksArgs{} }, Func: bulkCreateBlocks})
	r.Register(&Tool{Name: "BulkCreateLinks", Description: "Create many block links in one call.", MemoryLinked: true,
		NewArgs: func() Args { return &BulkCreateLinksArgs{} }, Func: bulkCreateLinks})
	r.Register(&Tool{Name: "BulkDeleteBlocks", Description: "Delete many memory blocks in one call.", MemoryLinked: true,
		NewArgs: func() Args { return &BulkDeleteBlocksArgs{} }, Func: bulkDeleteBlocks})
	r.Register(&Tool{Name: "BulkUpdateNamespace", Description: "Re-namespace many memory blocks, committing once at the end.", MemoryLinked: true,
		NewArgs: func() Args { return &BulkUpdateNamespaceArgs{} }, Func: bulkUpdateNamespace})
}

// ItemResult is one entry in a bulk envelope's results list (spec.md §4.5
// Bulk tool semantics).
type ItemResult struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Result    interface{} `json:"result,omitempty"`
}

// BulkEnvelope is the shared result shape for every bulk tool.
type BulkEnvelope struct {
	Success          bool           `json:"success"`
	PartialSuccess   bool           `json:"partial_success"`
	Results          []ItemResult   `json:"results"`
	SkippedBlockIDs  []string       `json:"skipped_block_ids,omitempty"`
	ErrorSummary     map[string]int `json:"error_summary,omitempty"`
}

// runBulk executes work for each of n items, stopping early (and recording
// the remainder as skipped) when stopOnFirstError is set and an item fails.
// work must be safe to call concurrently across different indices.
//
// stopOnFirstError forces strictly sequential dispatch: item i+1 is only
// started once item i has finished and been checked, so a failure at item i
// always skips exactly items i+1..n-1 (spec.md §4.5), never a concurrency-
// dependent subset of them. Without stopOnFirstError, items run with bounded
// concurrency since there is no ordering contract to preserve.
func runBulk(ctx context.Context, n int, stopOnFirstError bool, skippedID func(i int) string, work func(ctx context.Context, i int) (interface{}, error)) BulkEnvelope {
	results := make([]ItemResult, n)
	attempted := make([]bool, n)

	if stopOnFirstError {
		for i := 0; i < n; i++ {
			attempted[i] = true
			start := time.Now()
			result, err := work(ctx, i)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				results[i] = newFailedItemResult(err, elapsed)
				break
			}
			results[i] = ItemResult{Success: true, Result: result, DurationMS: elapsed}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxBulkConcurrency)

		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				attempted[i] = true
				start := time.Now()
				result, err := work(gctx, i)
				elapsed := time.Since(start).Milliseconds()
				if err != nil {
					results[i] = newFailedItemResult(err, elapsed)
					return nil
				}
				results[i] = ItemResult{Success: true, Result: result, DurationMS: elapsed}
				return nil
			})
		}
		_ = g.Wait()
	}

	env := BulkEnvelope{ErrorSummary: map[string]int{}}
	anySuccess := false
	allSuccess := true
	var skipped []string
	attemptedResults := make([]ItemResult, 0, n)
	for i, r := range results {
		if !attempted[i] {
			if skippedID != nil {
				skipped = append(skipped, skippedID(i))
			}
			allSuccess = false
			continue
		}
		attemptedResults = append(attemptedResults, r)
		if r.Success {
			anySuccess = true
		} else {
			allSuccess = false
			env.ErrorSummary[r.ErrorCode]++
		}
	}
	env.Results = attemptedResults
	env.SkippedBlockIDs = skipped
	env.Success = allSuccess
	env.PartialSuccess = anySuccess
	return env
}

func newFailedItemResult(err error, elapsedMS int64) ItemResult {
	te, ok := toolerr.As(err)
	code := string(toolerr.InternalError)
	msg := err.Error()
	if ok {
		code = string(te.Code)
		msg = te.Message
	}
	return ItemResult{Success: false, Error: msg, ErrorCode: code, DurationMS: elapsedMS}
}

// bulkItems decodes raw as either a bare top-level array of T, or an object
// of the form {"items": [...], ...}. The object form is tried first so a
// bulk tool can also carry non-item fields like stop_on_first_error.
func bulkItems[T any](raw json.RawMessage, target *[]T) error {
	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Items != nil {
		*target = wrapped.Items
		return nil
	}
	var bare []T
	if err := json.Unmarshal(raw, &bare); err != nil {
		return fmt.Errorf("expected an array or an object with an \"items\" array: %w", err)
	}
	*target = bare
	return nil
}

// BulkCreateBlocksArgs is the BulkCreateBlocks input model.
type BulkCreateBlocksArgs struct {
	Items            []CreateMemoryBlockArgs `json:"items"`
	StopOnFirstError bool                    `json:"stop_on_first_error,omitempty"`
}

func (a *BulkCreateBlocksArgs) UnmarshalJSON(data []byte) error {
	type alias struct {
		StopOnFirstError bool `json:"stop_on_first_error,omitempty"`
	}
	var wrapper alias
	_ = json.Unmarshal(data, &wrapper)
	a.StopOnFirstError = wrapper.StopOnFirstError
	return bulkItems(data, &a.Items)
}

func (a *BulkCreateBlocksArgs) Validate() error {
	if len(a.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for i, item := range a.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func bulkCreateBlocks(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*BulkCreateBlocksArgs)
	env := runBulk(ctx, len(a.Items), a.StopOnFirstError, nil, func(ctx context.Context, i int) (interface{}, error) {
		return createMemoryBlock(ctx, b, &a.Items[i])
	})
	return env, nil
}

// BulkCreateLinksArgs is the BulkCreateLinks input model.
type BulkCreateLinksArgs struct {
	Items            []CreateBlockLinkArgs `json:"items"`
	StopOnFirstError bool                  `json:"stop_on_first_error,omitempty"`
}

func (a *BulkCreateLinksArgs) UnmarshalJSON(data []byte) error {
	type alias struct {
		StopOnFirstError bool `json:"stop_on_first_error,omitempty"`
	}
	var wrapper alias
	_ = json.Unmarshal(data, &wrapper)
	a.StopOnFirstError = wrapper.StopOnFirstError
	return bulkItems(data, &a.Items)
}

func (a *BulkCreateLinksArgs) Validate() error {
	if len(a.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for i, item := range a.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func bulkCreateLinks(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*BulkCreateLinksArgs)
	env := runBulk(ctx, len(a.Items), a.StopOnFirstError, nil, func(ctx context.Context, i int) (interface{}, error) {
		return createBlockLink(ctx, b, &a.Items[i])
	})
	return env, nil
}

// BulkDeleteBlocksArgs is the BulkDeleteBlocks input model.
type BulkDeleteBlocksArgs struct {
	BlockIDs         []string `json:"block_ids"`
	Force            bool     `json:"force,omitempty"`
	StopOnFirstError bool     `json:"stop_on_first_error,omitempty"`
}

func (a *BulkDeleteBlocksArgs) Validate() error {
	if len(a.BlockIDs) == 0 {
		return fmt.Errorf("block_ids must not be empty")
	}
	return nil
}

func bulkDeleteBlocks(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*BulkDeleteBlocksArgs)
	env := runBulk(ctx, len(a.BlockIDs), a.StopOnFirstError,
		func(i int) string { return a.BlockIDs[i] },
		func(ctx context.Context, i int) (interface{}, error) {
			return deleteMemoryBlock(ctx, b, &DeleteMemoryBlockArgs{BlockID: a.BlockIDs[i], Force: a.Force})
		})
	return env, nil
}

// BulkUpdateNamespaceArgs is the BulkUpdateNamespace input model. Unlike the
// other bulk tools, successful per-block updates stage together and a single
// commit is attempted at the end (spec.md §4.5): on commit failure every
// previously "successful" entry is downgraded to failed with COMMIT_FAILED.
type BulkUpdateNamespaceArgs struct {
	BlockIDs         []string `json:"block_ids"`
	NamespaceID      string   `json:"namespace_id"`
	StopOnFirstError bool     `json:"stop_on_first_error,omitempty"`
}

func (a *BulkUpdateNamespaceArgs) Validate() error {
	if len(a.BlockIDs) == 0 {
		return fmt.Errorf("block_ids must not be empty")
	}
	if a.NamespaceID == "" {
		return fmt.Errorf("namespace_id is required")
	}
	return nil
}

func bulkUpdateNamespace(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*BulkUpdateNamespaceArgs)

	env := runBulk(ctx, len(a.BlockIDs), a.StopOnFirstError,
		func(i int) string { return a.BlockIDs[i] },
		func(ctx context.Context, i int) (interface{}, error) {
			return b.SetBlockNamespace(ctx, a.BlockIDs[i], a.NamespaceID)
		})

	if env.PartialSuccess {
		if err := b.Commit(ctx, fmt.Sprintf("bulk update namespace to %s", a.NamespaceID)); err != nil {
			// All-or-nothing: a failed commit discards every uncommitted
			// per-block update in the working set rather than leaving a
			// partially staged, never-committed namespace change behind.
			_ = b.Reset(ctx, nil, true)
			code := string(toolerr.CommitFailed)
			for i := range env.Results {
				if env.Results[i].Success {
					env.Results[i] = ItemResult{Success: false, Error: err.Error(), ErrorCode: code}
					env.ErrorSummary[code]++
				}
			}
			env.Success = false
			env.PartialSuccess = false
		}
	}

	return env, nil
}
