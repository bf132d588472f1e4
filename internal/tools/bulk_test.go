package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cogniwarden/memory/internal/toolerr"
)

func TestRunBulkAllSucceed(t *testing.T) {
	env := runBulk(context.Background(), 5, false, nil, func(ctx context.Context, i int) (interface{}, error) {
		return i * 2, nil
	})
	if !env.Success || !env.PartialSuccess {
		t.Fatalf("got success=%v partial=%v, want success=true partial=true", env.Success, env.PartialSuccess)
	}
	if len(env.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(env.Results))
	}
	for i, r := range env.Results {
		if !r.Success || r.Result != i*2 {
			t.Fatalf("result %d = %+v, want success with value %d", i, r, i*2)
		}
	}
}

func TestRunBulkPartialFailureWithoutStop(t *testing.T) {
	env := runBulk(context.Background(), 4, false, nil, func(ctx context.Context, i int) (interface{}, error) {
		if i%2 == 0 {
			return nil, toolerr.New(toolerr.ValidationError, "bad item %d", i)
		}
		return i, nil
	})
	if env.Success {
		t.Fatalf("expected overall success=false")
	}
	if !env.PartialSuccess {
		t.Fatalf("expected partial_success=true")
	}
	if len(env.Results) != 4 {
		t.Fatalf("got %d results, want 4 (no items should be skipped without stop_on_first_error)", len(env.Results))
	}
	if env.ErrorSummary[string(toolerr.ValidationError)] != 2 {
		t.Fatalf("error_summary[%s] = %d, want 2", toolerr.ValidationError, env.ErrorSummary[string(toolerr.ValidationError)])
	}
}

func TestRunBulkStopOnFirstErrorSkipsRemainder(t *testing.T) {
	const n = 20
	env := runBulk(context.Background(), n, true,
		func(i int) string { return "id-" + string(rune('a'+i)) },
		func(ctx context.Context, i int) (interface{}, error) {
			if i == 0 {
				return nil, errors.New("boom")
			}
			return i, nil
		})

	if env.Success {
		t.Fatalf("expected overall success=false")
	}
	if len(env.SkippedBlockIDs) == 0 {
		t.Fatalf("expected at least one skipped item under stop_on_first_error")
	}
	attemptedCount := 0
	for _, r := range env.Results {
		if r.Success || r.Error != "" {
			attemptedCount++
		}
	}
	if attemptedCount+len(env.SkippedBlockIDs) != n {
		t.Fatalf("attempted(%d) + skipped(%d) != n(%d)", attemptedCount, len(env.SkippedBlockIDs), n)
	}
}

// TestRunBulkStopOnFirstErrorSkipsExactRemainderAtSmallN pins the literal
// remainder contract at a scale at or under maxBulkConcurrency, where a
// concurrent dispatch would otherwise race every item's stop-check against
// item 0's failure.
func TestRunBulkStopOnFirstErrorSkipsExactRemainderAtSmallN(t *testing.T) {
	const n = 2
	ids := []string{"id-0", "id-1"}
	env := runBulk(context.Background(), n, true,
		func(i int) string { return ids[i] },
		func(ctx context.Context, i int) (interface{}, error) {
			if i == 0 {
				return nil, errors.New("boom")
			}
			return i, nil
		})

	if env.Success {
		t.Fatalf("expected overall success=false")
	}
	if len(env.Results) != 1 || env.Results[0].Success {
		t.Fatalf("expected exactly one attempted (and failed) result, got %+v", env.Results)
	}
	if len(env.SkippedBlockIDs) != 1 || env.SkippedBlockIDs[0] != "id-1" {
		t.Fatalf("got skipped_block_ids=%v, want exactly [id-1]", env.SkippedBlockIDs)
	}
}

func TestRunBulkDistinguishesFastFailureFromSkipped(t *testing.T) {
	// A failure with zero measured duration must still be counted as attempted,
	// not misclassified as skipped (the bug this test guards against used a
	// zero-value heuristic instead of an explicit attempted tracker).
	env := runBulk(context.Background(), 1, false, func(i int) string { return "only" },
		func(ctx context.Context, i int) (interface{}, error) {
			return nil, toolerr.New(toolerr.InternalError, "instant failure")
		})
	if len(env.SkippedBlockIDs) != 0 {
		t.Fatalf("a failed-but-attempted item must not appear in skipped_block_ids")
	}
	if len(env.Results) != 1 || env.Results[0].Success {
		t.Fatalf("expected one failed result, got %+v", env.Results)
	}
}

func TestBulkItemsAcceptsWrappedObject(t *testing.T) {
	var items []int
	raw := json.RawMessage(`{"items": [1, 2, 3], "stop_on_first_error": true}`)
	if err := bulkItems(raw, &items); err != nil {
		t.Fatalf("bulkItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %v, want 3 items", items)
	}
}

func TestBulkItemsAcceptsBareArray(t *testing.T) {
	var items []int
	raw := json.RawMessage(`[4, 5]`)
	if err := bulkItems(raw, &items); err != nil {
		t.Fatalf("bulkItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %v, want 2 items", items)
	}
}

func TestBulkItemsRejectsNeitherShape(t *testing.T) {
	var items []int
	raw := json.RawMessage(`"just a string"`)
	if err := bulkItems(raw, &items); err == nil {
		t.Fatalf("expected an error for input that is neither an array nor an items object")
	}
}
