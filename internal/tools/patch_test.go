package tools

import (
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

func unifiedDiffFor(t *testing.T, before, after string) string {
	t.Helper()
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	patches := dmp.PatchMake(before, diffs)
	return dmp.PatchToText(patches)
}

func TestApplyUnifiedDiffAppliesCleanly(t *testing.T) {
	before := "the quick brown fox"
	after := "the quick red fox"
	patch := unifiedDiffFor(t, before, after)

	got, err := applyUnifiedDiff(before, patch)
	if err != nil {
		t.Fatalf("applyUnifiedDiff: %v", err)
	}
	if got != after {
		t.Fatalf("got %q, want %q", got, after)
	}
}

func TestApplyUnifiedDiffRejectsOversizedPatch(t *testing.T) {
	huge := strings.Repeat("x", maxPatchBytes+1)
	_, err := applyUnifiedDiff("base", huge)
	if toolerr.CodeOf(err) != toolerr.PatchSizeLimitError {
		t.Fatalf("got code %v, want %v", toolerr.CodeOf(err), toolerr.PatchSizeLimitError)
	}
}

func TestApplyUnifiedDiffRejectsMalformedPatch(t *testing.T) {
	_, err := applyUnifiedDiff("base", "not a patch at all")
	if toolerr.CodeOf(err) != toolerr.PatchParseError {
		t.Fatalf("got code %v, want %v", toolerr.CodeOf(err), toolerr.PatchParseError)
	}
}

func TestApplyUnifiedDiffRejectsNonApplyingPatch(t *testing.T) {
	patch := unifiedDiffFor(t, "the quick brown fox", "the quick red fox")
	_, err := applyUnifiedDiff("a completely different document", patch)
	if toolerr.CodeOf(err) != toolerr.PatchApplyError {
		t.Fatalf("got code %v, want %v", toolerr.CodeOf(err), toolerr.PatchApplyError)
	}
}

func mustMetadataValue(t *testing.T, v interface{}) types.MetadataValue {
	t.Helper()
	mv, err := types.FromJSON(v)
	if err != nil {
		t.Fatalf("FromJSON(%v): %v", v, err)
	}
	return mv
}

func TestApplyJSONPatchAddReplaceRemove(t *testing.T) {
	current := map[string]types.MetadataValue{
		"owner": mustMetadataValue(t, "alice"),
		"count": mustMetadataValue(t, 1.0),
	}
	ops := []JSONPatchOp{
		{Op: "replace", Path: "/owner", Value: "bob"},
		{Op: "add", Path: "/priority", Value: "high"},
		{Op: "remove", Path: "/count"},
	}

	out, err := applyJSONPatch(current, ops)
	if err != nil {
		t.Fatalf("applyJSONPatch: %v", err)
	}
	if out["owner"].ToJSON() != "bob" {
		t.Fatalf("owner = %v, want bob", out["owner"].ToJSON())
	}
	if out["priority"].ToJSON() != "high" {
		t.Fatalf("priority = %v, want high", out["priority"].ToJSON())
	}
	if _, ok := out["count"]; ok {
		t.Fatalf("count should have been removed")
	}
	if _, ok := current["priority"]; ok {
		t.Fatalf("applyJSONPatch must not mutate its input map")
	}
}

func TestApplyJSONPatchRemoveMissingKeyFails(t *testing.T) {
	current := map[string]types.MetadataValue{}
	_, err := applyJSONPatch(current, []JSONPatchOp{{Op: "remove", Path: "/missing"}})
	if toolerr.CodeOf(err) != toolerr.PatchApplyError {
		t.Fatalf("got code %v, want %v", toolerr.CodeOf(err), toolerr.PatchApplyError)
	}
}

func TestApplyJSONPatchUnsupportedOpFails(t *testing.T) {
	current := map[string]types.MetadataValue{"a": mustMetadataValue(t, "b")}
	_, err := applyJSONPatch(current, []JSONPatchOp{{Op: "move", Path: "/a"}})
	if toolerr.CodeOf(err) != toolerr.PatchParseError {
		t.Fatalf("got code %v, want %v", toolerr.CodeOf(err), toolerr.PatchParseError)
	}
}

func TestPatchKeyRequiresLeadingSlash(t *testing.T) {
	if _, err := patchKey("no-leading-slash"); err == nil {
		t.Fatalf("expected an error for a path with no leading slash")
	}
	key, err := patchKey("/owner")
	if err != nil {
		t.Fatalf("patchKey: %v", err)
	}
	if key != "owner" {
		t.Fatalf("got %q, want owner", key)
	}
}
