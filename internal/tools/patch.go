package tools

import (
	"encoding/json"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

// maxPatchBytes bounds both text_patch and metadata_patch payloads (spec.md
// §4.5: "Patches are size-bounded; a patch exceeding the bound fails with
// PATCH_SIZE_LIMIT_ERROR").
const maxPatchBytes = 256 * 1024

// applyUnifiedDiff applies a unified-diff-style text patch to current using
// the same patch format diffmatchpatch produces/consumes (a close relative of
// the unified diff format, tracked line-for-line against context).
func applyUnifiedDiff(current, patchText string) (string, error) {
	if len(patchText) > maxPatchBytes {
		return "", toolerr.New(toolerr.PatchSizeLimitError,
			"text patch is %d bytes, exceeds %d byte limit", len(patchText), maxPatchBytes)
	}
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return "", toolerr.Wrap(toolerr.PatchParseError, err, "parse text patch")
	}
	applied, oks := dmp.PatchApply(patches, current)
	for _, ok := range oks {
		if !ok {
			return "", toolerr.New(toolerr.PatchApplyError, "one or more patch hunks did not apply cleanly")
		}
	}
	return applied, nil
}

// JSONPatchOp is one RFC-6902 operation, restricted to the subset that makes
// sense against a flat MetadataValue map: add/replace/remove by top-level key.
// move/copy/test are not supported since block metadata has no nested paths.
type JSONPatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// applyJSONPatch applies ops to a copy of current, returning the result.
// current is never mutated.
func applyJSONPatch(current map[string]types.MetadataValue, ops []JSONPatchOp) (map[string]types.MetadataValue, error) {
	if encoded, err := json.Marshal(ops); err == nil && len(encoded) > maxPatchBytes {
		return nil, toolerr.New(toolerr.PatchSizeLimitError,
			"metadata patch is %d bytes, exceeds %d byte limit", len(encoded), maxPatchBytes)
	}

	out := make(map[string]types.MetadataValue, len(current))
	for k, v := range current {
		out[k] = v
	}

	for _, op := range ops {
		key, err := patchKey(op.Path)
		if err != nil {
			return nil, toolerr.Wrap(toolerr.PatchParseError, err, "parse patch path %q", op.Path)
		}
		switch op.Op {
		case "add", "replace":
			mv, err := types.FromJSON(op.Value)
			if err != nil {
				return nil, toolerr.Wrap(toolerr.PatchApplyError, err, "apply patch to %q", key)
			}
			out[key] = mv
		case "remove":
			if _, ok := out[key]; !ok {
				return nil, toolerr.New(toolerr.PatchApplyError, "remove: key %q not present", key)
			}
			delete(out, key)
		default:
			return nil, toolerr.New(toolerr.PatchParseError, "unsupported json-patch op %q", op.Op)
		}
	}
	return out, nil
}

// patchKey extracts the top-level key from a JSON-Patch "/key" path.
func patchKey(path string) (string, error) {
	if len(path) < 2 || path[0] != '/' {
		return "", fmt.Errorf("path must be of the form /key, got %q", path)
	}
	return path[1:], nil
}
