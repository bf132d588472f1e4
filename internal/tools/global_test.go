package tools

import (
	"context"
	"testing"

	"github.com/cogniwarden/memory/internal/types"
)

func TestSetContextArgsValidateRequiresAtLeastOneField(t *testing.T) {
	a := &SetContextArgs{}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected an error when neither branch nor namespace is set")
	}
	branch := "feature-x"
	a = &SetContextArgs{Branch: &branch}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSetContextUpdatesWatcherAndSurvivesReload(t *testing.T) {
	w := newTestWatcher(t)
	branch := "feature-x"
	ns := "team-a"
	a := newSetContextArgs(w)
	a.Branch = &branch
	a.Namespace = &ns

	result, err := setContext(context.Background(), nil, a)
	if err != nil {
		t.Fatalf("setContext: %v", err)
	}
	m, ok := result.(map[string]string)
	if !ok || m["branch"] != branch || m["namespace"] != ns {
		t.Fatalf("got %v, want branch=%q namespace=%q", result, branch, ns)
	}
	if w.CurrentBranch() != branch {
		t.Fatalf("watcher CurrentBranch() = %q, want %q", w.CurrentBranch(), branch)
	}
	if w.CurrentNamespace() != ns {
		t.Fatalf("watcher CurrentNamespace() = %q, want %q", w.CurrentNamespace(), ns)
	}
}

func TestSetContextRequiresConfig(t *testing.T) {
	a := newSetContextArgs(nil)
	branch := "x"
	a.Branch = &branch
	if _, err := setContext(context.Background(), nil, a); err == nil {
		t.Fatalf("expected an error when no config.Watcher is available")
	}
}

func TestGlobalSemanticSearchArgsValidateChecksEmbeddingLength(t *testing.T) {
	a := newGlobalSemanticSearchArgs(nil)
	a.Embedding = make([]float32, types.EmbeddingDim-1)
	if err := a.Validate(); err == nil {
		t.Fatalf("expected an error for a short embedding")
	}
	a.Embedding = make([]float32, types.EmbeddingDim)
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLogInteractionBlockArgsValidate(t *testing.T) {
	a := &LogInteractionBlockArgs{}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected an error when namespace_id and text are empty")
	}
	a = &LogInteractionBlockArgs{NamespaceID: "legacy", Text: "did a thing"}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
