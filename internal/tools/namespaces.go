package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

func registerNamespaceTools(r *Registry) {
	r.Register(&Tool{
		Name:         "CreateNamespace",
		Description:  "Create a new namespace.",
		MemoryLinked: true,
		NewArgs:      func() Args { return &CreateNamespaceArgs{} },
		Func:         createNamespace,
	})
	r.Register(&Tool{
		Name:         "ListNamespaces",
		Description:  "List all namespaces.",
		MemoryLinked: true,
		NewArgs:      func() Args { return &ListNamespacesArgs{} },
		Func:         listNamespaces,
	})
}

// CreateNamespaceArgs is the CreateNamespace input model.
type CreateNamespaceArgs struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (a *CreateNamespaceArgs) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func createNamespace(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*CreateNamespaceArgs)
	slug := a.Slug
	if slug == "" {
		slug = slugify(a.Name)
	}
	if strings.EqualFold(slug, types.LegacyNamespace) {
		return nil, toolerr.New(toolerr.ValidationError, "namespace slug %q is reserved", slug)
	}

	ns := &types.Namespace{
		ID:          uuid.NewString(),
		Name:        a.Name,
		Slug:        slug,
		OwnerID:     a.OwnerID,
		Description: a.Description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := b.CreateNamespace(ctx, ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// ListNamespacesArgs is the ListNamespaces input model (no fields: it always
// lists every namespace).
type ListNamespacesArgs struct{}

func (a *ListNamespacesArgs) Validate() error { return nil }

func listNamespaces(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	return b.ListNamespaces(ctx)
}

// slugify lowercases and replaces whitespace with hyphens. Not a full
// unicode-aware slug algorithm, matching the scope of a namespace name that
// is expected to already be short and human-chosen.
func slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(lower), "-")
}
