package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

func registerBlockTools(r *Registry) {
	r.Register(&Tool{
		Name:           "CreateMemoryBlock",
		Description:    "Create a new memory block in a namespace.",
		MemoryLinked:   true,
		NeedsNamespace: true,
		NewArgs:        func() Args { return &CreateMemoryBlockArgs{} },
		Func:           createMemoryBlock,
	})
	r.Register(&Tool{
		Name:           "GetMemoryBlock",
		Description:    "Fetch a single memory block by id.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &GetMemoryBlockArgs{} },
		Func:           getMemoryBlock,
	})
	r.Register(&Tool{
		Name:           "UpdateMemoryBlock",
		Description:    "Apply a patch to an existing memory block.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &UpdateMemoryBlockArgs{} },
		Func:           updateMemoryBlock,
	})
	r.Register(&Tool{
		Name:           "DeleteMemoryBlock",
		Description:    "Delete a memory block, refusing if dependent links exist unless forced.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &DeleteMemoryBlockArgs{} },
		Func:           deleteMemoryBlock,
	})
}

// CreateMemoryBlockArgs is the CreateMemoryBlock input model.
type CreateMemoryBlockArgs struct {
	NamespaceID   string                 `json:"namespace_id"`
	Type          string                 `json:"type"`
	Text          string                 `json:"text"`
	SchemaVersion *int                   `json:"schema_version,omitempty"`
	State         *string                `json:"state,omitempty"`
	Visibility    *string                `json:"visibility,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	SourceFile    *string                `json:"source_file,omitempty"`
	SourceURI     *string                `json:"source_uri,omitempty"`
	CreatedBy     *string                `json:"created_by,omitempty"`
	ConfidenceHuman *float64             `json:"confidence_human,omitempty"`
	ConfidenceAI    *float64             `json:"confidence_ai,omitempty"`
	Embedding     []float32              `json:"embedding,omitempty"`
}

func (a *CreateMemoryBlockArgs) Validate() error {
	if a.NamespaceID == "" {
		return fmt.Errorf("namespace_id is required")
	}
	if !types.BlockType(a.Type).Valid() {
		return fmt.Errorf("invalid type %q", a.Type)
	}
	if a.Text == "" {
		return fmt.Errorf("text is required")
	}
	if len(a.Tags) > types.MaxTags {
		return fmt.Errorf("tags length %d exceeds max %d", len(a.Tags), types.MaxTags)
	}
	if a.State != nil && !types.BlockState(*a.State).Valid() {
		return fmt.Errorf("invalid state %q", *a.State)
	}
	if a.Visibility != nil && !types.Visibility(*a.Visibility).Valid() {
		return fmt.Errorf("invalid visibility %q", *a.Visibility)
	}
	return nil
}

func createMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*CreateMemoryBlockArgs)

	metadata, err := types.MetadataFromMap(a.Metadata)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid metadata")
	}

	draft := &types.BlockDraft{
		NamespaceID:   a.NamespaceID,
		Type:          types.BlockType(a.Type),
		SchemaVersion: a.SchemaVersion,
		Text:          a.Text,
		Tags:          a.Tags,
		Metadata:      metadata,
		SourceFile:    a.SourceFile,
		SourceURI:     a.SourceURI,
		CreatedBy:     a.CreatedBy,
		Embedding:     a.Embedding,
	}
	if a.State != nil {
		state := types.BlockState(*a.State)
		draft.State = &state
	}
	if a.Visibility != nil {
		vis := types.Visibility(*a.Visibility)
		draft.Visibility = &vis
	}
	if a.ConfidenceHuman != nil || a.ConfidenceAI != nil {
		draft.Confidence = &types.Confidence{Human: a.ConfidenceHuman, AI: a.ConfidenceAI}
	}

	result, err := b.CreateMemoryBlock(ctx, draft)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetMemoryBlockArgs is the GetMemoryBlock input model.
type GetMemoryBlockArgs struct {
	BlockID string `json:"block_id"`
}

func (a *GetMemoryBlockArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	return nil
}

func getMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*GetMemoryBlockArgs)
	return b.GetMemoryBlock(ctx, a.BlockID)
}

// UpdateMemoryBlockArgs is the UpdateMemoryBlock input model. Text/structured
// patches follow spec.md §4.5 Patch semantics.
type UpdateMemoryBlockArgs struct {
	BlockID              string                 `json:"block_id"`
	PreviousBlockVersion *int                   `json:"previous_block_version,omitempty"`
	Text                 *string                `json:"text,omitempty"`
	TextPatch            *string                `json:"text_patch,omitempty"`
	State                *string                `json:"state,omitempty"`
	Tags                 []string               `json:"tags,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	MetadataPatch        []JSONPatchOp          `json:"metadata_patch,omitempty"`
	MergeTags            bool                   `json:"merge_tags,omitempty"`
	MergeMetadata        bool                   `json:"merge_metadata,omitempty"`
}

func (a *UpdateMemoryBlockArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if a.Text != nil && a.TextPatch != nil {
		return fmt.Errorf("text and text_patch are mutually exclusive")
	}
	if a.Metadata != nil && a.MetadataPatch != nil {
		return fmt.Errorf("metadata and metadata_patch are mutually exclusive")
	}
	if a.State != nil && !types.BlockState(*a.State).Valid() {
		return fmt.Errorf("invalid state %q", *a.State)
	}
	if len(a.Tags) > types.MaxTags {
		return fmt.Errorf("tags length %d exceeds max %d", len(a.Tags), types.MaxTags)
	}
	return nil
}

func updateMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*UpdateMemoryBlockArgs)

	patch := bank.Patch{
		PreviousBlockVersion: a.PreviousBlockVersion,
		Tags:                 a.Tags,
		MergeTags:            a.MergeTags,
		MergeMetadata:        a.MergeMetadata,
	}
	if a.State != nil {
		state := types.BlockState(*a.State)
		patch.State = &state
	}

	if a.TextPatch != nil {
		current, err := b.GetMemoryBlock(ctx, a.BlockID)
		if err != nil {
			return nil, err
		}
		applied, err := applyUnifiedDiff(current.Text, *a.TextPatch)
		if err != nil {
			return nil, err
		}
		patch.Text = &applied
	} else if a.Text != nil {
		patch.Text = a.Text
	}

	if a.MetadataPatch != nil {
		current, err := b.GetMemoryBlock(ctx, a.BlockID)
		if err != nil {
			return nil, err
		}
		merged, err := applyJSONPatch(current.Metadata, a.MetadataPatch)
		if err != nil {
			return nil, err
		}
		patch.Metadata = merged
	} else if a.Metadata != nil {
		metadata, err := types.MetadataFromMap(a.Metadata)
		if err != nil {
			return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid metadata")
		}
		patch.Metadata = metadata
	}

	return b.UpdateMemoryBlock(ctx, a.BlockID, patch)
}

// DeleteMemoryBlockArgs is the DeleteMemoryBlock input model.
type DeleteMemoryBlockArgs struct {
	BlockID string `json:"block_id"`
	Force   bool   `json:"force,omitempty"`
}

func (a *DeleteMemoryBlockArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	return nil
}

func deleteMemoryBlock(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DeleteMemoryBlockArgs)

	if !a.Force {
		page, err := b.Links().LinksTo(ctx, a.BlockID, "", "", 1)
		if err != nil {
			return nil, err
		}
		if len(page.Links) > 0 {
			return nil, toolerr.New(toolerr.DependenciesExist,
				"block %s has dependent links; pass force to delete anyway", a.BlockID)
		}
	}

	return b.DeleteMemoryBlock(ctx, a.BlockID)
}
