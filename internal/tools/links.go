package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/linkmanager"
	"github.com/cogniwarden/memory/internal/types"
)

func registerLinkTools(r *Registry) {
	r.Register(&Tool{
		Name:         "CreateBlockLink",
		Description:  "Create a directed link between two blocks, optionally with its inverse.",
		MemoryLinked: true,
		NewArgs:      func() Args { return &CreateBlockLinkArgs{} },
		Func:         createBlockLink,
	})
	r.Register(&Tool{
		Name:         "GetMemoryLinks",
		Description:  "Page through links outgoing from a block.",
		MemoryLinked: true,
		NewArgs:      func() Args { return &GetMemoryLinksArgs{} },
		Func:         getMemoryLinks,
	})
	r.Register(&Tool{
		Name:         "GetLinkedBlocks",
		Description:  "Resolve and return the blocks a block links to (or that link to it).",
		MemoryLinked: true,
		NewArgs:      func() Args { return &GetLinkedBlocksArgs{} },
		Func:         getLinkedBlocks,
	})
}

// CreateBlockLinkArgs is the CreateBlockLink input model.
type CreateBlockLinkArgs struct {
	FromID        string                 `json:"from_id"`
	ToID          string                 `json:"to_id"`
	Relation      string                 `json:"relation"`
	Priority      int                    `json:"priority,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy     *string                `json:"created_by,omitempty"`
	Bidirectional bool                   `json:"bidirectional,omitempty"`
}

func (a *CreateBlockLinkArgs) Validate() error {
	if a.FromID == "" || a.ToID == "" {
		return fmt.Errorf("from_id and to_id are required")
	}
	if a.Relation == "" {
		return fmt.Errorf("relation is required")
	}
	return nil
}

func createBlockLink(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*CreateBlockLinkArgs)
	metadata, err := types.MetadataFromMap(a.Metadata)
	if err != nil {
		return nil, err
	}

	if a.Bidirectional {
		forward, inverse, err := b.Links().CreateBidirectional(ctx, a.FromID, a.ToID, a.Relation, a.Priority, metadata, a.CreatedBy)
		if err != nil {
			return nil, err
		}
		return map[string]*types.BlockLink{"forward": forward, "inverse": inverse}, nil
	}

	link, err := b.Links().CreateLink(ctx, a.FromID, a.ToID, a.Relation, a.Priority, metadata, a.CreatedBy)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetMemoryLinksArgs is the GetMemoryLinks input model.
type GetMemoryLinksArgs struct {
	BlockID  string `json:"block_id"`
	Relation string `json:"relation,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	// Direction selects outgoing ("from", default) or incoming ("to") links.
	Direction string `json:"direction,omitempty"`
}

func (a *GetMemoryLinksArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if a.Direction != "" && a.Direction != "from" && a.Direction != "to" {
		return fmt.Errorf("direction must be \"from\" or \"to\"")
	}
	return nil
}

func getMemoryLinks(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*GetMemoryLinksArgs)
	if a.Direction == "to" {
		return b.Links().LinksTo(ctx, a.BlockID, a.Relation, a.Cursor, a.Limit)
	}
	return b.Links().LinksFrom(ctx, a.BlockID, a.Relation, a.Cursor, a.Limit)
}

// GetLinkedBlocksArgs is the GetLinkedBlocks input model: it resolves a page
// of links into the full MemoryBlock records on the other end, rather than
// leaving the caller to join them itself.
type GetLinkedBlocksArgs struct {
	BlockID   string `json:"block_id"`
	Relation  string `json:"relation,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Direction string `json:"direction,omitempty"`
}

func (a *GetLinkedBlocksArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if a.Direction != "" && a.Direction != "from" && a.Direction != "to" {
		return fmt.Errorf("direction must be \"from\" or \"to\"")
	}
	return nil
}

func getLinkedBlocks(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*GetLinkedBlocksArgs)

	var page linkmanager.Page
	var err error
	if a.Direction == "to" {
		page, err = b.Links().LinksTo(ctx, a.BlockID, a.Relation, a.Cursor, a.Limit)
	} else {
		page, err = b.Links().LinksFrom(ctx, a.BlockID, a.Relation, a.Cursor, a.Limit)
	}
	if err != nil {
		return nil, err
	}

	blocks := make([]*types.MemoryBlock, 0, len(page.Links))
	for _, link := range page.Links {
		id := link.ToID
		if a.Direction == "to" {
			id = link.FromID
		}
		block, err := b.GetMemoryBlock(ctx, id)
		if err != nil {
			continue
		}
		blocks = append(blocks, block)
	}

	return map[string]interface{}{
		"blocks":      blocks,
		"next_cursor": page.NextCursor,
	}, nil
}
