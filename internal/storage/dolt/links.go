//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/cogniwarden/memory/internal/types"
)

// CreateLink inserts a directed typed link between two blocks. Uniqueness on
// (from_block_id, to_block_id, relation) is enforced by the block_links
// schema's unique key, so duplicate links surface as a plain SQL error.
func (s *DoltStore) CreateLink(ctx context.Context, l *types.BlockLink) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.create_link", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	metadataJSON, err := marshalLinkMetadata(l.LinkMetadata)
	if err != nil {
		return err
	}

	_, err = s.execContext(ctx, `
		INSERT INTO block_links (id, from_block_id, to_block_id, relation, priority, link_metadata, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		linkID(l.FromID, l.ToID, l.Relation), l.FromID, l.ToID, string(l.Relation), l.Priority,
		metadataJSON, l.CreatedBy, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert block_links: %w", err)
	}
	return nil
}

// DeleteLink removes a single link identified by its (from, to, relation) key.
func (s *DoltStore) DeleteLink(ctx context.Context, fromID, toID string, relation types.Relation) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.delete_link", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	_, err := s.execContext(ctx,
		"DELETE FROM block_links WHERE from_block_id = ? AND to_block_id = ? AND relation = ?",
		fromID, toID, string(relation))
	if err != nil {
		return fmt.Errorf("delete block_links: %w", err)
	}
	return nil
}

// LinksFrom returns links originating at blockID, optionally filtered to one
// relation, paged via an opaque cursor (the last-seen link id).
func (s *DoltStore) LinksFrom(ctx context.Context, blockID string, relation *types.Relation, cursor string, limit int) ([]*types.BlockLink, string, error) {
	return s.listLinks(ctx, "from_block_id", blockID, relation, cursor, limit)
}

// LinksTo returns links terminating at blockID, optionally filtered to one
// relation, paged via an opaque cursor (the last-seen link id).
func (s *DoltStore) LinksTo(ctx context.Context, blockID string, relation *types.Relation, cursor string, limit int) ([]*types.BlockLink, string, error) {
	return s.listLinks(ctx, "to_block_id", blockID, relation, cursor, limit)
}

func (s *DoltStore) listLinks(ctx context.Context, endpointCol, blockID string, relation *types.Relation, cursor string, limit int) (retLinks []*types.BlockLink, retCursor string, retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.list_links", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, from_block_id, to_block_id, relation, priority, link_metadata, created_by, created_at
		FROM block_links WHERE %s = ?`, endpointCol)
	args := []any{blockID}

	if relation != nil {
		query += " AND relation = ?"
		args = append(args, string(*relation))
	}
	if cursor != "" {
		after, err := decodeLinkCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		query += " AND id > ?"
		args = append(args, after)
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("select block_links: %w", err)
	}
	defer rows.Close()

	var links []*types.BlockLink
	var ids []string
	for rows.Next() {
		var id, relationStr string
		var metadataJSON sql.NullString
		var createdBy sql.NullString
		l := &types.BlockLink{}
		if err := rows.Scan(&id, &l.FromID, &l.ToID, &relationStr, &l.Priority, &metadataJSON, &createdBy, &l.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan block_links: %w", err)
		}
		l.Relation = types.Relation(relationStr)
		if createdBy.Valid {
			l.CreatedBy = &createdBy.String
		}
		if metadataJSON.Valid {
			metadata, err := unmarshalLinkMetadata(metadataJSON.String)
			if err != nil {
				return nil, "", err
			}
			l.LinkMetadata = metadata
		}
		links = append(links, l)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(links) > limit {
		links = links[:limit]
		nextCursor = encodeLinkCursor(ids[limit-1])
	}
	return links, nextCursor, nil
}

// linkID derives a stable identifier for a link from its natural key, so
// re-creating a deleted link is idempotent rather than accumulating garbage ids.
func linkID(fromID, toID string, relation types.Relation) string {
	return fmt.Sprintf("%s:%s:%s", fromID, toID, relation)
}

func encodeLinkCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeLinkCursor(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return string(raw), nil
}

func marshalLinkMetadata(metadata map[string]types.MetadataValue) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(types.MetadataToMap(metadata))
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal link_metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalLinkMetadata(raw string) (map[string]types.MetadataValue, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal link_metadata: %w", err)
	}
	return types.MetadataFromMap(decoded)
}
