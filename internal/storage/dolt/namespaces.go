//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/cogniwarden/memory/internal/types"
)

// CreateNamespace inserts a new namespace row. The reserved "legacy" namespace
// is seeded by defaultConfig and never created through this path.
func (s *DoltStore) CreateNamespace(ctx context.Context, ns *types.Namespace) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.create_namespace", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	_, err := s.execContext(ctx, `
		INSERT INTO namespaces (id, name, slug, owner_id, description, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ns.ID, ns.Name, ns.Slug, ns.OwnerID, ns.Description, ns.IsActive, ns.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert namespaces: %w", err)
	}
	return nil
}

// GetNamespace loads a namespace by id. Returns (nil, nil) if not found.
func (s *DoltStore) GetNamespace(ctx context.Context, id string) (retNS *types.Namespace, retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.get_namespace", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	var ns types.Namespace
	var ownerID, description sql.NullString

	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&ns.ID, &ns.Name, &ns.Slug, &ownerID, &description, &ns.IsActive, &ns.CreatedAt)
	}, "SELECT id, name, slug, owner_id, description, is_active, created_at FROM namespaces WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select namespaces: %w", err)
	}
	if ownerID.Valid {
		ns.OwnerID = &ownerID.String
	}
	if description.Valid {
		ns.Description = &description.String
	}
	return &ns, nil
}

// ListNamespaces returns all namespaces, ordered by name.
func (s *DoltStore) ListNamespaces(ctx context.Context) (retNS []*types.Namespace, retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.list_namespaces", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	rows, err := s.queryContext(ctx,
		"SELECT id, name, slug, owner_id, description, is_active, created_at FROM namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("select namespaces: %w", err)
	}
	defer rows.Close()

	var out []*types.Namespace
	for rows.Next() {
		var ns types.Namespace
		var ownerID, description sql.NullString
		if err := rows.Scan(&ns.ID, &ns.Name, &ns.Slug, &ownerID, &description, &ns.IsActive, &ns.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan namespaces: %w", err)
		}
		if ownerID.Valid {
			ns.OwnerID = &ownerID.String
		}
		if description.Valid {
			ns.Description = &description.String
		}
		out = append(out, &ns)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
