//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/cogniwarden/memory/internal/types"
)

// CreateBlock inserts a new memory block row plus its Property-Schema Split
// metadata rows, in a single transaction.
func (s *DoltStore) CreateBlock(ctx context.Context, b *types.MemoryBlock) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.create_block", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	embedding, err := marshalEmbedding(b.Embedding)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var human, ai sql.NullFloat64
	if b.Confidence != nil {
		if b.Confidence.Human != nil {
			human = sql.NullFloat64{Float64: *b.Confidence.Human, Valid: true}
		}
		if b.Confidence.AI != nil {
			ai = sql.NullFloat64{Float64: *b.Confidence.AI, Valid: true}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_blocks
			(id, namespace_id, block_type, schema_version, body, state, visibility,
			 block_version, tags, source_file, source_uri, created_by,
			 confidence_human, confidence_ai, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.NamespaceID, string(b.Type), b.SchemaVersion, b.Text, string(b.State), string(b.Visibility),
		b.BlockVersion, string(tags), b.SourceFile, b.SourceURI, b.CreatedBy,
		human, ai, embedding, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory_blocks: %w", err)
	}

	if err := insertProperties(ctx, tx, b.ID, b.Metadata); err != nil {
		return err
	}

	return tx.Commit()
}

// blockRowColumns is the fixed column list shared by every memory_blocks
// SELECT, so GetBlock's single-row path and ListBlocks' bulk path scan
// identically.
const blockRowColumns = `id, namespace_id, block_type, schema_version, body, state, visibility,
	block_version, tags, source_file, source_uri, created_by,
	confidence_human, confidence_ai, embedding, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanBlockRow decodes one blockRowColumns row into a MemoryBlock, leaving
// Metadata unset (the caller attaches it via loadProperties/loadPropertiesBatch).
func scanBlockRow(scan rowScanner) (*types.MemoryBlock, error) {
	var b types.MemoryBlock
	var blockType, state, visibility, tagsJSON string
	var schemaVersion sql.NullInt64
	var sourceFile, sourceURI, createdBy sql.NullString
	var human, ai sql.NullFloat64
	var embeddingJSON sql.NullString

	if err := scan.Scan(&b.ID, &b.NamespaceID, &blockType, &schemaVersion, &b.Text, &state, &visibility,
		&b.BlockVersion, &tagsJSON, &sourceFile, &sourceURI, &createdBy,
		&human, &ai, &embeddingJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	b.Type = types.BlockType(blockType)
	b.State = types.BlockState(state)
	b.Visibility = types.Visibility(visibility)
	if schemaVersion.Valid {
		v := int(schemaVersion.Int64)
		b.SchemaVersion = &v
	}
	if sourceFile.Valid {
		b.SourceFile = &sourceFile.String
	}
	if sourceURI.Valid {
		b.SourceURI = &sourceURI.String
	}
	if createdBy.Valid {
		b.CreatedBy = &createdBy.String
	}
	if human.Valid || ai.Valid {
		c := types.Confidence{}
		if human.Valid {
			c.Human = &human.Float64
		}
		if ai.Valid {
			c.AI = &ai.Float64
		}
		b.Confidence = &c
	}
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if embeddingJSON.Valid {
		embedding, err := unmarshalEmbedding(embeddingJSON.String)
		if err != nil {
			return nil, err
		}
		b.Embedding = embedding
	}
	return &b, nil
}

// GetBlock loads a block by id, including its Property-Schema Split metadata.
func (s *DoltStore) GetBlock(ctx context.Context, id string) (retBlock *types.MemoryBlock, retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.get_block", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	var b *types.MemoryBlock
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		var scanErr error
		b, scanErr = scanBlockRow(row)
		return scanErr
	}, "SELECT "+blockRowColumns+" FROM memory_blocks WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select memory_blocks: %w", err)
	}

	metadata, err := loadProperties(ctx, s, id)
	if err != nil {
		return nil, err
	}
	b.Metadata = metadata

	return b, nil
}

// ListBlocks returns blocks matching filter, newest first, bounded by filter.Limit.
func (s *DoltStore) ListBlocks(ctx context.Context, filter types.Filter) (retBlocks []*types.MemoryBlock, retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.list_blocks", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	var where []string
	var args []any

	if filter.NamespaceID != "" {
		where = append(where, "namespace_id = ?")
		args = append(args, filter.NamespaceID)
	}
	if filter.Type != nil {
		where = append(where, "block_type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.State != nil {
		where = append(where, "state = ?")
		args = append(args, string(*filter.State))
	}
	if filter.Visibility != nil {
		where = append(where, "visibility = ?")
		args = append(args, string(*filter.Visibility))
	}
	for _, tag := range filter.Tags {
		where = append(where, "JSON_CONTAINS(tags, JSON_QUOTE(?))")
		args = append(args, tag)
	}

	query := "SELECT " + blockRowColumns + " FROM memory_blocks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select memory_blocks: %w", err)
	}

	var blocks []*types.MemoryBlock
	var ids []string
	for rows.Next() {
		b, err := scanBlockRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan memory_blocks: %w", err)
		}
		blocks = append(blocks, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	propsByBlock, err := loadPropertiesBatch(ctx, s, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		b.Metadata = propsByBlock[b.ID]
	}
	return blocks, nil
}

// UpdateBlock applies a full-record update, enforcing optimistic concurrency
// when expectedVersion is non-nil (spec.md's block_version CAS invariant).
func (s *DoltStore) UpdateBlock(ctx context.Context, b *types.MemoryBlock, expectedVersion *int) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.update_block", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	embedding, err := marshalEmbedding(b.Embedding)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var human, ai sql.NullFloat64
	if b.Confidence != nil {
		if b.Confidence.Human != nil {
			human = sql.NullFloat64{Float64: *b.Confidence.Human, Valid: true}
		}
		if b.Confidence.AI != nil {
			ai = sql.NullFloat64{Float64: *b.Confidence.AI, Valid: true}
		}
	}

	query := `
		UPDATE memory_blocks SET
			block_type = ?, schema_version = ?, body = ?, state = ?, visibility = ?,
			block_version = ?, tags = ?, source_file = ?, source_uri = ?,
			confidence_human = ?, confidence_ai = ?, embedding = ?, updated_at = ?
		WHERE id = ?`
	args := []any{string(b.Type), b.SchemaVersion, b.Text, string(b.State), string(b.Visibility),
		b.BlockVersion, string(tags), b.SourceFile, b.SourceURI,
		human, ai, embedding, b.UpdatedAt, b.ID}

	if expectedVersion != nil {
		query += " AND block_version = ?"
		args = append(args, *expectedVersion)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update memory_blocks: %w", err)
	}
	if expectedVersion != nil {
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("block %s: version conflict, expected %d", b.ID, *expectedVersion)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM block_properties WHERE block_id = ?", b.ID); err != nil {
		return fmt.Errorf("clear block_properties: %w", err)
	}
	if err := insertProperties(ctx, tx, b.ID, b.Metadata); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteBlock removes a block. block_properties, outgoing block_links, and
// block_proofs cascade via foreign keys.
func (s *DoltStore) DeleteBlock(ctx context.Context, id string) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.delete_block", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	_, err := s.execContext(ctx, "DELETE FROM memory_blocks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory_blocks: %w", err)
	}
	return nil
}

// insertProperties writes the Property-Schema Split rows for a block's metadata
// map, one row per key, tagged with its ValueKind for exact round-trip.
func insertProperties(ctx context.Context, tx *sql.Tx, blockID string, metadata map[string]types.MetadataValue) error {
	for key, value := range metadata {
		raw, err := json.Marshal(value.ToJSON())
		if err != nil {
			return fmt.Errorf("marshal property %q: %w", key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO block_properties (block_id, prop_key, value_kind, value_json)
			VALUES (?, ?, ?, ?)`, blockID, key, string(value.Kind), string(raw))
		if err != nil {
			return fmt.Errorf("insert property %q: %w", key, err)
		}
	}
	return nil
}

// loadProperties reconstructs a block's typed metadata map from block_properties.
func loadProperties(ctx context.Context, s *DoltStore, blockID string) (map[string]types.MetadataValue, error) {
	rows, err := s.queryContext(ctx,
		"SELECT prop_key, value_kind, value_json FROM block_properties WHERE block_id = ?", blockID)
	if err != nil {
		return nil, fmt.Errorf("select block_properties: %w", err)
	}
	defer rows.Close()

	out := map[string]types.MetadataValue{}
	for rows.Next() {
		var key, kind, raw string
		if err := rows.Scan(&key, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("unmarshal property %q: %w", key, err)
		}
		value, err := types.FromJSON(decoded)
		if err != nil {
			return nil, fmt.Errorf("decode property %q: %w", key, err)
		}
		value.Kind = types.ValueKind(kind)
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// blockProperty is one decoded block_properties row, carried between
// loadPropertiesBatch's scanRow and its per-block assembly pass.
type blockProperty struct {
	key   string
	kind  string
	value types.MetadataValue
}

// loadPropertiesBatch reconstructs typed metadata maps for many blocks in a
// handful of batched IN-clause queries instead of one query per block,
// avoiding the N+1 read pattern ListBlocks would otherwise hit.
func loadPropertiesBatch(ctx context.Context, s *DoltStore, ids []string) (map[string]map[string]types.MetadataValue, error) {
	rowsByBlock, err := BatchIN(ctx, s.queryContext, ids, DefaultBatchSize,
		"SELECT block_id, prop_key, value_kind, value_json FROM block_properties WHERE block_id IN (%s)",
		func(rows *sql.Rows) (string, blockProperty, error) {
			var blockID, key, kind, raw string
			if err := rows.Scan(&blockID, &key, &kind, &raw); err != nil {
				return "", blockProperty{}, fmt.Errorf("scan property: %w", err)
			}
			var decoded interface{}
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				return "", blockProperty{}, fmt.Errorf("unmarshal property %q: %w", key, err)
			}
			value, err := types.FromJSON(decoded)
			if err != nil {
				return "", blockProperty{}, fmt.Errorf("decode property %q: %w", key, err)
			}
			value.Kind = types.ValueKind(kind)
			return blockID, blockProperty{key: key, kind: kind, value: value}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("batch select block_properties: %w", err)
	}

	out := make(map[string]map[string]types.MetadataValue, len(ids))
	for _, id := range ids {
		out[id] = map[string]types.MetadataValue{}
	}
	for blockID, props := range rowsByBlock {
		m := out[blockID]
		for _, p := range props {
			m[p.key] = p.value
		}
	}
	return out, nil
}

func marshalEmbedding(embedding []float32) (sql.NullString, error) {
	if embedding == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(embedding)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal embedding: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalEmbedding(raw string) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return embedding, nil
}
