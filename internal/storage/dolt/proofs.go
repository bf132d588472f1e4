//go:build cgo

package dolt

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/cogniwarden/memory/internal/types"
)

// AppendProof records a block mutation against the commit hash it landed in.
// block_proofs is append-only: callers never update or delete rows here.
func (s *DoltStore) AppendProof(ctx context.Context, p *types.BlockProof) (retErr error) {
	ctx, span := doltTracer.Start(ctx, "dolt.append_proof", trace.WithAttributes(s.doltSpanAttrs()...))
	defer func() { endSpan(span, retErr) }()

	_, err := s.execContext(ctx, `
		INSERT INTO block_proofs (block_id, operation, commit_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		p.BlockID, string(p.Operation), p.CommitHash, p.Timestamp)
	if err != nil {
		return fmt.Errorf("insert block_proofs: %w", err)
	}
	return nil
}
