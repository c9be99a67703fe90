package vector

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const backfillWorkers = 4

// Backfill embeds observations that were saved while no embedding
// backend was reachable. It returns the number of vectors written.
// Per-observation failures are logged and skipped so one bad row does
// not stall the rest of the batch.
func (ix *Index) Backfill(ctx context.Context, batchSize int) (int, error) {
	ix.embedder.Initialize(ctx)
	if !ix.embedder.Available() {
		ix.logger.Info("backfill skipped, no embedding backend available")
		return 0, nil
	}

	ids, err := ix.store.ListMissingEmbeddings(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	model := ix.embedder.ModelName()

	var embedded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)

	for _, id := range ids {
		g.Go(func() error {
			obs, err := ix.store.GetObservation(gctx, id)
			if err != nil {
				ix.logger.Warn("backfill: observation vanished", zap.String("id", id), zap.Error(err))
				return nil
			}
			vec := ix.embedder.Embed(gctx, obs.EmbeddingInput())
			if vec == nil {
				ix.logger.Warn("backfill: embedding failed", zap.String("id", id))
				return nil
			}
			if err := ix.Store(gctx, id, vec, model); err != nil {
				ix.logger.Warn("backfill: store failed", zap.String("id", id), zap.Error(err))
				return nil
			}
			embedded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(embedded.Load()), err
	}

	ix.logger.Info("backfill complete",
		zap.Int("requested", len(ids)),
		zap.Int64("embedded", embedded.Load()))
	return int(embedded.Load()), nil
}
