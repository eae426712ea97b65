package bcf

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TrimResult is the outcome of trimming one record of a batch.
type TrimResult struct {
	Removed int
	Err     error
}

// TrimBatch trims every record of the batch, running at most workers
// goroutines (runtime.NumCPU() if workers < 1). Each record is handled by a
// single goroutine. Errors wrapping ErrCorrupt are reported in that record's
// TrimResult and do not stop the batch; any other error cancels the
// remaining work and is returned.
func TrimBatch(ctx context.Context, h *Header, records []*Record, workers int) ([]TrimResult, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	results := make([]TrimResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, r := range records {
		i, r := i, r
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			removed, err := TrimAlleles(h, r)
			results[i] = TrimResult{Removed: removed, Err: err}
			if err != nil && !errors.Is(err, ErrCorrupt) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, ctx.Err()
}
