package core

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"sampleregistry/internal/blob"
)

// OpPublishAll names the batch publication operation.
const OpPublishAll = "publish_all"

// DefaultPublishConcurrency bounds PublishAll when no limit is given.
const DefaultPublishConcurrency = 4

// PublishOutcome is the result of publishing one run.
type PublishOutcome struct {
	RunAccession int
	Info         blob.Info
	Err          error
}

// PublishAll publishes every listed run (every registered run, in ListRuns
// order, when runs is empty) with at most concurrency uploads in flight. A
// failing run does not stop the others. Outcomes line up index by index with
// the runs published, and the error is non-nil only when the run list cannot
// be loaded or ctx ends. runs is not modified.
func (s *Service) PublishAll(ctx context.Context, runs []int, concurrency int) ([]PublishOutcome, error) {
	var outcomes []PublishOutcome
	err := s.instrument(ctx, OpPublishAll, func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		targets := slices.Clone(runs)
		if len(targets) == 0 {
			all, err := s.store.ListRuns(ctx)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			targets = make([]int, 0, len(all))
			for _, r := range all {
				targets = append(targets, r.Accession)
			}
		}
		if concurrency <= 0 {
			concurrency = DefaultPublishConcurrency
		}
		outcomes = make([]PublishOutcome, len(targets))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, acc := range targets {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					outcomes[i] = PublishOutcome{RunAccession: acc, Err: err}
					return nil
				}
				info, err := s.PublishQIIME(gctx, acc)
				outcomes[i] = PublishOutcome{RunAccession: acc, Info: info, Err: err}
				return nil
			})
		}
		_ = g.Wait()
		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
		}
		s.logger.Info("batch publish finished", "runs", len(outcomes), "failed", failed)
		return ctx.Err()
	})
	return outcomes, err
}
