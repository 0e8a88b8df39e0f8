package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

// workloadResult is what a bench run measured.
type workloadResult struct {
	samples []report.HeightSample
	stats   rbtree.Stats
	found   int
	missing int
}

// benchKeys returns the insertion sequence and the keys to delete afterwards.
func benchKeys(bench config.BenchConfig) (inserts, deletes []int64) {
	rng := rand.New(rand.NewPCG(uint64(bench.Seed), uint64(bench.Keys))) //nolint:gosec // reproducible workload, not crypto.

	inserts = make([]int64, bench.Keys)
	for idx := range inserts {
		inserts[idx] = int64(idx)
	}

	switch bench.Order {
	case config.OrderDescending:
		slices.Reverse(inserts)
	case config.OrderRandom:
		rng.Shuffle(len(inserts), func(i, j int) { inserts[i], inserts[j] = inserts[j], inserts[i] })
	}

	deletes = slices.Clone(inserts)
	rng.Shuffle(len(deletes), func(i, j int) { deletes[i], deletes[j] = deletes[j], deletes[i] })

	return inserts, deletes[:int(float64(len(deletes))*bench.DeleteRatio)]
}

// runWorkload inserts and deletes the bench keys, then looks every inserted
// key up again, timing every operation. Finally it validates the tree. With sample set it records the height at
// plotSamples evenly spaced sizes.
func runWorkload(
	ctx context.Context, sess *session, bench config.BenchConfig, metrics *observability.TreeMetrics, sample bool,
) (workloadResult, error) {
	var result workloadResult

	allocator, err := newAllocator[int64, struct{}](sess.cfg)
	if err != nil {
		return result, err
	}

	tree := rbtree.NewSet[int64](rbtree.WithAllocator(allocator))
	inserts, deletes := benchKeys(bench)
	sampleEvery := max(1, len(inserts)/plotSamples)
	started := time.Now()

	for idx, key := range inserts {
		opStart := time.Now()
		_, inserted, insertErr := tree.Insert(key, struct{}{})

		status := observability.StatusInserted

		switch {
		case insertErr != nil:
			status = observability.StatusError
		case !inserted:
			status = observability.StatusDuplicate
		}

		metrics.RecordOp(ctx, observability.OpInsert, status, time.Since(opStart))

		if insertErr != nil {
			return result, fmt.Errorf("insert %d: %w", key, insertErr)
		}

		if sample && ((idx+1)%sampleEvery == 0 || idx == len(inserts)-1) {
			result.samples = append(result.samples, report.HeightSample{Size: tree.Len(), Height: tree.Height()})
		}
	}

	for _, key := range deletes {
		opStart := time.Now()

		status := observability.StatusMissing
		if tree.Delete(key) {
			status = observability.StatusRemoved
		}

		metrics.RecordOp(ctx, observability.OpDelete, status, time.Since(opStart))
	}

	for _, key := range inserts {
		opStart := time.Now()

		status := observability.StatusMissing
		if tree.Contains(key) {
			status = observability.StatusFound
			result.found++
		} else {
			result.missing++
		}

		metrics.RecordOp(ctx, observability.OpSearch, status, time.Since(opStart))
	}

	elapsed := time.Since(started)
	ops := 2*len(inserts) + len(deletes)

	sess.logger.InfoContext(ctx, "workload finished",
		"order", bench.Order,
		"ops", humanize.Comma(int64(ops)),
		"found", humanize.Comma(int64(result.found)),
		"missing", humanize.Comma(int64(result.missing)),
		"elapsed", elapsed.String(),
		"ops_per_sec", humanize.Comma(int64(float64(ops)/max(elapsed.Seconds(), 1e-9))),
	)

	if bench.Hibernate {
		err = hibernateAndBoot(ctx, sess, allocator)
		if err != nil {
			return result, err
		}
	}

	err = tree.Validate()
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvariantViolated, err)
	}

	result.stats = tree.Stats()

	return result, nil
}

func hibernateAndBoot[K, V any](ctx context.Context, sess *session, allocator *rbtree.Allocator[K, V]) error {
	started := time.Now()

	err := allocator.Hibernate()
	if err != nil {
		return fmt.Errorf("hibernate arena: %w", err)
	}

	compressed := allocator.Hibernated()
	hibernated := time.Since(started)
	started = time.Now()

	err = allocator.Boot()
	if err != nil {
		return fmt.Errorf("boot arena: %w", err)
	}

	sess.logger.InfoContext(ctx, "arena hibernated and booted",
		"compressed", compressed,
		"hibernate", hibernated.String(),
		"boot", time.Since(started).String(),
	)

	return nil
}
