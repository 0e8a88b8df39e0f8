package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

const (
	metricOpsTotal        = "ordtree.ops.total"
	metricOpDuration      = "ordtree.op.duration.seconds"
	metricTreeSize        = "ordtree.tree.size"
	metricTreeHeight      = "ordtree.tree.height"
	metricTreeBlackHeight = "ordtree.tree.black_height"
	metricArenaSlots      = "ordtree.arena.slots"
	metricRotationsTotal  = "ordtree.rotations.total"
	metricRecolorsTotal   = "ordtree.recolors.total"

	attrOp     = "op"
	attrStatus = "status"
	attrState  = "state"

	stateUsed = "used"
	stateFree = "free"
)

// Operation names and outcomes recorded by TreeMetrics.RecordOp.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpSearch = "search"

	StatusInserted  = "inserted"
	StatusDuplicate = "duplicate"
	StatusRemoved   = "removed"
	StatusFound     = "found"
	StatusMissing   = "missing"
	StatusError     = "error"
)

// opBucketBoundaries covers 100ns to 1ms, the range of single tree operations.
var opBucketBoundaries = []float64{1e-7, 2.5e-7, 5e-7, 1e-6, 2.5e-6, 5e-6, 1e-5, 1e-4, 1e-3}

// ErrNoStats is reported by StatsHolder.Ready until a snapshot is stored.
var ErrNoStats = errors.New("no tree statistics published yet")

// StatsHolder publishes tree statistics to metric callbacks, which run on
// the exporter's goroutine while the tree itself is owned by another one.
type StatsHolder struct {
	mu     sync.RWMutex
	stats  rbtree.Stats
	stored bool
}

// Store replaces the published snapshot.
func (sh *StatsHolder) Store(stats rbtree.Stats) {
	sh.mu.Lock()
	sh.stats = stats
	sh.stored = true
	sh.mu.Unlock()
}

// Ready is a ReadyCheck passing once a snapshot has been stored.
func (sh *StatsHolder) Ready(context.Context) error {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if !sh.stored {
		return ErrNoStats
	}

	return nil
}

// Load returns the published snapshot.
func (sh *StatsHolder) Load() rbtree.Stats {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return sh.stats
}

// TreeMetrics holds the OTel instruments describing one tree.
type TreeMetrics struct {
	opsTotal     metric.Int64Counter
	opDuration   metric.Float64Histogram
	registration metric.Registration
}

// NewTreeMetrics creates the tree instruments from the given meter. Shape
// gauges and structural counters are observed from holder on collection.
func NewTreeMetrics(mt metric.Meter, holder *StatsHolder) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Total number of tree operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	opDuration, err := mt.Float64Histogram(metricOpDuration,
		metric.WithDescription("Tree operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(opBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpDuration, err)
	}

	size, err := mt.Int64ObservableGauge(metricTreeSize,
		metric.WithDescription("Number of elements in the tree"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeSize, err)
	}

	height, err := mt.Int64ObservableGauge(metricTreeHeight,
		metric.WithDescription("Nodes on the longest root-to-leaf path"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeHeight, err)
	}

	blackHeight, err := mt.Int64ObservableGauge(metricTreeBlackHeight,
		metric.WithDescription("Black nodes on every root-to-leaf path"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeBlackHeight, err)
	}

	arenaSlots, err := mt.Int64ObservableGauge(metricArenaSlots,
		metric.WithDescription("Arena slots by state, sentinel included"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricArenaSlots, err)
	}

	rotations, err := mt.Int64ObservableCounter(metricRotationsTotal,
		metric.WithDescription("Rotations performed by rebalancing"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRotationsTotal, err)
	}

	recolors, err := mt.Int64ObservableCounter(metricRecolorsTotal,
		metric.WithDescription("Color flips performed by rebalancing"),
		metric.WithUnit("{recolor}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRecolorsTotal, err)
	}

	registration, err := mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := holder.Load()

		obs.ObserveInt64(size, int64(stats.Len))
		obs.ObserveInt64(height, int64(stats.Height))
		obs.ObserveInt64(blackHeight, int64(stats.BlackHeight))
		obs.ObserveInt64(arenaSlots, int64(stats.ArenaUsed), metric.WithAttributes(attribute.String(attrState, stateUsed)))
		obs.ObserveInt64(arenaSlots, int64(stats.ArenaSize-stats.ArenaUsed),
			metric.WithAttributes(attribute.String(attrState, stateFree)))
		obs.ObserveInt64(rotations, safeconv.MustUint64ToInt64(stats.Rotations))
		obs.ObserveInt64(recolors, safeconv.MustUint64ToInt64(stats.Recolors))

		return nil
	}, size, height, blackHeight, arenaSlots, rotations, recolors)
	if err != nil {
		return nil, fmt.Errorf("register tree stats callback: %w", err)
	}

	return &TreeMetrics{
		opsTotal:     opsTotal,
		opDuration:   opDuration,
		registration: registration,
	}, nil
}

// RecordOp records a completed operation with its outcome and duration.
func (tm *TreeMetrics) RecordOp(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	tm.opsTotal.Add(ctx, 1, attrs)
	tm.opDuration.Record(ctx, duration.Seconds(), attrs)
}

// Close unregisters the stats callback.
func (tm *TreeMetrics) Close() error {
	err := tm.registration.Unregister()
	if err != nil {
		return fmt.Errorf("unregister tree stats callback: %w", err)
	}

	return nil
}
