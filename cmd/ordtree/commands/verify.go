package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

// insertShare out of opKinds random operations are inserts, the rest deletes.
const (
	insertShare = 2
	opKinds     = 3

	defaultDiffContext = 3
)

// ErrVerifyFailed is returned when any verify round disagrees with the
// oracle or breaks an invariant.
var ErrVerifyFailed = errors.New("verification failed")

// VerifyCommand holds the flags of `ordtree verify`.
type VerifyCommand struct {
	globals     *Globals
	rounds      int
	opsPerRound int
	keySpace    int
	diffContext int
	seed        int64
}

// NewVerifyCommand creates the verify subcommand.
func NewVerifyCommand(globals *Globals) *cobra.Command {
	vc := &VerifyCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the tree against a sorted-slice oracle",
		Long: `Run rounds of random inserts and deletes against both a tree and a sorted
slice. After every round the tree is validated, its traversals compared
with the oracle, and it is cloned and hibernated to check those paths too.
Hibernation ignores arena.hibernation_threshold so every round compresses.

Mismatching traversals are printed as a colored diff. Any failure exits
with status 2.`,
		Args: cobra.NoArgs,
		RunE: vc.run,
	}

	cmd.Flags().IntVar(&vc.rounds, "rounds", config.DefaultVerifyRounds, "Number of rounds")
	cmd.Flags().IntVar(&vc.opsPerRound, "ops", config.DefaultVerifyOpsPerRound, "Random operations per round")
	cmd.Flags().IntVar(&vc.keySpace, "key-space", config.DefaultVerifyKeySpace, "Keys are drawn from [0, key-space)")
	cmd.Flags().Int64Var(&vc.seed, "seed", config.DefaultVerifySeed, "Random seed of the first round")
	cmd.Flags().IntVar(&vc.diffContext, "diff-context", defaultDiffContext, "Equal keys shown around a difference")

	return cmd
}

func (vc *VerifyCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("rounds") {
		cfg.Verify.Rounds = vc.rounds
	}

	if flags.Changed("ops") {
		cfg.Verify.OpsPerRound = vc.opsPerRound
	}

	if flags.Changed("key-space") {
		cfg.Verify.KeySpace = vc.keySpace
	}

	if flags.Changed("seed") {
		cfg.Verify.Seed = vc.seed
	}

	return cfg.Validate()
}

func (vc *VerifyCommand) run(cmd *cobra.Command, _ []string) error {
	sess, err := vc.globals.start()
	if err != nil {
		return err
	}
	defer sess.close()

	err = vc.applyFlags(cmd, sess.cfg)
	if err != nil {
		return fmt.Errorf("invalid verify flags: %w", err)
	}

	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "ordtree.verify")
	defer span.End()

	out := cmd.OutOrStdout()
	verify := sess.cfg.Verify
	failed := 0

	for round := range verify.Rounds {
		seed := verify.Seed + int64(round)

		ok, roundErr := vc.runRound(out, sess.cfg, seed)
		if roundErr != nil {
			return roundErr
		}

		if !ok {
			failed++
		}

		sess.logger.DebugContext(ctx, "verify round done", "round", round, "seed", seed, "ok", ok)
	}

	if failed > 0 {
		color.New(color.FgRed, color.Bold).Fprintf(out, "FAIL %d of %d rounds\n", failed, verify.Rounds)

		return fmt.Errorf("%w: %d of %d rounds", ErrVerifyFailed, failed, verify.Rounds)
	}

	color.New(color.FgGreen, color.Bold).Fprintf(out, "PASS %d rounds of %d ops\n", verify.Rounds, verify.OpsPerRound)

	return nil
}

// runRound plays one seeded round. It reports false on any disagreement;
// errors are reserved for setup failures.
func (vc *VerifyCommand) runRound(out io.Writer, cfg *config.Config, seed int64) (bool, error) {
	allocator, err := newAllocator[int, struct{}](cfg)
	if err != nil {
		return false, err
	}

	tree := rbtree.NewSet[int](rbtree.WithAllocator(allocator))
	orc := &sortedOracle{}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(cfg.Verify.KeySpace))) //nolint:gosec // reproducible rounds, not crypto.
	failRound := color.New(color.FgRed).FprintfFunc()

	for step := range cfg.Verify.OpsPerRound {
		key := rng.IntN(cfg.Verify.KeySpace)

		var want, got bool

		opName := "insert"

		if rng.IntN(opKinds) < insertShare {
			want = orc.insert(key)

			_, inserted, insertErr := tree.Insert(key, struct{}{})
			if insertErr != nil {
				return false, fmt.Errorf("seed %d step %d: %w", seed, step, insertErr)
			}

			got = inserted
		} else {
			opName = "delete"
			want = orc.delete(key)
			got = tree.Delete(key)
		}

		if want != got {
			failRound(out, "seed %d step %d: %s(%d) returned %t, oracle %t\n", seed, step, opName, key, got, want)

			return false, nil
		}
	}

	clone, err := tree.Clone()
	if err != nil {
		return false, fmt.Errorf("seed %d: clone: %w", seed, err)
	}

	ok := vc.checkTree(out, seed, "tree", tree, orc.keys)
	ok = vc.checkTree(out, seed, "clone", clone, orc.keys) && ok

	compressed, err := hibernateRound(allocator)
	if err != nil {
		return false, fmt.Errorf("seed %d: %w", seed, err)
	}

	if !compressed {
		failRound(out, "seed %d: arena of %d slots was not compressed\n", seed, allocator.Size())

		ok = false
	}

	ok = vc.checkTree(out, seed, "booted", tree, orc.keys) && ok

	return ok, nil
}

// hibernateRound compresses the arena regardless of its configured threshold
// and boots it again. It reports whether the arena was actually compressed.
func hibernateRound[K, V any](allocator *rbtree.Allocator[K, V]) (bool, error) {
	threshold := allocator.HibernationThreshold
	allocator.HibernationThreshold = 0

	defer func() { allocator.HibernationThreshold = threshold }()

	err := allocator.Hibernate()
	if err != nil {
		return false, fmt.Errorf("hibernate: %w", err)
	}

	compressed := allocator.Hibernated()

	err = allocator.Boot()
	if err != nil {
		return compressed, fmt.Errorf("boot: %w", err)
	}

	return compressed, nil
}

// checkTree validates tree and compares both traversal directions with want.
func (vc *VerifyCommand) checkTree(out io.Writer, seed int64, name string, tree *rbtree.Tree[int, struct{}], want []int) bool {
	failRound := color.New(color.FgRed).FprintfFunc()

	err := tree.Validate()
	if err != nil {
		failRound(out, "seed %d %s: %v\n", seed, name, err)

		return false
	}

	backward := make([]int, 0, tree.Len())
	for key := range tree.Backward() {
		backward = append(backward, key)
	}

	slices.Reverse(backward)

	forwardOK := traversalMatches(out, fmt.Sprintf("seed %d %s forward", seed, name), want, tree.Keys(), vc.diffContext)
	backwardOK := traversalMatches(out, fmt.Sprintf("seed %d %s backward", seed, name), want, backward, vc.diffContext)

	return forwardOK && backwardOK
}

// traversalMatches prints a colored diff under title when got differs from
// want.
func traversalMatches(out io.Writer, title string, want, got []int, context int) bool {
	diffs := report.TraversalDiff(intStrings(want), intStrings(got))
	if diffs == nil {
		return true
	}

	color.New(color.FgRed).Fprintf(out, "%s: traversal differs from oracle\n", title)

	err := report.WriteDiff(out, diffs, context)
	if err != nil {
		fmt.Fprintf(out, "cannot print diff: %v\n", err)
	}

	return false
}

func intStrings(keys []int) []string {
	result := make([]string, len(keys))
	for idx, key := range keys {
		result[idx] = strconv.Itoa(key)
	}

	return result
}

// sortedOracle is the reference ordered set: a sorted slice.
type sortedOracle struct {
	keys []int
}

func (orc *sortedOracle) insert(key int) bool {
	idx, found := slices.BinarySearch(orc.keys, key)
	if found {
		return false
	}

	orc.keys = slices.Insert(orc.keys, idx, key)

	return true
}

func (orc *sortedOracle) delete(key int) bool {
	idx, found := slices.BinarySearch(orc.keys, key)
	if !found {
		return false
	}

	orc.keys = slices.Delete(orc.keys, idx, idx+1)

	return true
}
