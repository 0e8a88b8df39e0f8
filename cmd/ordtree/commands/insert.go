package commands

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/batch"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

// stdinArg stands for "read keys from standard input, one per line".
const stdinArg = "-"

// ErrNoKeys is returned when insert is given nothing to insert.
var ErrNoKeys = errors.New("no keys: pass keys as arguments, - for stdin, or --batch")

// InsertCommand holds the flags of `ordtree insert`.
type InsertCommand struct {
	globals   *Globals
	batchPath string
	format    string
	numeric   bool
	reverse   bool
}

// NewInsertCommand creates the insert subcommand.
func NewInsertCommand(globals *Globals) *cobra.Command {
	ic := &InsertCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "insert [keys...]",
		Short: "Insert keys and print the ordered traversal",
		Long: `Insert keys into a fresh tree and print the in-order traversal with
size, height and the 2*log2(n+1) height bound.

Keys come from arguments, from standard input ("-", one key per line), or
from a JSON batch document (--batch) that may also delete keys.`,
		Example: `  ordtree insert 5 3 8 1
  seq 1 100 | ordtree insert --numeric -
  ordtree insert --batch ops.json --format yaml`,
		RunE: ic.run,
	}

	cmd.Flags().StringVar(&ic.batchPath, "batch", "", "JSON batch document of insert/delete operations")
	cmd.Flags().StringVar(&ic.format, "format", string(report.FormatTable), "Output format: table, yaml, json")
	cmd.Flags().BoolVar(&ic.numeric, "numeric", false, "Order keys as 64-bit integers instead of strings")
	cmd.Flags().BoolVar(&ic.reverse, "reverse", false, "Print the traversal in descending order")

	return cmd
}

func (ic *InsertCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(ic.format)
	if err != nil {
		return err
	}

	sess, err := ic.globals.start()
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "ordtree.insert")
	defer span.End()

	if ic.batchPath != "" {
		return ic.runBatch(ctx, cmd.OutOrStdout(), sess, format)
	}

	keys, err := collectKeys(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return ErrNoKeys
	}

	if ic.numeric {
		return insertAndReport(ctx, cmd.OutOrStdout(), sess, keys, parseInt64Key, ic.reverse, format)
	}

	return insertAndReport(ctx, cmd.OutOrStdout(), sess, keys, parseStringKey, ic.reverse, format)
}

func (ic *InsertCommand) runBatch(ctx context.Context, w io.Writer, sess *session, format report.Format) error {
	file, err := os.Open(ic.batchPath)
	if err != nil {
		return fmt.Errorf("open batch: %w", err)
	}
	defer file.Close()

	doc, err := batch.Read(file)
	if err != nil {
		return fmt.Errorf("%s: %w", ic.batchPath, err)
	}

	if doc.Ordering == batch.OrderingNumeric {
		return replayAndReport(ctx, w, sess, doc.Ops, batch.DecodeInt64, ic.reverse, format)
	}

	return replayAndReport(ctx, w, sess, doc.Ops, batch.DecodeString, ic.reverse, format)
}

// collectKeys expands "-" arguments into the lines of stdin. Blank lines are
// skipped.
func collectKeys(args []string, stdin io.Reader) ([]string, error) {
	keys := make([]string, 0, len(args))

	for _, arg := range args {
		if arg != stdinArg {
			keys = append(keys, arg)

			continue
		}

		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				keys = append(keys, line)
			}
		}

		err := scanner.Err()
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	return keys, nil
}

func parseStringKey(raw string) (string, error) { return raw, nil }

func parseInt64Key(raw string) (int64, error) {
	key, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("numeric key %q: %w", raw, err)
	}

	return key, nil
}

func insertAndReport[K cmp.Ordered](
	ctx context.Context, w io.Writer, sess *session,
	keys []string, parse func(string) (K, error), reverse bool, format report.Format,
) error {
	tree, err := newStringTree[K](sess)
	if err != nil {
		return err
	}

	for _, raw := range keys {
		key, parseErr := parse(raw)
		if parseErr != nil {
			return parseErr
		}

		_, inserted, insertErr := tree.Insert(key, raw)
		if insertErr != nil {
			return fmt.Errorf("insert %q: %w", raw, insertErr)
		}

		if !inserted {
			sess.logger.DebugContext(ctx, "duplicate key ignored", "key", raw)
		}
	}

	return writeTree(w, tree, reverse, format)
}

func replayAndReport[K cmp.Ordered](
	ctx context.Context, w io.Writer, sess *session,
	ops []batch.Op, decode func(json.RawMessage) (K, error), reverse bool, format report.Format,
) error {
	tree, err := newStringTree[K](sess)
	if err != nil {
		return err
	}

	outcome, err := batch.Replay(ops, tree, decode)
	if err != nil {
		return fmt.Errorf("replay batch: %w", err)
	}

	sess.logger.InfoContext(ctx, "batch replayed",
		"inserted", outcome.Inserted,
		"duplicates", outcome.Duplicates,
		"deleted", outcome.Deleted,
		"missing", outcome.Missing,
	)

	return writeTree(w, tree, reverse, format)
}

func newStringTree[K cmp.Ordered](sess *session) (*rbtree.Tree[K, string], error) {
	allocator, err := newAllocator[K, string](sess.cfg)
	if err != nil {
		return nil, err
	}

	return rbtree.New[K, string](rbtree.WithAllocator(allocator)), nil
}

// writeTree validates tree and prints its traversal and statistics.
func writeTree[K any](w io.Writer, tree *rbtree.Tree[K, string], reverse bool, format report.Format) error {
	err := tree.Validate()
	if err != nil {
		return fmt.Errorf("tree invariants: %w", err)
	}

	seq := tree.All()
	if reverse {
		seq = tree.Backward()
	}

	traversal := make([]string, 0, tree.Len())
	for key := range seq {
		traversal = append(traversal, fmt.Sprint(key))
	}

	summary := report.NewSummary(tree.Stats(), rbtree.NodeSize[K, string](), traversal)

	return report.Write(w, format, summary)
}
