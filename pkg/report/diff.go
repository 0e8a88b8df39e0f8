package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// TraversalDiff compares two key sequences line by line. It returns nil
// when they are identical.
func TraversalDiff(want, got []string) []diffmatchpatch.Diff {
	wantText := joinLines(want)
	gotText := joinLines(got)

	if wantText == gotText {
		return nil
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(wantText, gotText)
	diffs := dmp.DiffMainRunes(src, dst, false)

	return dmp.DiffCharsToLines(dmp.DiffCleanupMerge(diffs), lines)
}

// WriteDiff prints diffs one key per line: missing keys prefixed with "-"
// in red, unexpected ones with "+" in green. Runs of equal keys longer than
// 2*context are elided.
func WriteDiff(w io.Writer, diffs []diffmatchpatch.Diff, context int) error {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	for idx, diff := range diffs {
		keys := strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n")

		var err error

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			err = writeKeys(w, removed, "-", keys)
		case diffmatchpatch.DiffInsert:
			err = writeKeys(w, added, "+", keys)
		case diffmatchpatch.DiffEqual:
			err = writeEqual(w, keys, context, idx == 0, idx == len(diffs)-1)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func writeKeys(w io.Writer, painter *color.Color, prefix string, keys []string) error {
	for _, key := range keys {
		_, err := painter.Fprintln(w, prefix+" "+key)
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}

func writeEqual(w io.Writer, keys []string, context int, first, last bool) error {
	head, tail := keys, []string(nil)

	switch {
	case first && len(keys) > context:
		head, tail = nil, keys[len(keys)-context:]
	case last && len(keys) > context:
		head = keys[:context]
	case len(keys) > 2*context:
		head, tail = keys[:context], keys[len(keys)-context:]
	}

	for _, key := range head {
		_, err := fmt.Fprintln(w, "  "+key)
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	if len(head)+len(tail) < len(keys) {
		_, err := fmt.Fprintf(w, "  ... %d equal\n", len(keys)-len(head)-len(tail))
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	for _, key := range tail {
		_, err := fmt.Fprintln(w, "  "+key)
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}

func joinLines(keys []string) string {
	if len(keys) == 0 {
		return ""
	}

	return strings.Join(keys, "\n") + "\n"
}
