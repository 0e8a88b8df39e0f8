package report_test

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/report"
)

const testNodeSize = 32

func sampleSummary(t *testing.T) report.Summary {
	t.Helper()

	tree := rbtree.NewSet[int]()
	traversal := []string{}

	for key := 1; key <= 7; key++ {
		_, _, err := tree.Insert(key, struct{}{})
		require.NoError(t, err)

		traversal = append(traversal, strconv.Itoa(key))
	}

	return report.NewSummary(tree.Stats(), testNodeSize, traversal)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"table", "yaml", "json"} {
		format, err := report.ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, report.Format(name), format)
	}

	_, err := report.ParseFormat("xml")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, report.HeightBound(0))
	assert.Equal(t, 2, report.HeightBound(1))
	assert.Equal(t, 4, report.HeightBound(3))
	assert.Equal(t, 6, report.HeightBound(7))
	assert.Equal(t, 20, report.HeightBound(1023))
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	summary := sampleSummary(t)
	assert.Equal(t, 7, summary.Size)
	assert.LessOrEqual(t, summary.Height, summary.HeightBound)
	assert.Equal(t, uint64(7), summary.Inserts)
	assert.Equal(t, 8, summary.ArenaUsed)
	assert.NotEmpty(t, summary.ArenaBytes)
	assert.Len(t, summary.Traversal, 7)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	summary := sampleSummary(t)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatJSON, summary))

	var decoded report.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, summary, decoded)
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	summary := sampleSummary(t)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatYAML, summary))
	assert.Contains(t, buf.String(), "height_bound: 6")

	var decoded report.Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, summary, decoded)
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, report.FormatTable, sampleSummary(t)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "1 2 3 4 5 6 7\n"))
	assert.Contains(t, out, "Rotations")
	assert.Contains(t, out, "bound 6")
	assert.Contains(t, out, "8 used of")

	require.ErrorIs(t, report.Write(&buf, report.Format("csv"), report.Summary{}), report.ErrUnknownFormat)
}

func TestTableTruncatesTraversal(t *testing.T) {
	t.Parallel()

	keys := make([]string, 100)
	for idx := range keys {
		keys[idx] = strconv.Itoa(idx)
	}

	out := report.Table(report.Summary{Traversal: keys})
	assert.Contains(t, out, "... (68 more)")
	assert.NotContains(t, out, " 99 ")
}

func TestHeightPlot(t *testing.T) {
	t.Parallel()

	samples := []report.HeightSample{{Size: 1, Height: 1}, {Size: 10, Height: 4}, {Size: 100, Height: 8}}

	var buf bytes.Buffer
	require.NoError(t, report.HeightPlot(&buf, "Ascending inserts", samples))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Ascending inserts")
	assert.Contains(t, html, "Measured")
}

func TestTraversalDiffEqual(t *testing.T) {
	t.Parallel()

	assert.Nil(t, report.TraversalDiff([]string{"1", "2"}, []string{"1", "2"}))
	assert.Nil(t, report.TraversalDiff(nil, []string{}))
}

func TestTraversalDiff(t *testing.T) {
	t.Parallel()

	want := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	got := []string{"1", "2", "4", "5", "6", "7", "8", "9", "10"}

	diffs := report.TraversalDiff(want, got)
	require.NotEmpty(t, diffs)

	deleted, inserted := "", ""

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			deleted += diff.Text
		case diffmatchpatch.DiffInsert:
			inserted += diff.Text
		case diffmatchpatch.DiffEqual:
		}
	}

	assert.Equal(t, "3\n", deleted)
	assert.Equal(t, "10\n", inserted)

	var buf bytes.Buffer
	require.NoError(t, report.WriteDiff(&buf, diffs, 1))

	out := buf.String()
	assert.Contains(t, out, "- 3")
	assert.Contains(t, out, "+ 10")
	assert.Contains(t, out, "equal")
	assert.NotContains(t, out, "  5\n")
}
