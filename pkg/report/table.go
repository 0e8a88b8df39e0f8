package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

// maxTraversalItems caps the traversal line of the table view.
const maxTraversalItems = 32

// Table renders summary as a two-column go-pretty table, preceded by the
// traversal when one is present.
func Table(summary Summary) string {
	var sb strings.Builder

	if len(summary.Traversal) > 0 {
		sb.WriteString(formatTraversal(summary.Traversal))
		sb.WriteString("\n")
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Size", humanize.Comma(int64(summary.Size))},
		{"Height", fmt.Sprintf("%d (bound %d)", summary.Height, summary.HeightBound)},
		{"Black height", summary.BlackHeight},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Inserts", humanize.Comma(safeconv.MustUint64ToInt64(summary.Inserts))},
		{"Duplicates", humanize.Comma(safeconv.MustUint64ToInt64(summary.Duplicates))},
		{"Deletes", humanize.Comma(safeconv.MustUint64ToInt64(summary.Deletes))},
		{"Rotations", humanize.Comma(safeconv.MustUint64ToInt64(summary.Rotations))},
		{"Recolors", humanize.Comma(safeconv.MustUint64ToInt64(summary.Recolors))},
		{"Fixup steps", humanize.Comma(safeconv.MustUint64ToInt64(summary.FixupSteps))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Arena slots", fmt.Sprintf("%d used of %d", summary.ArenaUsed, summary.ArenaSlots)},
		{"Arena memory", summary.ArenaBytes},
	})

	sb.WriteString(tbl.Render())
	sb.WriteString("\n")

	return sb.String()
}

func formatTraversal(keys []string) string {
	if len(keys) <= maxTraversalItems {
		return strings.Join(keys, " ")
	}

	head := strings.Join(keys[:maxTraversalItems], " ")

	return fmt.Sprintf("%s ... (%s more)", head, humanize.Comma(int64(len(keys)-maxTraversalItems)))
}
