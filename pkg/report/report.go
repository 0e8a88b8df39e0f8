// Package report renders tree statistics and traversals for the ordtree CLI.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

// Format selects how a Summary is written.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
)

// ErrUnknownFormat is returned for a format name outside table, yaml, json.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch format := Format(name); format {
	case FormatTable, FormatYAML, FormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Summary is the printable view of a tree.
type Summary struct {
	Traversal   []string `json:"traversal,omitempty" yaml:"traversal,omitempty"`
	ArenaBytes  string   `json:"arena_bytes" yaml:"arena_bytes"`
	Size        int      `json:"size" yaml:"size"`
	Height      int      `json:"height" yaml:"height"`
	HeightBound int      `json:"height_bound" yaml:"height_bound"`
	BlackHeight int      `json:"black_height" yaml:"black_height"`
	ArenaSlots  int      `json:"arena_slots" yaml:"arena_slots"`
	ArenaUsed   int      `json:"arena_used" yaml:"arena_used"`
	Inserts     uint64   `json:"inserts" yaml:"inserts"`
	Duplicates  uint64   `json:"duplicates" yaml:"duplicates"`
	Deletes     uint64   `json:"deletes" yaml:"deletes"`
	Rotations   uint64   `json:"rotations" yaml:"rotations"`
	Recolors    uint64   `json:"recolors" yaml:"recolors"`
	FixupSteps  uint64   `json:"fixup_steps" yaml:"fixup_steps"`
}

// HeightBound is the largest height a valid red-black tree of n elements
// can reach: 2·log2(n+1), rounded down.
func HeightBound(n int) int {
	return int(2 * math.Log2(float64(n)+1))
}

// NewSummary builds a Summary from tree statistics. nodeSize is the size of
// one arena slot in bytes.
func NewSummary(stats rbtree.Stats, nodeSize int, traversal []string) Summary {
	return Summary{
		Traversal:   traversal,
		ArenaBytes:  humanize.IBytes(safeconv.MustIntToUint64(stats.ArenaSize) * safeconv.MustIntToUint64(nodeSize)),
		Size:        stats.Len,
		Height:      stats.Height,
		HeightBound: HeightBound(stats.Len),
		BlackHeight: stats.BlackHeight,
		ArenaSlots:  stats.ArenaSize,
		ArenaUsed:   stats.ArenaUsed,
		Inserts:     stats.Inserts,
		Duplicates:  stats.Duplicates,
		Deletes:     stats.Deletes,
		Rotations:   stats.Rotations,
		Recolors:    stats.Recolors,
		FixupSteps:  stats.FixupSteps,
	}
}

// Write renders summary to w in the given format.
func Write(w io.Writer, format Format, summary Summary) error {
	switch format {
	case FormatTable:
		_, err := io.WriteString(w, Table(summary))
		if err != nil {
			return fmt.Errorf("write table: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(summary)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(summary)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
