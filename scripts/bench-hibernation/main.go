// bench-hibernation measures heap memory before and after Hibernate() calls
// while a large tree grows chunk by chunk.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --keys 5000000 --chunk-size 1000000 \
//	  --profile-dir docs/profiles/arena-hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

func main() {
	keys := flag.Int("keys", 5_000_000, "Number of keys to insert")
	chunkSize := flag.Int("chunk-size", 1_000_000, "Keys inserted between hibernations")
	seed := flag.Uint64("seed", 1, "Random seed of the key sequence")
	ascending := flag.Bool("ascending", false, "Insert keys in ascending order instead of random")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *profileDir == "" {
		log.Fatal("--profile-dir is required")
	}

	if err := os.MkdirAll(*profileDir, 0o755); err != nil {
		log.Fatalf("mkdir profile-dir: %v", err)
	}

	if *cpuProfile {
		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			log.Fatalf("create cpu profile: %v", cpuErr)
		}
		defer cpuFile.Close()

		if startErr := pprof.StartCPUProfile(cpuFile); startErr != nil {
			log.Fatalf("start cpu profile: %v", startErr)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	sequence := make([]int64, *keys)
	for idx := range sequence {
		sequence[idx] = int64(idx)
	}

	if !*ascending {
		rng := rand.New(rand.NewPCG(*seed, 0)) //nolint:gosec // benchmark input.
		rng.Shuffle(len(sequence), func(i, j int) { sequence[i], sequence[j] = sequence[j], sequence[i] })
	}

	allocator := rbtree.NewAllocator[int64, struct{}]()
	tree := rbtree.NewSet[int64](rbtree.WithAllocator(allocator))

	chunks := planChunks(len(sequence), *chunkSize)
	log.Printf("inserting %s keys in %d chunks (chunk size %s, node size %d bytes)",
		humanize.Comma(int64(len(sequence))), len(chunks), humanize.Comma(int64(*chunkSize)),
		rbtree.NodeSize[int64, struct{}]())

	// Heap measurements at chunk boundaries.
	type heapSnapshot struct {
		label     string
		heapInUse uint64
		heapSys   uint64
		heapIdle  uint64
		numGC     uint32
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
			numGC:     m.NumGC,
		})
		log.Printf("  [heap] %-40s inuse=%10s  sys=%10s  idle=%10s",
			label, humanize.Bytes(m.HeapInuse), humanize.Bytes(m.HeapSys), humanize.Bytes(m.HeapIdle))
	}

	writeHeapProfile := func(name string) {
		runtime.GC()
		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	takeSnapshot("before_insert")
	writeHeapProfile("heap_before_insert.prof")

	for i, chunk := range chunks {
		if i > 0 {
			takeSnapshot(fmt.Sprintf("chunk_%d_end_before_hibernate", i))
			writeHeapProfile(fmt.Sprintf("heap_chunk_%d_before_hibernate.prof", i))

			started := time.Now()
			if herr := allocator.Hibernate(); herr != nil {
				log.Fatalf("hibernate: %v", herr)
			}

			log.Printf("hibernate took %v", time.Since(started))

			takeSnapshot(fmt.Sprintf("chunk_%d_end_after_hibernate", i))
			writeHeapProfile(fmt.Sprintf("heap_chunk_%d_after_hibernate.prof", i))

			started = time.Now()
			if berr := allocator.Boot(); berr != nil {
				log.Fatalf("boot: %v", berr)
			}

			log.Printf("boot took %v", time.Since(started))

			takeSnapshot(fmt.Sprintf("chunk_%d_end_after_boot", i))
		}

		log.Printf("inserting chunk %d/%d (keys %d-%d)", i+1, len(chunks), chunk.start, chunk.end)

		for _, key := range sequence[chunk.start:chunk.end] {
			if _, _, err := tree.Insert(key, struct{}{}); err != nil {
				log.Fatalf("insert %d: %v", key, err)
			}
		}
	}

	takeSnapshot("after_all_chunks")
	writeHeapProfile("heap_after_all_chunks.prof")

	if err := tree.Validate(); err != nil {
		log.Fatalf("validate: %v", err)
	}

	stats := tree.Stats()
	log.Printf("size=%s height=%d black_height=%d rotations=%s",
		humanize.Comma(int64(stats.Len)), stats.Height, stats.BlackHeight, humanize.Comma(safeconv.MustUint64ToInt64(stats.Rotations)))

	tree.Clear()

	takeSnapshot("after_clear")

	// Print summary table.
	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-45s %10s %10s %10s\n", "Phase", "InUse(MB)", "Sys(MB)", "Idle(MB)")
	fmt.Println("---------------------------------------------+----------+----------+----------")

	for _, s := range snapshots {
		fmt.Printf("%-45s %10.1f %10.1f %10.1f\n",
			s.label, float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, float64(s.heapIdle)/1e6)
	}

	// Compute hibernation deltas.
	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for i := 0; i+1 < len(snapshots); i++ {
		curr := snapshots[i]

		next := snapshots[i+1]
		if strings.Contains(curr.label, "before_hibernate") && strings.Contains(next.label, "after_hibernate") {
			delta := float64(curr.heapInUse) - float64(next.heapInUse)
			pct := (delta / float64(curr.heapInUse)) * 100
			fmt.Printf("  %s -> %s: %.1f MB freed (%.1f%%)\n",
				curr.label, next.label, delta/1e6, pct)
		}
	}
}

type chunkBounds struct {
	start int
	end   int
}

func planChunks(total, chunkSize int) []chunkBounds {
	var chunks []chunkBounds

	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		chunks = append(chunks, chunkBounds{start: start, end: end})
	}

	return chunks
}
