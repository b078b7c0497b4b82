// Command rng-vectors prints generator output for a seed, or rewrites the
// golden vector fixture from the current generator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

func main() {
	seed := flag.String("seed", "", "seed text to draw from")
	count := flag.Int("count", 5, "number of floats to draw")
	fixture := flag.String("fixture", "testdata/rng_golden.json", "golden vector file")
	regen := flag.Bool("regen", false, "re-record every vector in -fixture")
	flag.Parse()

	if *regen {
		if err := regenerate(*fixture); err != nil {
			fmt.Fprintf(os.Stderr, "regen: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *count < 1 {
		fmt.Fprintln(os.Stderr, "count must be positive")
		os.Exit(2)
	}

	fmt.Printf("engine:    %s\n", engine.Version)
	fmt.Printf("seed:      %q\n", *seed)
	fmt.Printf("seed_hash: %s\n", seeds.HashText(*seed))
	for i, f := range engine.Floats(*seed, *count) {
		fmt.Printf("%4d  %.17g\n", i, f)
	}
}

// regenerate re-records a fixture in place. Any diff it produces means the
// algorithm changed and engine.Version must be bumped.
func regenerate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var vectors []engine.Vector
	if err := json.Unmarshal(data, &vectors); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	changed := 0
	for i := range vectors {
		before := vectors[i].Expected
		vectors[i].Record()
		if !slices.Equal(before, vectors[i].Expected) {
			changed++
			fmt.Printf("changed: %s\n", vectors[i].Description)
		}
	}

	out, err := json.MarshalIndent(vectors, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("%d vectors, %d changed\n", len(vectors), changed)
	return nil
}
