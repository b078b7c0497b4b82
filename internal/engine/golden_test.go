package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRNGGoldenVectors(t *testing.T) {
	vectors, err := loadRNGVectors()
	if err != nil {
		t.Fatalf("Failed to load golden vectors: %v", err)
	}

	for _, v := range vectors {
		t.Run(v.Description, func(t *testing.T) {
			actual := Floats(v.Seed, v.Count)

			if len(actual) != len(v.Expected) {
				t.Fatalf("Length mismatch: got %d floats, want %d", len(actual), len(v.Expected))
			}

			for i := range actual {
				if actual[i] != v.Expected[i] {
					t.Errorf("Float %d mismatch for seed %q: got %.17g, want %.17g", i, v.Seed, actual[i], v.Expected[i])
				}
			}
		})
	}
}

// The literals below are duplicated from testdata on purpose: if the fixture
// is regenerated after an accidental algorithm change, these still fail.
func TestRNGPinnedLiterals(t *testing.T) {
	tests := []struct {
		seed string
		want []float64
	}{
		{"", []float64{0.038885081419721246, 0.6078312715981156, 0.34817178826779127}},
		{"crash:small", []float64{0.7150445815641433, 0.9445879743434489, 0.3198040188290179}},
	}

	for _, tt := range tests {
		rng := MakeDeterministicRng(tt.seed)
		for i, want := range tt.want {
			if got := rng(); got != want {
				t.Errorf("seed %q draw %d: got %.17g, want %.17g", tt.seed, i, got, want)
			}
		}
	}
}

func TestEmptySeedMatchesZeroIterationSeeding(t *testing.T) {
	// With no characters the accumulator is just the init constant.
	g := &Generator{h: seedInit ^ 0}
	want := g.NextFloat()

	if got := MakeDeterministicRng("")(); got != want {
		t.Errorf("empty seed first draw: got %.17g, want %.17g", got, want)
	}
	if want != 0.038885081419721246 {
		t.Errorf("empty seed first draw drifted: %.17g", want)
	}
}

func TestGenerateGoldenVectors(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping golden vector generation in short mode")
	}

	// Regenerating the fixture hides algorithm changes; run manually only.
	t.Skip("Manual test - remove skip to regenerate golden vectors")

	vectors, err := loadRNGVectors()
	if err != nil {
		t.Fatalf("Failed to load golden vectors: %v", err)
	}
	for i := range vectors {
		vectors[i].Record()
	}
	if err := saveRNGVectors(vectors); err != nil {
		t.Fatalf("Failed to save golden vectors: %v", err)
	}
}

func goldenPath(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func loadRNGVectors() ([]Vector, error) {
	data, err := os.ReadFile(goldenPath("rng_golden.json"))
	if err != nil {
		return nil, err
	}

	var vectors []Vector
	err = json.Unmarshal(data, &vectors)
	return vectors, err
}

func saveRNGVectors(vectors []Vector) error {
	data, err := json.MarshalIndent(vectors, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(goldenPath("rng_golden.json"), data, 0o644)
}
