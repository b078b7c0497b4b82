package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

func TestDeterminism(t *testing.T) {
	seeds := []string{"", "a", "crash:1:100", "slotreel:0:🍒,🍋,🔔:3", "lobbyspawn:2266666:12", "日本語"}

	for _, seed := range seeds {
		for _, k := range []int{0, 1, 7, 64} {
			a := Floats(seed, k)
			b := Floats(seed, k)
			if len(a) != k || len(b) != k {
				t.Fatalf("seed %q: expected %d floats, got %d and %d", seed, k, len(a), len(b))
			}
			for i := range a {
				if a[i] != b[i] {
					t.Errorf("seed %q draw %d not deterministic: %v vs %v", seed, i, a[i], b[i])
				}
			}
		}
	}
}

func TestRange(t *testing.T) {
	for s := 0; s < 200; s++ {
		rng := MakeDeterministicRng(fmt.Sprintf("range:%d", s))
		for i := 0; i < 500; i++ {
			v := rng()
			if v < 0 || v >= 1 {
				t.Fatalf("seed range:%d draw %d out of [0,1): %v", s, i, v)
			}
		}
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a := MakeDeterministicRng("crash:7:250")
	b := MakeDeterministicRng("crash:7:250")

	for i := 0; i < 32; i++ {
		va := a()
		// An extra draw on a private generator must not disturb a or b.
		MakeDeterministicRng("crash:7:250")()
		vb := b()
		if va != vb {
			t.Fatalf("draw %d diverged between instances: %v vs %v", i, va, vb)
		}
	}
}

func TestConcurrentGeneratorsDoNotShareState(t *testing.T) {
	want := Floats("crash:small", 16)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for w := 0; w < 32; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := Floats("crash:small", 16)
			for i := range got {
				if got[i] != want[i] {
					errs <- fmt.Errorf("draw %d: got %v, want %v", i, got[i], want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSensitivity(t *testing.T) {
	pairs := [][2]string{
		{"crash:1:100", "crash:1:101"},
		{"crash:1:100", "crash:2:100"},
		{"", "a"},
		{"dice-anim:1", "roulette:1"},
		{"slotreel:0:x:0", "slotreel:0:x:1"},
	}

	for _, p := range pairs {
		a := MakeDeterministicRng(p[0])()
		b := MakeDeterministicRng(p[1])()
		if a == b {
			t.Errorf("seeds %q and %q produced the same first draw %v", p[0], p[1], a)
		}
	}
}

func TestPick(t *testing.T) {
	items := []string{"a", "b", "c"}

	got, err := Pick(items, MakeDeterministicRng("pick:fixed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a" {
		t.Errorf("Pick with seed pick:fixed: got %q, want %q", got, "a")
	}

	for s := 0; s < 500; s++ {
		rng := MakeDeterministicRng(fmt.Sprintf("pick:%d", s))
		v, err := Pick(items, rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "a" && v != "b" && v != "c" {
			t.Fatalf("Pick returned non-member %q", v)
		}
	}
}

func TestPickConsumesOneDraw(t *testing.T) {
	g := NewGenerator("pick:count")
	if _, err := Pick([]int{1, 2, 3, 4}, g.NextFloat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Draws() != 1 {
		t.Errorf("Pick consumed %d draws, want 1", g.Draws())
	}
}

func TestPickEmpty(t *testing.T) {
	g := NewGenerator("pick:empty")

	_, err := Pick([]string{}, g.NextFloat)
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got %v", err)
	}
	if g.Draws() != 0 {
		t.Errorf("Pick on empty slice consumed %d draws", g.Draws())
	}
}

func TestPickIndexClampsOutOfRangeGenerator(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		want int
	}{
		{"one", 1, 3},
		{"above_one", 7.5, 3},
		{"positive_inf", math.Inf(1), 3},
		{"negative", -0.5, 0},
		{"negative_inf", math.Inf(-1), 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := PickIndex(4, func() float64 { return tt.u })
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if i != tt.want {
				t.Errorf("PickIndex(%v): got %d, want %d", tt.u, i, tt.want)
			}
		})
	}

	got, err := Pick([]string{"a", "b", "c"}, func() float64 { return -0.5 })
	if err != nil || got != "a" {
		t.Errorf("Pick with negative generator: got %q, %v", got, err)
	}

	items := []int{1, 2, 3, 4}
	Shuffle(items, func() float64 { return math.NaN() })
	if len(items) != 4 {
		t.Errorf("Shuffle changed length: %v", items)
	}
}

func TestFloatsIntoReusesBuffer(t *testing.T) {
	buf := make([]float64, 0, 8)
	out := FloatsInto(buf, "crash:small", 3)
	if &out[0] != &buf[:1][0] {
		t.Error("FloatsInto reallocated despite sufficient capacity")
	}
	want := Floats("crash:small", 3)
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("FloatsInto draw %d: got %v, want %v", i, out[i], want[i])
		}
	}
	if got := FloatsInto(nil, "x", -1); len(got) != 0 {
		t.Errorf("negative count should yield empty slice, got %d", len(got))
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	deck := make([]int, 52)
	for i := range deck {
		deck[i] = i
	}
	Shuffle(deck, MakeDeterministicRng("poker:1"))

	seen := make(map[int]bool, len(deck))
	for _, c := range deck {
		if seen[c] {
			t.Fatalf("card %d dealt twice", c)
		}
		seen[c] = true
	}

	again := make([]int, 52)
	for i := range again {
		again[i] = i
	}
	Shuffle(again, MakeDeterministicRng("poker:1"))
	for i := range deck {
		if deck[i] != again[i] {
			t.Fatalf("shuffle not deterministic at %d", i)
		}
	}
}

func TestSurrogatePairsCountAsTwoUnits(t *testing.T) {
	// U+1F352 is one rune but two UTF-16 code units.
	g := seedHash("🍒")
	hi, lo := uint32(0xD83C), uint32(0xDF52)
	want := absorb(absorb(seedInit^2, hi), lo)
	if g != want {
		t.Errorf("surrogate seeding: got %#x, want %#x", g, want)
	}
}

func BenchmarkMakeDeterministicRng(b *testing.B) {
	for i := 0; i < b.N; i++ {
		rng := MakeDeterministicRng("slotreel:3:🍒,🍋,🔔,7,BAR:42")
		_ = rng()
	}
}

func BenchmarkFloatsInto(b *testing.B) {
	buf := make([]float64, 16)
	for i := 0; i < b.N; i++ {
		buf = FloatsInto(buf, "coins:1700000:25", 16)
	}
}
