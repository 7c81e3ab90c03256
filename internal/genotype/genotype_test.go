package genotype

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"carvolve/internal/model"
)

func TestGenomeEqualityKeysMapsByContent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := Random(rng)
	b := a
	if a != b {
		t.Fatal("expected copies to compare equal")
	}

	seen := map[model.Genome]int{a: 1}
	if seen[b] != 1 {
		t.Fatal("expected structurally identical genome to hit the same map entry")
	}

	b.Cells[model.GridRows-1][model.GridCols-1] = nextKind(b.Cells[model.GridRows-1][model.GridCols-1])
	if a == b {
		t.Fatal("expected genomes differing in one cell to be unequal")
	}
	if _, ok := seen[b]; ok {
		t.Fatal("expected differing genome to miss the map entry")
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("expected fingerprints to differ")
	}
}

func TestRandomFollowsCellWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := map[model.CellKind]int{}
	for i := 0; i < 400; i++ {
		g := Random(rng)
		for _, kind := range Cells(g) {
			counts[kind]++
		}
	}
	if counts[model.CellStructural] <= counts[model.CellEmpty] {
		t.Fatalf("expected structural cells to dominate empty: %v", counts)
	}
	if counts[model.CellEmpty] <= counts[model.CellWheel] {
		t.Fatalf("expected empty cells to outnumber wheels: %v", counts)
	}
	total := float64(400 * model.GridCells)
	share := float64(counts[model.CellStructural]) / total
	if share < 0.55 || share > 0.63 {
		t.Fatalf("structural share out of range: got=%.3f want~%.3f", share, 1.0/1.7)
	}
}

func TestOnePointCrossoverPartitionsColumns(t *testing.T) {
	a := Filled(model.CellStructural)
	b := Filled(model.CellWheel)

	for cut := 1; cut < model.GridCols; cut++ {
		first, second, err := OnePointCrossover(a, b, cut)
		if err != nil {
			t.Fatalf("cut=%d: %v", cut, err)
		}
		for r := 0; r < model.GridRows; r++ {
			for c := 0; c < model.GridCols; c++ {
				wantFirst, wantSecond := a.Cells[r][c], b.Cells[r][c]
				if c >= cut {
					wantFirst, wantSecond = b.Cells[r][c], a.Cells[r][c]
				}
				if first.Cells[r][c] != wantFirst || second.Cells[r][c] != wantSecond {
					t.Fatalf("cut=%d cell=(%d,%d): got=(%v,%v) want=(%v,%v)", cut, r, c, first.Cells[r][c], second.Cells[r][c], wantFirst, wantSecond)
				}
			}
		}
	}
}

func TestOnePointCrossoverBoundaryCuts(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a, b := Random(rng), Random(rng)

	first, second, err := OnePointCrossover(a, b, 1)
	if err != nil {
		t.Fatalf("cut=1: %v", err)
	}
	for r := 0; r < model.GridRows; r++ {
		if first.Cells[r][0] != a.Cells[r][0] || second.Cells[r][0] != b.Cells[r][0] {
			t.Fatalf("cut=1 row %d: expected first column kept", r)
		}
	}

	first, second, err = OnePointCrossover(a, b, model.GridCols-1)
	if err != nil {
		t.Fatalf("cut=%d: %v", model.GridCols-1, err)
	}
	last := model.GridCols - 1
	for r := 0; r < model.GridRows; r++ {
		if first.Cells[r][last] != b.Cells[r][last] || second.Cells[r][last] != a.Cells[r][last] {
			t.Fatalf("cut=%d row %d: expected only the last column swapped", last, r)
		}
	}

	for _, cut := range []int{-1, 0, model.GridCols, model.GridCols + 3} {
		if _, _, err := OnePointCrossover(a, b, cut); !errors.Is(err, ErrPrecondition) {
			t.Fatalf("cut=%d: expected precondition error, got=%v", cut, err)
		}
	}
}

func TestRandomCutStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		cut := RandomCut(rng)
		if cut < 1 || cut >= model.GridCols {
			t.Fatalf("cut out of range: %d", cut)
		}
		seen[cut] = true
	}
	if len(seen) != model.GridCols-1 {
		t.Fatalf("expected every cut to appear, got=%v", seen)
	}
}

func TestUniformCrossoverChildrenAreComplements(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := Filled(model.CellStructural)
	b := Filled(model.CellWheel)

	first, second := UniformCrossover(rng, a, b)
	fromA := 0
	for r := 0; r < model.GridRows; r++ {
		for c := 0; c < model.GridCols; c++ {
			if first.Cells[r][c] == second.Cells[r][c] {
				t.Fatalf("cell (%d,%d) inherited from the same parent in both children", r, c)
			}
			if first.Cells[r][c] == model.CellStructural {
				fromA++
			}
		}
	}
	if fromA == 0 || fromA == model.GridCells {
		t.Fatalf("expected a mix of parents, got %d cells from a", fromA)
	}
}

func TestMutateTouchesDistinctPositions(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	cases := []int{0, 1, 3, model.GridCells - 1, model.GridCells, model.GridCells + 10}
	for _, amount := range cases {
		original := Random(rng)
		mutated := original
		changes := Mutate(rng, &mutated, amount)

		want := amount
		if want > model.GridCells {
			want = model.GridCells
		}
		if len(changes) != want {
			t.Fatalf("amount=%d: touched=%d want=%d", amount, len(changes), want)
		}

		positions := map[[2]int]struct{}{}
		for _, change := range changes {
			key := [2]int{change.Row, change.Col}
			if _, dup := positions[key]; dup {
				t.Fatalf("amount=%d: position %v touched twice", amount, key)
			}
			positions[key] = struct{}{}
			if original.Cells[change.Row][change.Col] != change.From {
				t.Fatalf("amount=%d: change.From mismatch at %v", amount, key)
			}
			if mutated.Cells[change.Row][change.Col] != change.To {
				t.Fatalf("amount=%d: change.To not applied at %v", amount, key)
			}
		}

		differing := 0
		for r := 0; r < model.GridRows; r++ {
			for c := 0; c < model.GridCols; c++ {
				if original.Cells[r][c] != mutated.Cells[r][c] {
					differing++
					if _, ok := positions[[2]int{r, c}]; !ok {
						t.Fatalf("amount=%d: untouched cell (%d,%d) changed", amount, r, c)
					}
				}
			}
		}
		if differing > want {
			t.Fatalf("amount=%d: %d cells changed", amount, differing)
		}
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	g := Random(rng)
	parsed, err := Parse(Render(g))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != g {
		t.Fatalf("round trip mismatch:\n%s\n%s", Render(g), Render(parsed))
	}

	if _, err := Parse("###\n"); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected short row rejection, got=%v", err)
	}
	if _, err := FromCells(make([]model.CellKind, model.GridCells-1)); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected cell count rejection, got=%v", err)
	}
}

func TestRenderMarksInvalidCellKinds(t *testing.T) {
	g := Filled(model.CellStructural)
	g.Cells[2][3] = model.CellKind(7)

	lines := strings.Split(Render(g), "\n")
	if got := lines[2]; got != "###?####" {
		t.Fatalf("unexpected row: got=%q want=%q", got, "###?####")
	}
	if _, err := Parse(Render(g)); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected unknown glyph rejection, got=%v", err)
	}
}

func TestComputeGenomeSignatureCountsComposition(t *testing.T) {
	g := Filled(model.CellStructural)
	g.Cells[0][0] = model.CellWheel
	g.Cells[1][1] = model.CellEmpty

	sig := ComputeGenomeSignature(g)
	if sig.Summary.Wheels != 1 || sig.Summary.Empty != 1 || sig.Summary.Structural != model.GridCells-2 {
		t.Fatalf("unexpected summary: %+v", sig.Summary)
	}
	if len(sig.Fingerprint) != 16 {
		t.Fatalf("unexpected fingerprint length: %q", sig.Fingerprint)
	}
}

func nextKind(kind model.CellKind) model.CellKind {
	return model.CellKinds[(int(kind)+1)%len(model.CellKinds)]
}
