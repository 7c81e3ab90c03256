package genotype

import (
	"errors"
	"fmt"
	"math/rand"

	"carvolve/internal/model"
)

// ErrPrecondition marks calls that violate an operator's documented input
// range. It signals a programming error in the caller.
var ErrPrecondition = errors.New("genotype precondition violated")

// RandomCellWeights is the relative likelihood of each cell kind in a random
// genome, indexed by model.CellKind. Mostly structural, occasionally wheeled.
var RandomCellWeights = [...]float64{
	model.CellEmpty:      0.4,
	model.CellStructural: 1.0,
	model.CellWheel:      0.3,
}

// Random builds a genome whose cells are drawn independently from
// RandomCellWeights.
func Random(rng *rand.Rand) model.Genome {
	total := 0.0
	for _, w := range RandomCellWeights {
		total += w
	}

	var g model.Genome
	for r := range g.Cells {
		for c := range g.Cells[r] {
			g.Cells[r][c] = weightedCell(rng.Float64() * total)
		}
	}
	return g
}

func weightedCell(pick float64) model.CellKind {
	acc := 0.0
	for i, w := range RandomCellWeights {
		acc += w
		if pick < acc {
			return model.CellKind(i)
		}
	}
	return model.CellKinds[len(model.CellKinds)-1]
}

// Filled returns a genome where every cell is kind.
func Filled(kind model.CellKind) model.Genome {
	var g model.Genome
	for r := range g.Cells {
		for c := range g.Cells[r] {
			g.Cells[r][c] = kind
		}
	}
	return g
}

// FromCells lays cells out row by row.
func FromCells(cells []model.CellKind) (model.Genome, error) {
	if len(cells) != model.GridCells {
		return model.Genome{}, fmt.Errorf("%w: got %d cells, want %d", ErrPrecondition, len(cells), model.GridCells)
	}
	var g model.Genome
	for i, kind := range cells {
		if !kind.Valid() {
			return model.Genome{}, fmt.Errorf("%w: invalid cell kind %d at index %d", ErrPrecondition, kind, i)
		}
		g.Cells[i/model.GridCols][i%model.GridCols] = kind
	}
	return g, nil
}

// Cells flattens g row by row.
func Cells(g model.Genome) []model.CellKind {
	out := make([]model.CellKind, 0, model.GridCells)
	for r := range g.Cells {
		out = append(out, g.Cells[r][:]...)
	}
	return out
}
