package genotype

import (
	"math/rand"

	"carvolve/internal/model"
)

// CellChange records one mutated position. From and To may be equal: the
// replacement kind is drawn from the full enumeration.
type CellChange struct {
	Row  int
	Col  int
	From model.CellKind
	To   model.CellKind
}

// Mutate picks min(amount, GridCells) distinct positions uniformly without
// replacement and redraws each one uniformly from model.CellKinds.
func Mutate(rng *rand.Rand, g *model.Genome, amount int) []CellChange {
	if amount <= 0 {
		return nil
	}
	if amount > model.GridCells {
		amount = model.GridCells
	}

	picks := rng.Perm(model.GridCells)[:amount]
	changes := make([]CellChange, 0, amount)
	for _, idx := range picks {
		row, col := idx/model.GridCols, idx%model.GridCols
		next := model.CellKinds[rng.Intn(len(model.CellKinds))]
		changes = append(changes, CellChange{
			Row:  row,
			Col:  col,
			From: g.Cells[row][col],
			To:   next,
		})
		g.Cells[row][col] = next
	}
	return changes
}
