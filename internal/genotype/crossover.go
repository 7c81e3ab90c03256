package genotype

import (
	"fmt"
	"math/rand"

	"carvolve/internal/model"
)

// OnePointCrossover swaps whole column ranges at cut. The first child takes
// columns [0, cut) from a and [cut, GridCols) from b; the second child is the
// complement. cut must satisfy 1 <= cut < GridCols.
func OnePointCrossover(a, b model.Genome, cut int) (model.Genome, model.Genome, error) {
	if cut < 1 || cut >= model.GridCols {
		return model.Genome{}, model.Genome{}, fmt.Errorf("%w: crossover cut %d outside [1, %d)", ErrPrecondition, cut, model.GridCols)
	}

	var first, second model.Genome
	for r := 0; r < model.GridRows; r++ {
		for c := 0; c < model.GridCols; c++ {
			if c < cut {
				first.Cells[r][c] = a.Cells[r][c]
				second.Cells[r][c] = b.Cells[r][c]
			} else {
				first.Cells[r][c] = b.Cells[r][c]
				second.Cells[r][c] = a.Cells[r][c]
			}
		}
	}
	return first, second, nil
}

// RandomCut draws a cut point uniformly from [1, GridCols).
func RandomCut(rng *rand.Rand) int {
	return 1 + rng.Intn(model.GridCols-1)
}

// UniformCrossover flips a fair coin per cell to decide which parent the first
// child inherits from; the second child always takes the other parent.
func UniformCrossover(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome) {
	var first, second model.Genome
	for r := 0; r < model.GridRows; r++ {
		for c := 0; c < model.GridCols; c++ {
			if rng.Intn(2) == 0 {
				first.Cells[r][c] = a.Cells[r][c]
				second.Cells[r][c] = b.Cells[r][c]
			} else {
				first.Cells[r][c] = b.Cells[r][c]
				second.Cells[r][c] = a.Cells[r][c]
			}
		}
	}
	return first, second
}
