package evo

import (
	"fmt"
	"math/rand"
)

// SlidingWindowCrossover pairs every overlapping neighbour (parents[i],
// parents[i+1]), producing 2*(len-1) candidates, then samples len(parents) of
// them uniformly without replacement. Parents never survive directly.
func SlidingWindowCrossover(rng *rand.Rand, op CrossoverOperator, parents []Individual) ([]Individual, error) {
	if len(parents)%2 != 0 {
		return nil, fmt.Errorf("%w: parent count %d is odd", ErrPrecondition, len(parents))
	}
	if len(parents) == 0 {
		return []Individual{}, nil
	}

	pool := make([]Individual, 0, 2*(len(parents)-1))
	for i := 0; i+1 < len(parents); i++ {
		first, second, err := op.Cross(rng, parents[i].Genome, parents[i+1].Genome)
		if err != nil {
			return nil, fmt.Errorf("%s crossover of pair %d: %w", op.Name(), i, err)
		}
		pool = append(pool, Individual{Genome: first}, Individual{Genome: second})
	}

	children := make([]Individual, 0, len(parents))
	for _, idx := range rng.Perm(len(pool))[:len(parents)] {
		children = append(children, pool[idx])
	}
	return children, nil
}
