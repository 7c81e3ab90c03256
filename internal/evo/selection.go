package evo

import (
	"fmt"
	"math/rand"
)

// TournamentSelector holds independent tournaments of Size distinct rows drawn
// uniformly without replacement; each tournament keeps its fittest row.
// Ties go to the row drawn first. Winners may repeat across tournaments.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

// Select runs n tournaments over population. Every row must be scored and
// Size must lie in [2, len(population)].
func (s TournamentSelector) Select(rng *rand.Rand, population []Individual, n int) ([]Individual, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if s.Size < 2 || s.Size > len(population) {
		return nil, fmt.Errorf("%w: tournament size %d outside [2, %d]", ErrPrecondition, s.Size, len(population))
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative tournament count %d", ErrPrecondition, n)
	}
	if _, err := fitnessValues(population); err != nil {
		return nil, err
	}

	winners := make([]Individual, 0, n)
	for t := 0; t < n; t++ {
		draw := rng.Perm(len(population))[:s.Size]
		best := population[draw[0]]
		for _, idx := range draw[1:] {
			if population[idx].Fitness > best.Fitness {
				best = population[idx]
			}
		}
		winners = append(winners, best)
	}
	return winners, nil
}
