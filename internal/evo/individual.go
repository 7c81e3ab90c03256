package evo

import (
	"fmt"

	"carvolve/internal/model"
)

// Individual is one population row. Fitness is meaningful only when Scored is
// true; rows start unscored and are filled from the fitness cache.
type Individual struct {
	Genome  model.Genome
	Fitness int64
	Scored  bool
}

// FitnessLookup resolves cached fitness by genome content.
type FitnessLookup interface {
	Lookup(g model.Genome) (int64, bool)
}

func unscored(genomes []model.Genome) []Individual {
	out := make([]Individual, len(genomes))
	for i, g := range genomes {
		out[i] = Individual{Genome: g}
	}
	return out
}

func fitnessValues(population []Individual) ([]int64, error) {
	values := make([]int64, len(population))
	for i, ind := range population {
		if !ind.Scored {
			return nil, fmt.Errorf("%w: row %d", ErrMissingFitness, i)
		}
		values[i] = ind.Fitness
	}
	return values, nil
}
