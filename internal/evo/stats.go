package evo

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"carvolve/internal/model"
)

func summarizeGeneration(population []Individual, generation int) (model.GenerationStats, error) {
	values, err := fitnessValues(population)
	if err != nil {
		return model.GenerationStats{}, err
	}
	if len(values) == 0 {
		return model.GenerationStats{}, fmt.Errorf("%w: empty population", ErrPrecondition)
	}

	var sum int64
	minFitness, maxFitness := values[0], values[0]
	floats := make([]float64, len(values))
	distinct := make(map[model.Genome]struct{}, len(population))
	for i, v := range values {
		sum += v
		if v < minFitness {
			minFitness = v
		}
		if v > maxFitness {
			maxFitness = v
		}
		floats[i] = float64(v)
		distinct[population[i].Genome] = struct{}{}
	}
	_, std := stat.PopMeanStdDev(floats, nil)

	return model.GenerationStats{
		Generation:     generation,
		AverageFitness: float64(sum) / float64(len(values)),
		MaxFitness:     float64(maxFitness),
		MinFitness:     float64(minFitness),
		StdDevFitness:  std,
		Diversity:      len(distinct),
	}, nil
}
