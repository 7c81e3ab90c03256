package evo

import (
	"fmt"
	"math/rand"

	"carvolve/internal/genotype"
	"carvolve/internal/model"
)

// CrossoverOperator recombines two parents into two children.
type CrossoverOperator interface {
	Name() string
	Cross(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome, error)
}

// OnePointCrossover cuts at a column drawn uniformly from the valid range.
type OnePointCrossover struct{}

func (OnePointCrossover) Name() string {
	return "one_point"
}

func (OnePointCrossover) Cross(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome, error) {
	return genotype.OnePointCrossover(a, b, genotype.RandomCut(rng))
}

type UniformCrossover struct{}

func (UniformCrossover) Name() string {
	return "uniform"
}

func (UniformCrossover) Cross(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome, error) {
	first, second := genotype.UniformCrossover(rng, a, b)
	return first, second, nil
}

// CrossoverByName resolves the operator names accepted in configuration.
func CrossoverByName(name string) (CrossoverOperator, error) {
	switch name {
	case "", "one_point":
		return OnePointCrossover{}, nil
	case "uniform":
		return UniformCrossover{}, nil
	default:
		return nil, fmt.Errorf("unsupported crossover operator: %s", name)
	}
}
