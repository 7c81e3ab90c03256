package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"carvolve/internal/model"
)

// Summary describes a series of fitness values.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize uses the population standard deviation. An empty series gives a
// zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  len(values),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

// RunSummary condenses the per-generation log of one run.
type RunSummary struct {
	Generations    int     `json:"generations"`
	InitialMax     float64 `json:"initial_max"`
	FinalMax       float64 `json:"final_max"`
	Improvement    float64 `json:"improvement"`
	MaxFitness     Summary `json:"max_fitness"`
	AverageFitness Summary `json:"average_fitness"`
	// BestGeneration is the first generation that reached MaxFitness.Max.
	BestGeneration int `json:"best_generation"`
}

func SummarizeRun(history []model.GenerationStats) RunSummary {
	if len(history) == 0 {
		return RunSummary{}
	}
	maxes := make([]float64, len(history))
	avgs := make([]float64, len(history))
	for i, s := range history {
		maxes[i] = s.MaxFitness
		avgs[i] = s.AverageFitness
	}
	first, last := history[0], history[len(history)-1]
	return RunSummary{
		Generations:    len(history),
		InitialMax:     first.MaxFitness,
		FinalMax:       last.MaxFitness,
		Improvement:    last.MaxFitness - first.MaxFitness,
		MaxFitness:     Summarize(maxes),
		AverageFitness: Summarize(avgs),
		BestGeneration: history[floats.MaxIdx(maxes)].Generation,
	}
}
