package scape

import "math"

const (
	// MaxSpread is how far apart the outermost cells may end up before the
	// genome counts as fallen apart.
	MaxSpread = 1000
	// FellApartMultiplier scales the fitness of a genome that fell apart.
	FellApartMultiplier = 0.1
)

// ScoreDisplacement scores final cell x positions. Each position is rounded
// to a whole unit, fitness is their mean, and the mean is scaled by
// FellApartMultiplier when max-min exceeds MaxSpread. No positions score 0.
func ScoreDisplacement(xs []float64) Score {
	if len(xs) == 0 {
		return Score{}
	}

	var sum int64
	minX, maxX := int64(math.MaxInt64), int64(math.MinInt64)
	for _, x := range xs {
		r := int64(math.Round(x))
		sum += r
		if r < minX {
			minX = r
		}
		if r > maxX {
			maxX = r
		}
	}

	fitness := float64(sum) / float64(len(xs))
	fellApart := maxX-minX > MaxSpread
	if fellApart {
		fitness *= FellApartMultiplier
	}
	return Score{Fitness: int64(math.Round(fitness)), FellApart: fellApart}
}
