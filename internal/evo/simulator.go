package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"carvolve/internal/genotype"
	"carvolve/internal/model"
)

var (
	// ErrPrecondition marks programming errors: callers should abort rather
	// than retry.
	ErrPrecondition = errors.New("evolution precondition violated")
	// ErrMissingFitness is returned when fitness arithmetic or selection
	// meets a row that has not been filled from the cache.
	ErrMissingFitness = fmt.Errorf("%w: missing fitness", ErrPrecondition)
)

type SimulatorConfig struct {
	PopulationSize int
	Seed           int64
	// Crossover defaults to OnePointCrossover.
	Crossover CrossoverOperator
	// Initial seeds the first generation; when empty, genomes are drawn with
	// genotype.Random.
	Initial []model.Genome
	Logger  *slog.Logger
}

// Simulator holds the current population and the append-only statistics log.
// It is not safe for concurrent use.
type Simulator struct {
	rng        *rand.Rand
	crossover  CrossoverOperator
	logger     *slog.Logger
	population []Individual
	history    []model.GenerationStats
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	n := cfg.PopulationSize
	if len(cfg.Initial) > 0 {
		if n != 0 && n != len(cfg.Initial) {
			return nil, fmt.Errorf("%w: population size %d does not match %d initial genomes", ErrPrecondition, n, len(cfg.Initial))
		}
		n = len(cfg.Initial)
	}
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("%w: population size must be even and >= 2, got %d", ErrPrecondition, n)
	}

	op := cfg.Crossover
	if op == nil {
		op = OnePointCrossover{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	genomes := make([]model.Genome, n)
	if len(cfg.Initial) > 0 {
		copy(genomes, cfg.Initial)
	} else {
		for i := range genomes {
			genomes[i] = genotype.Random(rng)
		}
	}

	return &Simulator{
		rng:        rng,
		crossover:  op,
		logger:     logger,
		population: unscored(genomes),
	}, nil
}

func (s *Simulator) Size() int {
	return len(s.population)
}

// Generation is the number of completed steps.
func (s *Simulator) Generation() int {
	return len(s.history)
}

// Population returns a copy of the current rows.
func (s *Simulator) Population() []Individual {
	return append([]Individual(nil), s.population...)
}

func (s *Simulator) Genomes() []model.Genome {
	out := make([]model.Genome, len(s.population))
	for i, ind := range s.population {
		out[i] = ind.Genome
	}
	return out
}

// Statistics returns the per-generation log in generation order.
func (s *Simulator) Statistics() []model.GenerationStats {
	return append([]model.GenerationStats(nil), s.history...)
}

// FillFitness sets each row's fitness from lookup. Rows whose genome has not
// been evaluated become unscored and stay that way until the next fill.
// It returns the number of unscored rows.
func (s *Simulator) FillFitness(lookup FitnessLookup) int {
	missing := 0
	for i := range s.population {
		f, ok := lookup.Lookup(s.population[i].Genome)
		s.population[i].Fitness = f
		s.population[i].Scored = ok
		if !ok {
			s.population[i].Fitness = 0
			missing++
		}
	}
	return missing
}

// SetFitness scores a single row directly.
func (s *Simulator) SetFitness(row int, fitness int64) error {
	if row < 0 || row >= len(s.population) {
		return fmt.Errorf("%w: row %d out of range", ErrPrecondition, row)
	}
	s.population[row].Fitness = fitness
	s.population[row].Scored = true
	return nil
}

func (s *Simulator) AverageFitness() (float64, error) {
	values, err := fitnessValues(s.population)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values)), nil
}

func (s *Simulator) MaxFitness() (int64, error) {
	values, err := fitnessValues(s.population)
	if err != nil {
		return 0, err
	}
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best, nil
}

// TournamentSelect runs n tournaments of size k over the current population.
func (s *Simulator) TournamentSelect(k, n int) ([]Individual, error) {
	return TournamentSelector{Size: k}.Select(s.rng, s.population, n)
}

// Crossover applies the sliding-window policy with the configured operator.
func (s *Simulator) Crossover(parents []Individual) ([]Individual, error) {
	return SlidingWindowCrossover(s.rng, s.crossover, parents)
}

// MutateAll mutates every child in place and clears its fitness.
func (s *Simulator) MutateAll(children []Individual, amount int) {
	for i := range children {
		genotype.Mutate(s.rng, &children[i].Genome, amount)
		children[i].Fitness = 0
		children[i].Scored = false
	}
}

// Step performs one generation transition. Statistics are computed from the
// current population before it is replaced. On error the simulator is left
// unchanged.
func (s *Simulator) Step(tournamentK, mutationAmount int) (model.GenerationStats, error) {
	if mutationAmount < 0 {
		return model.GenerationStats{}, fmt.Errorf("%w: negative mutation amount %d", ErrPrecondition, mutationAmount)
	}
	summary, err := summarizeGeneration(s.population, len(s.history))
	if err != nil {
		return model.GenerationStats{}, err
	}
	parents, err := s.TournamentSelect(tournamentK, len(s.population))
	if err != nil {
		return model.GenerationStats{}, fmt.Errorf("select parents: %w", err)
	}
	children, err := s.Crossover(parents)
	if err != nil {
		return model.GenerationStats{}, fmt.Errorf("crossover: %w", err)
	}
	s.MutateAll(children, mutationAmount)

	s.history = append(s.history, summary)
	s.population = children
	s.logger.Debug("generation stepped", "stats", summary)
	return summary, nil
}

// OverwritePopulation replaces every row with the given genomes, unscored.
// The population size may not change.
func (s *Simulator) OverwritePopulation(genomes []model.Genome) error {
	if len(genomes) != len(s.population) {
		return fmt.Errorf("%w: overwrite with %d genomes, population is %d", ErrPrecondition, len(genomes), len(s.population))
	}
	s.population = unscored(genomes)
	return nil
}
