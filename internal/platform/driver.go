package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"carvolve/internal/evo"
	"carvolve/internal/genotype"
	"carvolve/internal/ledger"
	"carvolve/internal/model"
	"carvolve/internal/scape"
	"carvolve/internal/storage"
)

const (
	recordSchemaVersion = storage.CurrentSchemaVersion
	recordCodecVersion  = storage.CurrentCodecVersion
)

type DriverConfig struct {
	RunID          string
	Scape          scape.Scape
	Cache          *storage.FitnessCache
	Store          storage.Store
	PopulationSize int
	TournamentK    int
	MutationAmount int
	// MaxConcurrent caps how many slots are evaluated per batch.
	MaxConcurrent int
	// BatchTimeout bounds one batch; slots still running at the deadline
	// score 0 whether or not the scape honours its context.
	BatchTimeout time.Duration
	// Elitism replaces every stepped generation with clones of the best
	// genome ever cached.
	Elitism   bool
	Crossover evo.CrossoverOperator
	Seed      int64
	Initial   []model.Genome
	Metrics   *Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// RunResult summarizes a finished Run call.
type RunResult struct {
	Record     model.RunRecord
	Statistics []model.GenerationStats
	Best       model.Genome
}

// Driver owns the generation loop: it feeds ledger slots to the scape, caches
// the scores, and steps the simulator once every slot is done.
type Driver struct {
	cfg       DriverConfig
	sim       *evo.Simulator
	createdAt time.Time

	mu     sync.RWMutex
	ledger *ledger.Ledger
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent must be >= 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.Cache == nil {
		cfg.Cache = storage.NewFitnessCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	cfg.Logger = cfg.Logger.With("run_id", cfg.RunID)

	sim, err := evo.NewSimulator(evo.SimulatorConfig{
		PopulationSize: cfg.PopulationSize,
		Seed:           cfg.Seed,
		Crossover:      cfg.Crossover,
		Initial:        cfg.Initial,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.TournamentK < 2 || cfg.TournamentK > sim.Size() {
		return nil, fmt.Errorf("%w: tournament size %d outside [2, %d]", evo.ErrPrecondition, cfg.TournamentK, sim.Size())
	}
	if cfg.MutationAmount < 0 {
		return nil, fmt.Errorf("%w: negative mutation amount %d", evo.ErrPrecondition, cfg.MutationAmount)
	}

	if sim.Size() > ledger.MaxCollisionSlots {
		cfg.Logger.Warn("population exceeds collision groups, slots past the limit cannot be isolated by a physics evaluator",
			"population", sim.Size(),
			"collision_groups", ledger.MaxCollisionSlots,
		)
	}

	d := &Driver{
		cfg:       cfg,
		sim:       sim,
		createdAt: cfg.Now().UTC(),
		ledger:    ledger.New(sim.Genomes(), cfg.Logger),
	}
	cfg.Metrics.observeLedger(d.ledger)
	return d, nil
}

func (d *Driver) RunID() string {
	return d.cfg.RunID
}

func (d *Driver) Cache() *storage.FitnessCache {
	return d.cfg.Cache
}

// Ledger returns the current generation's ledger. It is replaced on every
// Evolve, so monitors should fetch it again each time they poll.
func (d *Driver) Ledger() *ledger.Ledger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ledger
}

func (d *Driver) Generation() int {
	return d.sim.Generation()
}

func (d *Driver) Statistics() []model.GenerationStats {
	return d.sim.Statistics()
}

// Tick advances the loop by one unit of work: a full ledger is evolved into
// the next generation, otherwise the next batch of pending slots is
// evaluated. It reports whether a generation boundary was crossed.
func (d *Driver) Tick(ctx context.Context) (bool, error) {
	l := d.Ledger()
	if l.AllDone() {
		if err := d.Evolve(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	batch := l.PopNextPending(d.cfg.MaxConcurrent)
	if len(batch) == 0 {
		return false, fmt.Errorf("ledger has no pending slots but is not done")
	}
	evalErr := d.evaluateBatch(ctx, l, batch)
	// Finalize even a cancelled batch so no slot is left Running and the
	// driver can resume with a fresh context.
	for _, dispatch := range batch {
		if err := d.finalize(l, dispatch.ID); err != nil {
			return false, err
		}
	}
	d.cfg.Metrics.observeLedger(l)
	if evalErr != nil {
		return false, evalErr
	}
	return false, nil
}

func (d *Driver) evaluateBatch(ctx context.Context, l *ledger.Ledger, batch []ledger.Dispatch) error {
	batchCtx := ctx
	if d.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, d.cfg.BatchTimeout)
		defer cancel()
	}

	p := pool.New().WithErrors().WithMaxGoroutines(len(batch))
	for _, dispatch := range batch {
		dispatch := dispatch // per-iteration copy; module targets go1.21 loop semantics
		p.Go(func() error {
			score, err := d.evaluate(batchCtx, dispatch)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.cfg.Logger.Warn("evaluation failed, scoring 0",
					"slot", int(dispatch.ID),
					"genome", genotype.Fingerprint(dispatch.Genome),
					"error", err,
				)
				if d.cfg.Metrics != nil {
					d.cfg.Metrics.EvaluatorErrors.Inc()
				}
				score = scape.Score{}
			}
			if d.cfg.Metrics != nil {
				d.cfg.Metrics.Evaluations.Inc()
			}
			return l.SetFitness(dispatch.ID, score.Fitness, score.FellApart)
		})
	}
	return p.Wait()
}

type evaluation struct {
	score scape.Score
	trace scape.Trace
	err   error
}

// evaluate returns as soon as either the scape answers or ctx ends. A scape
// that ignores ctx keeps running in the background and its result is dropped.
func (d *Driver) evaluate(ctx context.Context, dispatch ledger.Dispatch) (scape.Score, error) {
	done := make(chan evaluation, 1)
	go func() {
		score, trace, err := d.cfg.Scape.Evaluate(ctx, dispatch.Genome)
		done <- evaluation{score: score, trace: trace, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			d.cfg.Logger.Debug("slot evaluated",
				"slot", int(dispatch.ID),
				"fitness", res.score.Fitness,
				"fell_apart", res.score.FellApart,
				"trace", res.trace,
			)
		}
		return res.score, res.err
	case <-ctx.Done():
		return scape.Score{}, ctx.Err()
	}
}

func (d *Driver) finalize(l *ledger.Ledger, id ledger.SlotID) error {
	slot, repeated, err := l.Finalize(id)
	if err != nil {
		return err
	}
	if repeated {
		return nil
	}
	if !slot.Scored {
		d.cfg.Logger.Warn("slot finalized without fitness, scoring 0", "slot", int(id))
	}
	if d.cfg.Cache.Insert(slot.Genome, slot.Fitness) {
		d.cfg.Logger.Warn("genome fitness overwritten, genome may have been evaluated twice",
			"slot", int(id),
			"genome", genotype.Fingerprint(slot.Genome),
			"fitness", slot.Fitness,
		)
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.CacheOverwrites.Inc()
		}
	}
	return nil
}

// Evolve fills fitness from the cache, steps the simulator, applies elitism
// and rebuilds the ledger. It fails unless every slot is done.
func (d *Driver) Evolve(ctx context.Context) error {
	if !d.Ledger().AllDone() {
		return fmt.Errorf("%w: evolve before every slot is done", evo.ErrPrecondition)
	}
	if missing := d.sim.FillFitness(d.cfg.Cache); missing > 0 {
		return fmt.Errorf("%w: %d rows missing from fitness cache", evo.ErrMissingFitness, missing)
	}
	summary, err := d.sim.Step(d.cfg.TournamentK, d.cfg.MutationAmount)
	if err != nil {
		return err
	}

	if d.cfg.Elitism {
		best, fitness, ok := d.cfg.Cache.Best()
		if !ok {
			return fmt.Errorf("elitism enabled but fitness cache is empty")
		}
		clones := make([]model.Genome, d.sim.Size())
		for i := range clones {
			clones[i] = best
		}
		if err := d.sim.OverwritePopulation(clones); err != nil {
			return err
		}
		d.cfg.Logger.Info("population replaced with best genome",
			"fitness", fitness,
			"genome", genotype.Fingerprint(best),
		)
	}

	next := ledger.New(d.sim.Genomes(), d.cfg.Logger)
	d.mu.Lock()
	d.ledger = next
	d.mu.Unlock()

	d.cfg.Logger.Info("generation evolved",
		"stats", summary,
		"cache_genomes", d.cfg.Cache.Len(),
	)
	if m := d.cfg.Metrics; m != nil {
		m.Generations.Inc()
		m.AverageFitness.Set(summary.AverageFitness)
		m.MaxFitness.Set(summary.MaxFitness)
		m.CacheSize.Set(float64(d.cfg.Cache.Len()))
		m.observeLedger(next)
	}

	if d.cfg.Store != nil {
		if err := d.cfg.Store.SaveGenerationStats(ctx, d.cfg.RunID, d.sim.Statistics()); err != nil {
			return fmt.Errorf("save generation stats: %w", err)
		}
	}
	return nil
}

// Run ticks until generations more steps have completed or ctx ends, then
// saves the run record.
func (d *Driver) Run(ctx context.Context, generations int) (RunResult, error) {
	if generations < 0 {
		return RunResult{}, fmt.Errorf("generations must be >= 0, got %d", generations)
	}
	target := d.sim.Generation() + generations
	for d.sim.Generation() < target {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		if _, err := d.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return RunResult{}, err
			}
			return RunResult{}, fmt.Errorf("generation %d: %w", d.sim.Generation(), err)
		}
	}

	result := d.Result()
	if d.cfg.Store != nil {
		if err := d.cfg.Store.SaveRun(ctx, result.Record); err != nil {
			return RunResult{}, fmt.Errorf("save run: %w", err)
		}
	}
	return result, nil
}

// Result snapshots the run so far.
func (d *Driver) Result() RunResult {
	stats := d.sim.Statistics()
	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: recordSchemaVersion,
			CodecVersion:  recordCodecVersion,
		},
		RunID:             d.cfg.RunID,
		CreatedAtUTC:      d.createdAt.Format(time.RFC3339Nano),
		Scape:             d.cfg.Scape.Name(),
		Seed:              d.cfg.Seed,
		PopulationSize:    d.sim.Size(),
		TournamentK:       d.cfg.TournamentK,
		MutationAmount:    d.cfg.MutationAmount,
		Elitism:           d.cfg.Elitism,
		Generations:       len(stats),
		DistinctEvaluated: d.cfg.Cache.Len(),
	}
	result := RunResult{Record: record, Statistics: stats}
	if best, fitness, ok := d.cfg.Cache.Best(); ok {
		result.Best = best
		result.Record.BestFitness = fitness
		result.Record.BestFingerprint = genotype.Fingerprint(best)
	}
	return result
}
