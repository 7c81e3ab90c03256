package carvolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"carvolve/internal/config"
	"carvolve/internal/evo"
	"carvolve/internal/genotype"
	"carvolve/internal/model"
	"carvolve/internal/platform"
	"carvolve/internal/scape"
	"carvolve/internal/stats"
	"carvolve/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "carvolve.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Metrics, when set, is shared by every run of the client.
	Metrics *platform.Metrics
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *platform.Metrics

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Config config.Config
	// RunID defaults to a random UUID.
	RunID string
	// Scape overrides Config.Evaluation.Scape.
	Scape scape.Scape
	// Initial seeds the first generation instead of random genomes.
	Initial []model.Genome
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Record       model.RunRecord
	Statistics   []model.GenerationStats
	Summary      stats.RunSummary
	Best         model.Genome
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Scape          string
	Seed           int64
	PopulationSize int
	Generations    int
	Elitism        bool
	BestFitness    int64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type StatsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type PlotRequest struct {
	RunID   string
	Latest  bool
	OutPath string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		metrics:      opts.Metrics,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run evolves one population for Config.Evolution.Generations generations and
// writes the run's artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	sc := req.Scape
	if sc == nil {
		var err error
		if sc, err = scape.ByName(cfg.Evaluation.Scape); err != nil {
			return RunSummary{}, err
		}
	}
	crossover, err := evo.CrossoverByName(cfg.Evolution.Crossover)
	if err != nil {
		return RunSummary{}, err
	}

	driver, err := platform.NewDriver(platform.DriverConfig{
		RunID:          req.RunID,
		Scape:          sc,
		Store:          c.store,
		PopulationSize: cfg.Evolution.PopulationSize,
		TournamentK:    cfg.Evolution.TournamentK,
		MutationAmount: cfg.Evolution.MutationAmount,
		MaxConcurrent:  cfg.Evaluation.MaxConcurrent,
		BatchTimeout:   cfg.Evaluation.GenerationTimeout,
		Elitism:        cfg.Evolution.Elitism,
		Crossover:      crossover,
		Seed:           cfg.Evolution.Seed,
		Initial:        req.Initial,
		Metrics:        c.metrics,
		Logger:         c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	c.logger.Info("run started",
		"run_id", driver.RunID(),
		"scape", sc.Name(),
		"population", cfg.Evolution.PopulationSize,
		"generations", cfg.Evolution.Generations,
	)
	result, err := driver.Run(ctx, cfg.Evolution.Generations)
	if err != nil {
		return RunSummary{}, err
	}

	summary := stats.SummarizeRun(result.Statistics)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Record:     result.Record,
		Summary:    summary,
		BestGenome: genotype.Render(result.Best),
		Statistics: result.Statistics,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := cfg.WriteYAML(filepath.Join(runDir, stats.ConfigFile)); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntry(result.Record)); err != nil {
		return RunSummary{}, err
	}

	c.logger.Info("run finished",
		"run_id", result.Record.RunID,
		"best_fitness", result.Record.BestFitness,
		"distinct_genomes", result.Record.DistinctEvaluated,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return RunSummary{
		RunID:        result.Record.RunID,
		ArtifactsDir: filepath.Clean(runDir),
		Record:       result.Record,
		Statistics:   result.Statistics,
		Summary:      summary,
		Best:         result.Best,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Scape:          e.Scape,
			Seed:           e.Seed,
			PopulationSize: e.PopulationSize,
			Generations:    e.Generations,
			Elitism:        e.Elitism,
			BestFitness:    e.BestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// GenerationStats returns a run's per-generation log, newest last. The store
// is consulted first and the run directory's CSV second, so runs recorded by
// another process remain readable. Limit keeps only the last entries.
func (c *Client) GenerationStats(ctx context.Context, req StatsRequest) (string, []model.GenerationStats, error) {
	if req.Limit < 0 {
		return "", nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return "", nil, err
	}
	if err := c.store.Init(ctx); err != nil {
		return "", nil, err
	}

	history, ok, err := c.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		artifacts, found, err := stats.ReadRunArtifacts(c.artifactsDir, runID)
		if err != nil {
			return "", nil, err
		}
		if !found {
			return "", nil, fmt.Errorf("run not found: %s", runID)
		}
		history = artifacts.Statistics
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return runID, history, nil
}

// Plot renders a run's fitness curves to OutPath, or to the run directory's
// fitness.png when OutPath is empty.
func (c *Client) Plot(ctx context.Context, req PlotRequest) (string, error) {
	runID, history, err := c.GenerationStats(ctx, StatsRequest{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return "", err
	}
	out := req.OutPath
	if out == "" {
		out = filepath.Join(stats.RunDir(c.artifactsDir, runID), "fitness.png")
	}
	if err := stats.WriteFitnessPlot(out, runID, history); err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
