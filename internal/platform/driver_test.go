package platform

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"carvolve/internal/evo"
	"carvolve/internal/genotype"
	"carvolve/internal/ledger"
	"carvolve/internal/model"
	"carvolve/internal/scape"
	"carvolve/internal/storage"
)

func structuralCount() scape.Scape {
	return scape.Func{ID: "structural_count", Fn: func(_ context.Context, g model.Genome) (scape.Score, error) {
		return scape.Score{Fitness: int64(10 * g.Count(model.CellStructural))}, nil
	}}
}

func seededGenomes() []model.Genome {
	out := make([]model.Genome, 4)
	for i := range out {
		g := genotype.Filled(model.CellEmpty)
		for c := 0; c <= i; c++ {
			g.Cells[0][c] = model.CellStructural
		}
		out[i] = g
	}
	return out
}

func newTestDriver(t *testing.T, cfg DriverConfig) *Driver {
	t.Helper()
	if cfg.Scape == nil {
		cfg.Scape = structuralCount()
	}
	if cfg.Initial == nil {
		cfg.Initial = seededGenomes()
	}
	if cfg.TournamentK == 0 {
		cfg.TournamentK = 2
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 3
	}
	cfg.MutationAmount = 1
	d, err := NewDriver(cfg)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return d
}

func TestDriverTickEvaluatesBatchesThenEvolves(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	d := newTestDriver(t, DriverConfig{Seed: 1, Metrics: metrics})
	first := d.Ledger()

	evolved, err := d.Tick(context.Background())
	if err != nil || evolved {
		t.Fatalf("first tick: evolved=%v err=%v", evolved, err)
	}
	if c := first.Counts(); c[ledger.StatusDone] != 3 || c[ledger.StatusPending] != 1 {
		t.Fatalf("unexpected counts after first batch: %v", c)
	}
	if evolved, err = d.Tick(context.Background()); err != nil || evolved {
		t.Fatalf("second tick: evolved=%v err=%v", evolved, err)
	}
	if !first.AllDone() {
		t.Fatal("expected first ledger done")
	}
	if d.Cache().Len() != 4 {
		t.Fatalf("expected 4 cached genomes, got=%d", d.Cache().Len())
	}

	if evolved, err = d.Tick(context.Background()); err != nil || !evolved {
		t.Fatalf("third tick: evolved=%v err=%v", evolved, err)
	}
	stats := d.Statistics()
	if len(stats) != 1 || stats[0].AverageFitness != 25 || stats[0].MaxFitness != 40 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	next := d.Ledger()
	if next == first {
		t.Fatal("expected a fresh ledger after evolving")
	}
	if c := next.Counts(); c[ledger.StatusPending] != 4 {
		t.Fatalf("expected fresh ledger all pending, got=%v", c)
	}
	if got := testutil.ToFloat64(metrics.Evaluations); got != 4 {
		t.Fatalf("expected 4 evaluations, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.Generations); got != 1 {
		t.Fatalf("expected 1 generation, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.Slots.WithLabelValues("pending")); got != 4 {
		t.Fatalf("expected 4 pending slots gauge, got=%v", got)
	}
}

func TestDriverElitismClonesBestGenome(t *testing.T) {
	d := newTestDriver(t, DriverConfig{Seed: 2, Elitism: true, MaxConcurrent: 4})
	if _, err := d.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	best := seededGenomes()[3]
	for i, slot := range d.Ledger().Snapshot() {
		if slot.Genome != best {
			t.Fatalf("slot %d is not a clone of the best genome", i)
		}
	}
}

func TestDriverReportsCacheOverwrites(t *testing.T) {
	metrics := NewMetrics(nil)
	g := genotype.Filled(model.CellStructural)
	d := newTestDriver(t, DriverConfig{
		Initial:       []model.Genome{g, g, g, g},
		MaxConcurrent: 4,
		Metrics:       metrics,
	})
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := testutil.ToFloat64(metrics.CacheOverwrites); got != 3 {
		t.Fatalf("expected 3 overwrite warnings, got=%v", got)
	}
	if f, ok := d.Cache().Lookup(g); !ok || f != 480 {
		t.Fatalf("unexpected cached fitness: %d ok=%v", f, ok)
	}
}

func TestDriverScoresFailedEvaluationsZero(t *testing.T) {
	metrics := NewMetrics(nil)
	failing := scape.Func{ID: "failing", Fn: func(context.Context, model.Genome) (scape.Score, error) {
		return scape.Score{Fitness: 99}, errors.New("simulation crashed")
	}}
	d := newTestDriver(t, DriverConfig{Scape: failing, MaxConcurrent: 4, Metrics: metrics})
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	for _, g := range seededGenomes() {
		if f, ok := d.Cache().Lookup(g); !ok || f != 0 {
			t.Fatalf("expected failed evaluation cached as 0, got=%d ok=%v", f, ok)
		}
	}
	if got := testutil.ToFloat64(metrics.EvaluatorErrors); got != 4 {
		t.Fatalf("expected 4 evaluator errors, got=%v", got)
	}
}

func TestDriverBatchTimeoutScoresZero(t *testing.T) {
	var calls atomic.Int32
	stuck := scape.Func{ID: "stuck", Fn: func(ctx context.Context, _ model.Genome) (scape.Score, error) {
		calls.Add(1)
		<-ctx.Done()
		return scape.Score{}, ctx.Err()
	}}
	d := newTestDriver(t, DriverConfig{Scape: stuck, MaxConcurrent: 4, BatchTimeout: 20 * time.Millisecond})
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if calls.Load() != 4 || !d.Ledger().AllDone() {
		t.Fatalf("expected all 4 slots finalized after timeout, calls=%d", calls.Load())
	}
}

func TestDriverBatchTimeoutOutrunsScapeIgnoringContext(t *testing.T) {
	slow := scape.Func{ID: "slow", Fn: func(context.Context, model.Genome) (scape.Score, error) {
		time.Sleep(500 * time.Millisecond)
		return scape.Score{Fitness: 5}, nil
	}}
	d := newTestDriver(t, DriverConfig{Scape: slow, MaxConcurrent: 4, BatchTimeout: 10 * time.Millisecond})

	start := time.Now()
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("tick waited for the scape: elapsed=%v", elapsed)
	}
	if !d.Ledger().AllDone() {
		t.Fatal("expected all slots finalized at the deadline")
	}
	for _, g := range seededGenomes() {
		if f, ok := d.Cache().Lookup(g); !ok || f != 0 {
			t.Fatalf("expected late evaluation cached as 0, got=%d ok=%v", f, ok)
		}
	}
}

func TestDriverResumesAfterCancelledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	cancelling := scape.Func{ID: "cancelling", Fn: func(ctx context.Context, g model.Genome) (scape.Score, error) {
		switch n := calls.Add(1); {
		case n == 1:
			cancel()
			return scape.Score{Fitness: 7}, nil
		case n <= 4:
			<-ctx.Done()
			return scape.Score{}, ctx.Err()
		default:
			return scape.Score{Fitness: int64(10 * g.Count(model.CellStructural))}, nil
		}
	}}
	d := newTestDriver(t, DriverConfig{Scape: cancelling, MaxConcurrent: 4})
	first := d.Ledger()

	if _, err := d.Tick(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got=%v", err)
	}
	if c := first.Counts(); c[ledger.StatusRunning] != 0 || c[ledger.StatusDone] != 4 {
		t.Fatalf("cancelled batch left slots behind: %v", c)
	}

	result, err := d.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("resume run: %v", err)
	}
	if result.Record.Generations != 1 || d.Generation() != 1 {
		t.Fatalf("expected one generation after resume, got=%d", result.Record.Generations)
	}
}

func TestDriverLogsEvaluationTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := newTestDriver(t, DriverConfig{Scape: scape.FlatTrack(), MaxConcurrent: 4, Logger: logger})

	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "msg=\"slot evaluated\"") != 4 {
		t.Fatalf("expected one trace record per slot, got=%q", out)
	}
	if !strings.Contains(out, "trace=map[") || !strings.Contains(out, "travelled:") {
		t.Fatalf("expected evaluator trace in log, got=%q", out)
	}
}

func TestNewDriverWarnsPastCollisionGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	if _, err := NewDriver(DriverConfig{Scape: structuralCount(), PopulationSize: ledger.MaxCollisionSlots, TournamentK: 2, MaxConcurrent: 1, Logger: logger}); err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if strings.Contains(buf.String(), "collision groups") {
		t.Fatalf("unexpected warning at the limit: %q", buf.String())
	}

	if _, err := NewDriver(DriverConfig{Scape: structuralCount(), PopulationSize: ledger.MaxCollisionSlots + 2, TournamentK: 2, MaxConcurrent: 1, Logger: logger}); err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "collision groups") {
		t.Fatalf("expected collision group warning, got=%q", out)
	}
}

func TestDriverRunPersistsToStore(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := newTestDriver(t, DriverConfig{
		RunID: "run-1",
		Store: store,
		Seed:  3,
		Now:   func() time.Time { return now },
	})

	result, err := d.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Record.Generations != 3 || len(result.Statistics) != 3 {
		t.Fatalf("unexpected result: %+v", result.Record)
	}
	if result.Record.BestFitness < 40 {
		t.Fatalf("expected best fitness at least 40, got=%d", result.Record.BestFitness)
	}
	if result.Record.BestFingerprint != genotype.Fingerprint(result.Best) {
		t.Fatal("expected fingerprint of best genome")
	}

	run, ok, err := store.GetRun(context.Background(), "run-1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if run.CreatedAtUTC != "2024-05-01T12:00:00Z" || run.Scape != "structural_count" {
		t.Fatalf("unexpected stored run: %+v", run)
	}
	stats, ok, err := store.GetGenerationStats(context.Background(), "run-1")
	if err != nil || !ok || len(stats) != 3 {
		t.Fatalf("get stats: len=%d ok=%v err=%v", len(stats), ok, err)
	}
}

func TestDriverRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newTestDriver(t, DriverConfig{})
	if _, err := d.Run(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got=%v", err)
	}
}

func TestEvolveBeforeDoneFails(t *testing.T) {
	d := newTestDriver(t, DriverConfig{})
	if err := d.Evolve(context.Background()); !errors.Is(err, evo.ErrPrecondition) {
		t.Fatalf("expected precondition error, got=%v", err)
	}
}

func TestNewDriverValidation(t *testing.T) {
	cases := []DriverConfig{
		{Initial: seededGenomes(), TournamentK: 2, MaxConcurrent: 1},
		{Scape: structuralCount(), Initial: seededGenomes(), TournamentK: 5, MaxConcurrent: 1},
		{Scape: structuralCount(), Initial: seededGenomes(), TournamentK: 2},
		{Scape: structuralCount(), Initial: seededGenomes()[:3], TournamentK: 2, MaxConcurrent: 1},
	}
	for i, cfg := range cases {
		if _, err := NewDriver(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}

	d, err := NewDriver(DriverConfig{Scape: structuralCount(), PopulationSize: 6, TournamentK: 3, MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if d.RunID() == "" || d.Ledger().Len() != 6 {
		t.Fatalf("expected generated run id and 6 slots, got=%q %d", d.RunID(), d.Ledger().Len())
	}
}
