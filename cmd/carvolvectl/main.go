package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carvolve/internal/genotype"
	"carvolve/internal/platform"
	"carvolve/internal/scape"
	"carvolve/internal/storage"
	api "carvolve/pkg/carvolve"
)

const exportsDir = "exports"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "random":
		return runRandom(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	flags := registerRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.load(fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	var metrics *platform.Metrics
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		metrics = platform.NewMetrics(reg)
		shutdown, err := serveMetrics(cfg.Metrics.Addr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	client, err := api.New(api.Options{
		StoreKind:    cfg.Storage.Kind,
		DBPath:       cfg.Storage.SQLitePath,
		ArtifactsDir: cfg.Storage.ArtifactsDir,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, api.RunRequest{Config: *cfg, RunID: *flags.runID})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(map[string]any{
			"run_id":        summary.RunID,
			"artifacts_dir": summary.ArtifactsDir,
			"record":        summary.Record,
			"summary":       summary.Summary,
			"generations":   summary.Statistics,
		})
	}
	fmt.Printf("run_id=%s scape=%s generations=%d best_fitness=%d best=%s artifacts=%s\n",
		summary.RunID,
		summary.Record.Scape,
		summary.Record.Generations,
		summary.Record.BestFitness,
		summary.Record.BestFingerprint,
		summary.ArtifactsDir,
	)
	fmt.Print(genotype.Render(summary.Best))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	artifactsDir := fs.String("artifacts", "runs", "run artifacts directory")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := api.New(api.Options{StoreKind: "memory", ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s scape=%s pop=%d gens=%d seed=%d elitism=%t best_fitness=%d\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Scape,
			item.PopulationSize,
			item.Generations,
			item.Seed,
			item.Elitism,
			item.BestFitness,
		)
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "carvolve.db", "sqlite database path")
	artifactsDir := fs.String("artifacts", "runs", "run artifacts directory")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "show only the last N generations (0 = all)")
	jsonOut := fs.Bool("json", false, "emit generations as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath, ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	id, history, err := client.GenerationStats(ctx, api.StatsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(map[string]any{"run_id": id, "generations": history})
	}
	fmt.Printf("run_id=%s generations=%d\n", id, len(history))
	for _, s := range history {
		fmt.Printf("gen=%d avg=%.2f max=%.0f min=%.0f std=%.2f diversity=%d\n",
			s.Generation, s.AverageFitness, s.MaxFitness, s.MinFitness, s.StdDevFitness, s.Diversity)
	}
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "carvolve.db", "sqlite database path")
	artifactsDir := fs.String("artifacts", "runs", "run artifacts directory")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	out := fs.String("out", "", "output image path (default: <run dir>/fitness.png)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath, ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	path, err := client.Plot(ctx, api.PlotRequest{RunID: *runID, Latest: *latest, OutPath: *out})
	if err != nil {
		return err
	}
	fmt.Printf("plot=%s\n", path)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	artifactsDir := fs.String("artifacts", "runs", "run artifacts directory")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	out := fs.String("out", exportsDir, "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory", ArtifactsDir: *artifactsDir, ExportsDir: *out})
	if err != nil {
		return err
	}
	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runRandom(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("random", flag.ContinueOnError)
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	count := fs.Int("count", 1, "number of genomes")
	scapeName := fs.String("scape", "", "score each genome with this scape: "+strings.Join(scape.Names(), "|"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return errors.New("count must be > 0")
	}

	var sc scape.Scape
	if *scapeName != "" {
		var err error
		if sc, err = scape.ByName(*scapeName); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(*seed))
	for i := 0; i < *count; i++ {
		g := genotype.Random(rng)
		sig := genotype.ComputeGenomeSignature(g)
		line := fmt.Sprintf("genome=%s structural=%d wheels=%d", sig.Fingerprint, sig.Summary.Structural, sig.Summary.Wheels)
		if sc != nil {
			score, _, err := sc.Evaluate(ctx, g)
			if err != nil {
				return err
			}
			line += fmt.Sprintf(" fitness=%d fell_apart=%t", score.Fitness, score.FellApart)
		}
		fmt.Println(line)
		fmt.Print(genotype.Render(g))
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: carvolvectl <run|runs|stats|plot|export|random> [flags]", msg)
}
