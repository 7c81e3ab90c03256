package main

import (
	"flag"
	"time"

	"carvolve/internal/config"
)

// runFlags holds the run command's flag values. Only flags set on the command
// line override the loaded config file.
type runFlags struct {
	configPath    *string
	runID         *string
	storeKind     *string
	dbPath        *string
	artifactsDir  *string
	scape         *string
	population    *int
	generations   *int
	tournamentK   *int
	mutation      *int
	seed          *int64
	crossover     *string
	elitism       *bool
	maxConcurrent *int
	timeout       *time.Duration
	logLevel      *string
	logFormat     *string
	metricsAddr   *string
}

func registerRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		configPath:    fs.String("config", "", "YAML config file layered over built-in defaults"),
		runID:         fs.String("run-id", "", "explicit run id (default: random uuid)"),
		storeKind:     fs.String("store", "", "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", "", "sqlite database path"),
		artifactsDir:  fs.String("artifacts", "", "run artifacts directory"),
		scape:         fs.String("scape", "", "evaluator name"),
		population:    fs.Int("pop", 0, "population size (even)"),
		generations:   fs.Int("gens", 0, "generations to evolve"),
		tournamentK:   fs.Int("k", 0, "tournament size"),
		mutation:      fs.Int("mutation", 0, "cells redrawn per child"),
		seed:          fs.Int64("seed", 0, "random seed"),
		crossover:     fs.String("crossover", "", "crossover operator: one_point|uniform"),
		elitism:       fs.Bool("elitism", false, "clone the best cached genome into every slot"),
		maxConcurrent: fs.Int("max-concurrent", 0, "slots evaluated per batch"),
		timeout:       fs.Duration("timeout", 0, "deadline for one evaluation batch"),
		logLevel:      fs.String("log-level", "", "debug|info|warn|error"),
		logFormat:     fs.String("log-format", "", "text|json"),
		metricsAddr:   fs.String("metrics-addr", "", "serve prometheus metrics on this address"),
	}
}

func (f *runFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return nil, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) {
		setFlags[fl.Name] = true
	})

	if setFlags["store"] {
		cfg.Storage.Kind = *f.storeKind
	}
	if setFlags["db-path"] {
		cfg.Storage.SQLitePath = *f.dbPath
	}
	if setFlags["artifacts"] {
		cfg.Storage.ArtifactsDir = *f.artifactsDir
	}
	if setFlags["scape"] {
		cfg.Evaluation.Scape = *f.scape
	}
	if setFlags["pop"] {
		cfg.Evolution.PopulationSize = *f.population
	}
	if setFlags["gens"] {
		cfg.Evolution.Generations = *f.generations
	}
	if setFlags["k"] {
		cfg.Evolution.TournamentK = *f.tournamentK
	}
	if setFlags["mutation"] {
		cfg.Evolution.MutationAmount = *f.mutation
	}
	if setFlags["seed"] {
		cfg.Evolution.Seed = *f.seed
	}
	if setFlags["crossover"] {
		cfg.Evolution.Crossover = *f.crossover
	}
	if setFlags["elitism"] {
		cfg.Evolution.Elitism = *f.elitism
	}
	if setFlags["max-concurrent"] {
		cfg.Evaluation.MaxConcurrent = *f.maxConcurrent
	}
	if setFlags["timeout"] {
		cfg.Evaluation.GenerationTimeout = *f.timeout
	}
	if setFlags["log-level"] {
		cfg.Logging.Level = *f.logLevel
	}
	if setFlags["log-format"] {
		cfg.Logging.Format = *f.logFormat
	}
	if setFlags["metrics-addr"] {
		cfg.Metrics.Addr = *f.metricsAddr
	}
	return cfg, nil
}
