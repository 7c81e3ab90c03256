package model

import "log/slog"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// CellKind is the role a single grid cell plays in the evaluator.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellStructural
	CellWheel
)

// CellKinds lists every cell kind in declaration order.
var CellKinds = [...]CellKind{CellEmpty, CellStructural, CellWheel}

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellStructural:
		return "structural"
	case CellWheel:
		return "wheel"
	default:
		return "unknown"
	}
}

func (k CellKind) Valid() bool {
	return k <= CellWheel
}

const (
	GridRows = 6
	GridCols = 8
	// GridCells is the number of cells in one genome.
	GridCells = GridRows * GridCols
)

// Genome is a fixed-shape grid of cell kinds. It is a comparable value type:
// two genomes are == iff every cell matches, so it can key a map directly.
type Genome struct {
	Cells [GridRows][GridCols]CellKind
}

// At returns the cell at (row, col).
func (g Genome) At(row, col int) CellKind {
	return g.Cells[row][col]
}

// Count returns how many cells hold kind.
func (g Genome) Count(kind CellKind) int {
	n := 0
	for r := range g.Cells {
		for c := range g.Cells[r] {
			if g.Cells[r][c] == kind {
				n++
			}
		}
	}
	return n
}

// GenerationStats is the per-generation fitness snapshot appended by the
// simulator before each step.
type GenerationStats struct {
	Generation     int     `json:"generation" csv:"generation"`
	AverageFitness float64 `json:"average_fitness" csv:"average_fitness"`
	MaxFitness     float64 `json:"max_fitness" csv:"max_fitness"`
	MinFitness     float64 `json:"min_fitness" csv:"min_fitness"`
	StdDevFitness  float64 `json:"stddev_fitness" csv:"stddev_fitness"`
	Diversity      int     `json:"diversity" csv:"diversity"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Float64("average_fitness", s.AverageFitness),
		slog.Float64("max_fitness", s.MaxFitness),
		slog.Float64("min_fitness", s.MinFitness),
		slog.Float64("stddev_fitness", s.StdDevFitness),
		slog.Int("diversity", s.Diversity),
	)
}

// RunRecord summarizes one evolution run for listing and reporting.
type RunRecord struct {
	VersionedRecord
	RunID             string `json:"run_id"`
	CreatedAtUTC      string `json:"created_at_utc"`
	Scape             string `json:"scape"`
	Seed              int64  `json:"seed"`
	PopulationSize    int    `json:"population_size"`
	TournamentK       int    `json:"tournament_k"`
	MutationAmount    int    `json:"mutation_amount"`
	Elitism           bool   `json:"elitism"`
	Generations       int    `json:"generations"`
	BestFitness       int64  `json:"best_fitness"`
	BestFingerprint   string `json:"best_fingerprint,omitempty"`
	DistinctEvaluated int    `json:"distinct_evaluated"`
}
