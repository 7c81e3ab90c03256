package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"carvolve/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	runFile         = "run.json"
	generationsFile = "generations.csv"
	plotFile        = "fitness.png"
	// ConfigFile is written by the config package; it is exported with the
	// rest of the run when present.
	ConfigFile = "config.yaml"
)

// RunArtifacts is everything persisted for one run directory.
type RunArtifacts struct {
	Record     model.RunRecord         `json:"record"`
	Summary    RunSummary              `json:"summary"`
	BestGenome string                  `json:"best_genome,omitempty"`
	Statistics []model.GenerationStats `json:"-"`
}

type RunIndexEntry struct {
	RunID          string `json:"run_id"`
	Scape          string `json:"scape"`
	PopulationSize int    `json:"population_size"`
	Generations    int    `json:"generations"`
	Seed           int64  `json:"seed"`
	Elitism        bool   `json:"elitism"`
	BestFitness    int64  `json:"best_fitness"`
	CreatedAtUTC   string `json:"created_at_utc"`
}

// IndexEntry derives the run index line for a record.
func IndexEntry(run model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:          run.RunID,
		Scape:          run.Scape,
		PopulationSize: run.PopulationSize,
		Generations:    run.Generations,
		Seed:           run.Seed,
		Elitism:        run.Elitism,
		BestFitness:    run.BestFitness,
		CreatedAtUTC:   run.CreatedAtUTC,
	}
}

// RunDir is where a run's artifacts live under baseDir.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

// WriteRunArtifacts writes run.json, generations.csv and fitness.png. The
// plot is skipped for runs without statistics.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	runID := strings.TrimSpace(artifacts.Record.RunID)
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := RunDir(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts); err != nil {
		return "", err
	}
	if err := WriteGenerationsCSV(filepath.Join(runDir, generationsFile), artifacts.Statistics); err != nil {
		return "", err
	}
	if len(artifacts.Statistics) > 0 {
		title := fmt.Sprintf("%s (%s)", artifacts.Record.Scape, runID)
		if err := WriteFitnessPlot(filepath.Join(runDir, plotFile), title, artifacts.Statistics); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// ReadRunArtifacts loads run.json and generations.csv for runID.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	runDir := RunDir(baseDir, runID)
	data, err := os.ReadFile(filepath.Join(runDir, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunArtifacts{}, false, nil
		}
		return RunArtifacts{}, false, err
	}

	var artifacts RunArtifacts
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return RunArtifacts{}, false, err
	}
	stats, err := ReadGenerationsCSV(filepath.Join(runDir, generationsFile))
	if err != nil {
		return RunArtifacts{}, false, err
	}
	artifacts.Statistics = stats
	return artifacts, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's known files into outDir/runID.
// run.json is required; the rest are copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := RunDir(baseDir, runID)
	if _, err := os.Stat(filepath.Join(src, runFile)); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	if err := copyFile(filepath.Join(src, runFile), filepath.Join(dst, runFile)); err != nil {
		return "", err
	}
	for _, file := range []string{generationsFile, plotFile, ConfigFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
