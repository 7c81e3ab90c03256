package stats

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"carvolve/internal/model"
)

// WriteGenerationsCSV writes one row per generation with a header line.
func WriteGenerationsCSV(path string, stats []model.GenerationStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if stats == nil {
		stats = []model.GenerationStats{}
	}
	if err := gocsv.MarshalFile(stats, f); err != nil {
		return fmt.Errorf("writing generations: %w", err)
	}
	return nil
}

func ReadGenerationsCSV(path string) ([]model.GenerationStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var stats []model.GenerationStats
	if err := gocsv.UnmarshalFile(f, &stats); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return []model.GenerationStats{}, nil
		}
		return nil, fmt.Errorf("reading generations: %w", err)
	}
	return stats, nil
}
