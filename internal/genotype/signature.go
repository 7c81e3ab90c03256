package genotype

import (
	"crypto/sha1"
	"encoding/hex"

	"carvolve/internal/model"
)

type CompositionSummary struct {
	Empty      int `json:"empty"`
	Structural int `json:"structural"`
	Wheels     int `json:"wheels"`
}

type GenomeSignature struct {
	Fingerprint string             `json:"fingerprint"`
	Summary     CompositionSummary `json:"summary"`
}

// ComputeGenomeSignature derives a content fingerprint and composition summary.
// Fingerprints are for logs and records only; maps key on model.Genome itself.
func ComputeGenomeSignature(g model.Genome) GenomeSignature {
	return GenomeSignature{
		Fingerprint: Fingerprint(g),
		Summary: CompositionSummary{
			Empty:      g.Count(model.CellEmpty),
			Structural: g.Count(model.CellStructural),
			Wheels:     g.Count(model.CellWheel),
		},
	}
}

func Fingerprint(g model.Genome) string {
	raw := make([]byte, 0, model.GridCells)
	for _, kind := range Cells(g) {
		raw = append(raw, byte(kind))
	}
	digest := sha1.Sum(raw)
	return hex.EncodeToString(digest[:8])
}
