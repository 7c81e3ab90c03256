package scape

import (
	"context"
	"math"

	"carvolve/internal/model"
)

const (
	FlatTrackName = "flat_track"
	HillTrackName = "hill_track"
)

// Track is a deterministic stand-in for the physics world. Cells are glued
// into rigid components: structural cells join structural neighbours, and a
// structural cell next to a wheel forms a motor. Wheels never join wheels.
// Each component rolls forward by its motor drive; components without a
// grounded motor stay where they spawned, which is how a genome falls apart.
type Track struct {
	ID string
	// CellSize is the spawn distance between adjacent columns.
	CellSize float64
	// DrivePerMotor is the distance one grounded motor moves one cell of a
	// full-width component.
	DrivePerMotor float64
	// Length caps how far any component can travel.
	Length float64
	// Slope in [0,1) drains drive in proportion to component mass.
	Slope float64
}

func FlatTrack() Track {
	return Track{ID: FlatTrackName, CellSize: 40, DrivePerMotor: 30000, Length: 15000}
}

func HillTrack() Track {
	t := FlatTrack()
	t.ID = HillTrackName
	t.Slope = 0.6
	return t
}

func (t Track) Name() string {
	return t.ID
}

func (t Track) Evaluate(ctx context.Context, g model.Genome) (Score, Trace, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, nil, err
	}

	components := connectedComponents(g)
	xs := make([]float64, 0, model.GridCells)
	travelled := make([]float64, 0, len(components))
	moving := 0
	for _, comp := range components {
		if err := ctx.Err(); err != nil {
			return Score{}, nil, err
		}
		d := t.distance(g, comp)
		if d > 0 {
			moving++
		}
		travelled = append(travelled, d)
		for _, cell := range comp {
			xs = append(xs, float64(cell.col)*t.CellSize+d)
		}
	}

	score := ScoreDisplacement(xs)
	return score, Trace{
		"cells":      len(xs),
		"components": len(components),
		"moving":     moving,
		"travelled":  travelled,
	}, nil
}

func (t Track) distance(g model.Genome, comp []cellPos) float64 {
	bottom, left, right := -1, model.GridCols, -1
	for _, c := range comp {
		bottom = max(bottom, c.row)
		left = min(left, c.col)
		right = max(right, c.col)
	}

	motors := 0
	for _, c := range comp {
		if g.Cells[c.row][c.col] != model.CellWheel || c.row != bottom {
			continue
		}
		for _, n := range neighbours(c) {
			if g.Cells[n.row][n.col] == model.CellStructural {
				motors++
			}
		}
	}
	if motors == 0 {
		return 0
	}

	mass := float64(len(comp))
	width := float64(right-left+1) / model.GridCols
	drive := t.DrivePerMotor * float64(motors) / mass * width
	drive *= math.Max(0, 1-t.Slope*mass/model.GridCells)
	return math.Min(t.Length, drive)
}

type cellPos struct {
	row, col int
}

func neighbours(c cellPos) []cellPos {
	out := make([]cellPos, 0, 4)
	for _, d := range [4]cellPos{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		r, col := c.row+d.row, c.col+d.col
		if r >= 0 && r < model.GridRows && col >= 0 && col < model.GridCols {
			out = append(out, cellPos{r, col})
		}
	}
	return out
}

func joined(a, b model.CellKind) bool {
	if a == model.CellEmpty || b == model.CellEmpty {
		return false
	}
	return a == model.CellStructural || b == model.CellStructural
}

// connectedComponents groups non-empty cells in row-major discovery order.
func connectedComponents(g model.Genome) [][]cellPos {
	var seen [model.GridRows][model.GridCols]bool
	var out [][]cellPos
	for r := 0; r < model.GridRows; r++ {
		for c := 0; c < model.GridCols; c++ {
			if seen[r][c] || g.Cells[r][c] == model.CellEmpty {
				continue
			}
			seen[r][c] = true
			queue := []cellPos{{r, c}}
			var comp []cellPos
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				comp = append(comp, cur)
				for _, n := range neighbours(cur) {
					if seen[n.row][n.col] || !joined(g.Cells[cur.row][cur.col], g.Cells[n.row][n.col]) {
						continue
					}
					seen[n.row][n.col] = true
					queue = append(queue, n)
				}
			}
			out = append(out, comp)
		}
	}
	return out
}
