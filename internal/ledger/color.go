package ledger

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// SoloColor marks the only slot of a single-slot batch.
var SoloColor = colorful.Color{R: 1, G: 1, B: 1}

// RampColor samples the turbo ramp at rank of limit evenly spaced stops.
func RampColor(rank, limit int) colorful.Color {
	if limit <= 1 {
		return SoloColor
	}
	return turbo(float64(rank) / float64(limit-1))
}

// turbo is the polynomial approximation of the Turbo colormap.
func turbo(t float64) colorful.Color {
	t = math.Max(0, math.Min(1, t))
	r := 34.61 + t*(1172.33-t*(10793.56-t*(33300.12-t*(38394.49-t*14825.05))))
	g := 23.31 + t*(557.33+t*(1225.33-t*(3574.96-t*(1073.77+t*707.56))))
	b := 27.2 + t*(3211.1-t*(15327.97-t*(27814.0-t*(22569.18-t*6838.66))))
	return colorful.Color{R: channel(r), G: channel(g), B: channel(b)}
}

func channel(v float64) float64 {
	return math.Round(math.Max(0, math.Min(255, v))) / 255
}
