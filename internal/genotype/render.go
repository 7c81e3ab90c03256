package genotype

import (
	"fmt"
	"strings"

	"carvolve/internal/model"
)

var cellGlyphs = [...]byte{
	model.CellEmpty:      '.',
	model.CellStructural: '#',
	model.CellWheel:      'o',
}

// unknownGlyph stands in for cell kinds outside the enumeration. Parse
// rejects it.
const unknownGlyph = '?'

// Render draws g as GridRows lines of GridCols glyphs.
func Render(g model.Genome) string {
	var b strings.Builder
	b.Grow(model.GridRows * (model.GridCols + 1))
	for r := range g.Cells {
		for _, kind := range g.Cells[r] {
			if !kind.Valid() {
				b.WriteByte(unknownGlyph)
				continue
			}
			b.WriteByte(cellGlyphs[kind])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse is the inverse of Render. Blank lines and surrounding whitespace are
// ignored.
func Parse(text string) (model.Genome, error) {
	cells := make([]model.CellKind, 0, model.GridCells)
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) != model.GridCols {
			return model.Genome{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrPrecondition, rows, len(line), model.GridCols)
		}
		for i := 0; i < len(line); i++ {
			kind, ok := glyphKind(line[i])
			if !ok {
				return model.Genome{}, fmt.Errorf("%w: unknown glyph %q in row %d", ErrPrecondition, line[i], rows)
			}
			cells = append(cells, kind)
		}
		rows++
	}
	return FromCells(cells)
}

func glyphKind(ch byte) (model.CellKind, bool) {
	for kind, glyph := range cellGlyphs {
		if glyph == ch {
			return model.CellKind(kind), true
		}
	}
	return 0, false
}
