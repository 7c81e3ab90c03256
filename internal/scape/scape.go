package scape

import (
	"context"
	"fmt"
	"sort"

	"carvolve/internal/model"
)

// Trace carries evaluator-specific detail for logs and reports.
type Trace map[string]any

// Score is what an evaluator reports back for one genome.
type Score struct {
	Fitness   int64
	FellApart bool
}

// Scape turns a genome into a score. Implementations must be safe for
// concurrent use; the driver evaluates a batch in parallel.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, g model.Genome) (Score, Trace, error)
}

// Func adapts a plain function to Scape.
type Func struct {
	ID string
	Fn func(ctx context.Context, g model.Genome) (Score, error)
}

func (f Func) Name() string {
	return f.ID
}

func (f Func) Evaluate(ctx context.Context, g model.Genome) (Score, Trace, error) {
	score, err := f.Fn(ctx, g)
	return score, nil, err
}

var builtin = map[string]func() Scape{
	FlatTrackName: func() Scape { return FlatTrack() },
	HillTrackName: func() Scape { return HillTrack() },
}

// ByName returns a built-in scape.
func ByName(name string) (Scape, error) {
	ctor, ok := builtin[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported scape: %s", name)
	}
	return ctor(), nil
}

// Names lists the built-in scapes in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
