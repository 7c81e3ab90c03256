package scape

import (
	"context"
	"errors"
	"testing"

	"carvolve/internal/genotype"
	"carvolve/internal/model"
)

func TestScoreDisplacement(t *testing.T) {
	cases := []struct {
		name      string
		xs        []float64
		fitness   int64
		fellApart bool
	}{
		{name: "empty", xs: nil, fitness: 0},
		{name: "rounds each position", xs: []float64{0.4, 1.6, 3.5}, fitness: 2},
		{name: "negative", xs: []float64{-2.5}, fitness: -3},
		{name: "spread at limit", xs: []float64{0, 1000}, fitness: 500},
		{name: "fell apart", xs: []float64{0, 1001}, fitness: 50, fellApart: true},
	}
	for _, tc := range cases {
		got := ScoreDisplacement(tc.xs)
		if got.Fitness != tc.fitness || got.FellApart != tc.fellApart {
			t.Fatalf("%s: got=%+v want=(%d,%v)", tc.name, got, tc.fitness, tc.fellApart)
		}
	}
}

// twoRowCar has a structural deck on row 4 and wheels under every column.
func twoRowCar() model.Genome {
	g := genotype.Filled(model.CellEmpty)
	for c := 0; c < model.GridCols; c++ {
		g.Cells[4][c] = model.CellStructural
		g.Cells[5][c] = model.CellWheel
	}
	return g
}

func TestFlatTrackDrivesConnectedCar(t *testing.T) {
	score, trace, err := FlatTrack().Evaluate(context.Background(), twoRowCar())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score.Fitness != 15140 || score.FellApart {
		t.Fatalf("unexpected score: %+v", score)
	}
	if score.Fitness < 14400 {
		t.Fatal("expected car to reach the finish")
	}
	if trace["components"] != 1 || trace["moving"] != 1 {
		t.Fatalf("unexpected trace: %v", trace)
	}
}

func TestFlatTrackDetachedFragmentFallsApart(t *testing.T) {
	g := twoRowCar()
	g.Cells[0][0] = model.CellStructural

	score, trace, err := FlatTrack().Evaluate(context.Background(), g)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !score.FellApart || score.Fitness != 1425 {
		t.Fatalf("unexpected score: %+v", score)
	}
	if trace["components"] != 2 {
		t.Fatalf("expected 2 components, got=%v", trace["components"])
	}
}

func TestFlatTrackWithoutMotorsStaysPut(t *testing.T) {
	score, _, err := FlatTrack().Evaluate(context.Background(), genotype.Filled(model.CellWheel))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score.Fitness != 140 || score.FellApart {
		t.Fatalf("unexpected score: %+v", score)
	}

	empty, _, err := FlatTrack().Evaluate(context.Background(), genotype.Filled(model.CellEmpty))
	if err != nil || empty.Fitness != 0 {
		t.Fatalf("empty genome: got=%+v err=%v", empty, err)
	}
}

func TestHillTrackDrainsDrive(t *testing.T) {
	score, _, err := HillTrack().Evaluate(context.Background(), twoRowCar())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score.Fitness != 12140 {
		t.Fatalf("unexpected hill fitness: got=%d want=12140", score.Fitness)
	}
}

func TestTrackHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := FlatTrack().Evaluate(ctx, twoRowCar()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got=%v", err)
	}
}

func TestByName(t *testing.T) {
	names := Names()
	if len(names) != 2 || names[0] != FlatTrackName || names[1] != HillTrackName {
		t.Fatalf("unexpected names: %v", names)
	}
	for _, name := range names {
		s, err := ByName(name)
		if err != nil || s.Name() != name {
			t.Fatalf("name=%s: got=%v err=%v", name, s, err)
		}
	}
	if _, err := ByName("moon"); err == nil {
		t.Fatal("expected unsupported scape error")
	}
}

func TestFuncAdapter(t *testing.T) {
	s := Func{ID: "const", Fn: func(context.Context, model.Genome) (Score, error) {
		return Score{Fitness: 7}, nil
	}}
	score, _, err := s.Evaluate(context.Background(), model.Genome{})
	if err != nil || score.Fitness != 7 || s.Name() != "const" {
		t.Fatalf("got=%+v err=%v", score, err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"flat_track":           "flat_track",
		"FLAT-TRACK":           "flat_track",
		"flat track":           "flat_track",
		"flat":                 "flat_track",
		"scape_flat_track_sim": "flat_track",
		"flattrack_sim":        "flat_track",
		"hill":                 "hill_track",
		"hillsim":              "hill_track",
		"scape-hill-track":     "hill_track",
		"custom-sim":           "custom_sim",
		"  ":                   "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("normalize(%q)=%q want=%q", in, got, want)
		}
	}

	s, err := ByName("Hill-Track")
	if err != nil || s.Name() != HillTrackName {
		t.Fatalf("alias lookup: got=%v err=%v", s, err)
	}
}
