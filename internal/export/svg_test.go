package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

func TestSnapshotToSVG(t *testing.T) {
	snap := verlet.Snapshot{
		Points: []verlet.PointState{
			{Position: vec.New(0, 0, 0), Locked: true},
			{Position: vec.New(1, -1, 0)},
			{Position: vec.New(2, 0, 0)},
		},
		Links: []verlet.LinkState{
			{PosA: vec.New(0, 0, 0), PosB: vec.New(1, -1, 0), RestLength: 1.4, Length: 1.414},
			{PosA: vec.New(1, -1, 0), PosB: vec.New(2, 0, 0), RestLength: 1, Length: 1.414},
		},
	}

	svg := SnapshotToSVG(snap, 200, 100)
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Error("expected a complete svg document")
	}
	if n := strings.Count(svg, "<line"); n != 2 {
		t.Errorf("expected 2 lines, got %d", n)
	}
	if n := strings.Count(svg, "<circle"); n != 1 {
		t.Errorf("expected 1 locked marker, got %d", n)
	}
	if !strings.Contains(svg, strainColor(0.414, 0.5)) {
		t.Error("stretched link should use its strain colour")
	}
}

func TestSnapshotToSVG_Empty(t *testing.T) {
	svg := SnapshotToSVG(verlet.Snapshot{}, 10, 10)
	if strings.Contains(svg, "<line") || !strings.HasSuffix(svg, "</svg>") {
		t.Errorf("unexpected empty document %q", svg)
	}
}

func TestStrainColor(t *testing.T) {
	if c := strainColor(0, 0.5); c != "#00ff44" {
		t.Errorf("rest colour: got %s", c)
	}
	if c := strainColor(-2, 0.5); c != "#ff0044" {
		t.Errorf("saturated colour: got %s", c)
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	if svg := TrajectoryToSVG([]experiment.Sample{{}}, 10, 10, "#fff"); svg != "" {
		t.Error("a single sample has no trajectory")
	}

	samples := []experiment.Sample{
		{Position: vec.New(0, 0, 0)},
		{Position: vec.New(1, -1, 0)},
		{Position: vec.New(2, -1.5, 0)},
	}
	svg := TrajectoryToSVG(samples, 100, 100, "#00ff88")
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 2 segments in %q", svg)
	}

	path := filepath.Join(t.TempDir(), "trace.svg")
	if err := WriteFile(path, svg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != svg {
		t.Error("file contents differ")
	}
}
