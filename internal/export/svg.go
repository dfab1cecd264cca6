package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

// bounds is the XY extent of a set of points, padded by 10% on each side.
type bounds struct {
	minX, minY, rangeX, rangeY float64
}

func newBounds(points []vec.Vec3) bounds {
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return bounds{minX: minX, minY: minY, rangeX: rangeX * 1.2, rangeY: rangeY * 1.2}
}

// project maps world XY to SVG coordinates, Y up.
func (b bounds) project(p vec.Vec3, width, height int) (float64, float64) {
	x := (p.X - b.minX) / b.rangeX * float64(width)
	y := float64(height) - (p.Y-b.minY)/b.rangeY*float64(height)
	return x, y
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// strainColor fades from green at rest length to red at full strain.
func strainColor(strain, full float64) string {
	t := math.Min(math.Abs(strain)/full, 1)
	r := int(255 * t)
	g := int(255 * (1 - t))
	return fmt.Sprintf("#%02x%02x44", r, g)
}

// SnapshotToSVG draws every link of snap, coloured by strain, with locked
// points marked.
func SnapshotToSVG(snap verlet.Snapshot, width, height int) string {
	var sb strings.Builder
	header(&sb, width, height)

	if len(snap.Points) == 0 {
		sb.WriteString("</svg>")
		return sb.String()
	}
	positions := make([]vec.Vec3, len(snap.Points))
	for i, p := range snap.Points {
		positions[i] = p.Position
	}
	b := newBounds(positions)

	sb.WriteString(`<g stroke-width="1.5" stroke-linecap="round">` + "\n")
	for _, l := range snap.Links {
		x1, y1 := b.project(l.PosA, width, height)
		x2, y2 := b.project(l.PosB, width, height)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`+"\n",
			x1, y1, x2, y2, strainColor(l.Strain(), 0.5))
	}
	sb.WriteString("</g>\n")

	sb.WriteString(`<g fill="#ffffff">` + "\n")
	for _, p := range snap.Points {
		if !p.Locked {
			continue
		}
		x, y := b.project(p.Position, width, height)
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3"/>`+"\n", x, y)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// TrajectoryToSVG draws the tracked point's path through a run trace.
func TrajectoryToSVG(samples []experiment.Sample, width, height int, strokeColor string) string {
	if len(samples) < 2 {
		return ""
	}
	positions := make([]vec.Vec3, len(samples))
	for i, s := range samples {
		positions[i] = s.Position
	}
	b := newBounds(positions)

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i, p := range positions {
		x, y := b.project(p, width, height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// WriteFile writes an SVG document to path.
func WriteFile(path, svg string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.WriteString(f, svg)
	return err
}
