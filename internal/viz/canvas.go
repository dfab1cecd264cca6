package viz

import (
	"math"
	"strings"

	"github.com/san-kum/tethersim/internal/vec"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// PixelSize is the canvas size in sub-pixels.
func (c *Canvas) PixelSize() (int, int) {
	return c.Width * 2, c.Height * 4
}

// Set lights the sub-pixel (x, y). Out of range pixels are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Dot draws a 3x3 block centred on (x, y).
func (c *Canvas) Dot(x, y int) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			c.Set(x+dx, y+dy)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Projection maps the world XY plane onto canvas sub-pixels with a uniform
// scale, Y up. Its bounds only ever grow, so the view stays steady while the
// network swings inside them.
type Projection struct {
	min, max vec.Vec3
	empty    bool
}

func NewProjection() *Projection {
	return &Projection{empty: true}
}

func (p *Projection) Include(v vec.Vec3) {
	if !v.IsFinite() {
		return
	}
	if p.empty {
		p.min, p.max, p.empty = v, v, false
		return
	}
	p.min.X = math.Min(p.min.X, v.X)
	p.min.Y = math.Min(p.min.Y, v.Y)
	p.max.X = math.Max(p.max.X, v.X)
	p.max.Y = math.Max(p.max.Y, v.Y)
}

// Map returns the sub-pixel for v on a canvas of w x h sub-pixels, keeping a
// two pixel margin.
func (p *Projection) Map(v vec.Vec3, w, h int) (int, int) {
	if p.empty {
		return w / 2, h / 2
	}
	const margin = 2
	spanX := math.Max(p.max.X-p.min.X, 1e-9)
	spanY := math.Max(p.max.Y-p.min.Y, 1e-9)
	scale := math.Min(float64(w-2*margin-1)/spanX, float64(h-2*margin-1)/spanY)

	// Centre the scaled bounds on the canvas.
	offX := (float64(w-1) - spanX*scale) / 2
	offY := (float64(h-1) - spanY*scale) / 2
	x := offX + (v.X-p.min.X)*scale
	y := offY + (p.max.Y-v.Y)*scale
	return int(math.Round(x)), int(math.Round(y))
}
