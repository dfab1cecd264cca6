package viz

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/scene"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	maxIterations   = 200
)

type TickMsg time.Time

// Model steps a scene on every tick and draws its links projected onto the XY
// plane.
type Model struct {
	scene  *scene.Scene
	logger *slog.Logger
	opts   []verlet.Option
	fps    int

	canvas *Canvas
	proj   *Projection

	running   bool
	gravityOn bool
	last      verlet.StepStats
	snap      verlet.Snapshot
	strain    []float64
	torn      int
	err       error
}

// NewModel wraps sc for live viewing. opts are reapplied when the scene is
// reset.
func NewModel(sc *scene.Scene, logger *slog.Logger, fps int, opts ...verlet.Option) Model {
	if logger == nil {
		logger = logging.NewNop()
	}
	if fps <= 0 {
		fps = 60
	}
	m := Model{
		scene:     sc,
		logger:    logger,
		opts:      opts,
		fps:       fps,
		canvas:    NewCanvas(width, height),
		proj:      NewProjection(),
		running:   true,
		gravityOn: true,
		strain:    make([]float64, 0, historyCapacity),
	}
	m.refresh()
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case ".":
			if !m.running {
				m.step()
			}
		case "g":
			m.toggleGravity()
		case "t":
			m.tear()
		case "r":
			m.reset()
		case "+", "=":
			m.adjustIterations(1)
		case "-", "_":
			m.adjustIterations(-1)
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) step() {
	stats, err := m.scene.Solver.Step(m.scene.Config.Dt)
	if err != nil {
		m.err = err
		m.running = false
		m.logger.Error("step failed", "error", err)
		return
	}
	m.last = stats
	m.refresh()

	m.strain = append(m.strain, maxStrain(m.snap))
	if len(m.strain) > historyCapacity {
		m.strain = m.strain[1:]
	}
}

// refresh re-reads the snapshot and redraws the canvas.
func (m *Model) refresh() {
	snap, err := m.scene.Solver.Snapshot()
	if err != nil {
		m.err = err
		return
	}
	m.snap = snap
	for _, p := range snap.Points {
		m.proj.Include(p.Position)
	}
	m.draw()
}

func (m *Model) draw() {
	m.canvas.Clear()
	w, h := m.canvas.PixelSize()
	for _, l := range m.snap.Links {
		x0, y0 := m.proj.Map(l.PosA, w, h)
		x1, y1 := m.proj.Map(l.PosB, w, h)
		m.canvas.DrawLine(x0, y0, x1, y1)
	}
	for _, p := range m.snap.Points {
		if p.Locked {
			x, y := m.proj.Map(p.Position, w, h)
			m.canvas.Dot(x, y)
		}
	}
}

func (m *Model) toggleGravity() {
	g := vec.Zero
	if !m.gravityOn {
		g = m.scene.Config.Solver.Gravity
	}
	if err := m.scene.Solver.SetGravity(g); err != nil {
		m.err = err
		return
	}
	m.gravityOn = !m.gravityOn
}

// tear cuts links around the scene centre, the way a click would.
func (m *Model) tear() {
	c := m.scene.Center()
	radius := m.scene.Config.Tear.Radius
	if radius <= 0 {
		radius = 0.5
	}
	n, err := m.scene.Tear(c.X, c.Y, radius, 4)
	if err != nil {
		m.err = err
		return
	}
	m.torn += n
	m.logger.Debug("tore links", "count", n)
	m.refresh()
}

func (m *Model) reset() {
	sc, err := m.scene.Reset(m.logger, m.opts...)
	if err != nil {
		m.err = err
		return
	}
	m.scene = sc
	m.proj = NewProjection()
	m.strain = m.strain[:0]
	m.last = verlet.StepStats{}
	m.torn = 0
	m.err = nil
	m.gravityOn = true
	m.refresh()
}

func (m *Model) adjustIterations(delta int) {
	n := m.scene.Solver.Iterations() + delta
	if n < 1 || n > maxIterations {
		return
	}
	if err := m.scene.Solver.SetIterations(n); err != nil {
		m.err = err
	}
}

func maxStrain(snap verlet.Snapshot) float64 {
	worst := 0.0
	for _, l := range snap.Links {
		if s := l.Strain(); s > worst {
			worst = s
		}
	}
	return worst
}

// View renders the TUI interface.
func (m Model) View() string {
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.scene.Name)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(StatusError.Render("ERROR: "+m.err.Error()) + "\n\n")
	case m.running:
		s.WriteString(StatusRunning.Render("RUNNING") + "\n\n")
	default:
		s.WriteString(StatusPaused.Render("PAUSED") + "\n\n")
	}

	if len(m.strain) > 1 {
		chart := asciigraph.Plot(m.strain, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("max strain"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	gravity := "on"
	if !m.gravityOn {
		gravity = "off"
	}
	current := 0.0
	if len(m.strain) > 0 {
		current = m.strain[len(m.strain)-1]
	}

	s.WriteString(row("Step", fmt.Sprintf("%d", m.snap.Step)))
	s.WriteString(row("Time", fmt.Sprintf("%.2fs", m.snap.Time)))
	s.WriteString(row("Points", fmt.Sprintf("%d", len(m.snap.Points))))
	s.WriteString(row("Links", fmt.Sprintf("%d", len(m.snap.Links))))
	s.WriteString(row("Iterations", fmt.Sprintf("%d", m.scene.Solver.Iterations())))
	s.WriteString(row("Gravity", gravity))
	s.WriteString(row("Max error", fmt.Sprintf("%.4f", m.last.MaxError)))
	s.WriteString(row("Degenerate", fmt.Sprintf("%d", m.last.Degenerate)))
	s.WriteString(row("Torn", fmt.Sprintf("%d", m.torn)))
	s.WriteString(row("Strain", StrainBar(current, 0.5, 16)))
	s.WriteString(row("Step cost", (m.last.IntegrateTime + m.last.RelaxTime).String()))

	s.WriteString(helpStyle.Render("─────────────────────\nSP:Pause .:Step R:Reset Q:Quit\nG:Gravity T:Tear +/-:Iterations"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

// Run starts the live view and blocks until the user quits.
func Run(sc *scene.Scene, logger *slog.Logger, fps int, opts ...verlet.Option) error {
	p := tea.NewProgram(NewModel(sc, logger, fps, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
