package verlet

import (
	"math"

	"github.com/san-kum/tethersim/internal/vec"
)

// Link is a fixed-length constraint between two point masses. It holds
// handles into the point store and owns neither endpoint.
type Link struct {
	A, B       PointID
	RestLength float64
}

// Graph is the link graph. Adjacency is kept per point slot and updated on
// every connect and disconnect.
type Graph struct {
	points *Points
	arena  arena[Link]
	adj    [][]LinkID
}

// NewGraph builds a link graph over points. From then on, removing a point
// from the store also disconnects its links here.
func NewGraph(points *Points) *Graph {
	g := &Graph{
		points: points,
		arena:  newArena[Link](KindLink),
	}
	points.unlink = func(p PointID) error {
		_, err := g.DropPoint(p)
		return err
	}
	return g
}

// Connect links a and b with a rest length equal to their current distance.
func (g *Graph) Connect(a, b PointID) (LinkID, error) {
	if a == b {
		return LinkID{}, ErrSelfLink
	}
	pa, err := g.points.Position(a)
	if err != nil {
		return LinkID{}, err
	}
	pb, err := g.points.Position(b)
	if err != nil {
		return LinkID{}, err
	}
	return g.connect(a, b, vec.Dist(pa, pb))
}

// ConnectWithLength links a and b with an explicit rest length.
func (g *Graph) ConnectWithLength(a, b PointID, length float64) (LinkID, error) {
	if a == b {
		return LinkID{}, ErrSelfLink
	}
	if length < 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return LinkID{}, ErrNegativeLength
	}
	if _, err := g.points.ref(a); err != nil {
		return LinkID{}, err
	}
	if _, err := g.points.ref(b); err != nil {
		return LinkID{}, err
	}
	return g.connect(a, b, length)
}

func (g *Graph) connect(a, b PointID, length float64) (LinkID, error) {
	idx, gen := g.arena.insert(Link{A: a, B: b, RestLength: length})
	id := LinkID{index: idx, gen: gen}
	g.attach(a, id)
	g.attach(b, id)
	return id, nil
}

func (g *Graph) attach(p PointID, l LinkID) {
	for int(p.index) >= len(g.adj) {
		g.adj = append(g.adj, nil)
	}
	g.adj[p.index] = append(g.adj[p.index], l)
}

func (g *Graph) detach(p PointID, l LinkID) {
	if int(p.index) >= len(g.adj) {
		return
	}
	list := g.adj[p.index]
	for i, id := range list {
		if id == l {
			list[i] = list[len(list)-1]
			g.adj[p.index] = list[:len(list)-1]
			return
		}
	}
}

// Disconnect removes l and returns it so the caller can decide what to do
// with endpoints that are left without links.
func (g *Graph) Disconnect(l LinkID) (Link, error) {
	link, err := g.arena.remove(l.index, l.gen)
	if err != nil {
		return Link{}, err
	}
	g.detach(link.A, l)
	g.detach(link.B, l)
	return link, nil
}

// DropPoint disconnects every link incident to p and returns them.
func (g *Graph) DropPoint(p PointID) ([]Link, error) {
	ids, err := g.Neighbors(p)
	if err != nil {
		return nil, err
	}
	dropped := make([]Link, 0, len(ids))
	for _, id := range ids {
		link, err := g.Disconnect(id)
		if err != nil {
			return dropped, err
		}
		dropped = append(dropped, link)
	}
	if int(p.index) < len(g.adj) {
		g.adj[p.index] = nil
	}
	return dropped, nil
}

// RemovePoint disconnects every link incident to p, removes p from the store
// and returns the disconnected links.
func (g *Graph) RemovePoint(p PointID) ([]Link, error) {
	dropped, err := g.DropPoint(p)
	if err != nil {
		return dropped, err
	}
	if _, err := g.points.arena.remove(p.index, p.gen); err != nil {
		return dropped, err
	}
	return dropped, nil
}

func (g *Graph) Link(l LinkID) (Link, error) {
	link, err := g.arena.get(l.index, l.gen)
	if err != nil {
		return Link{}, err
	}
	return *link, nil
}

func (g *Graph) Valid(l LinkID) bool {
	_, err := g.arena.get(l.index, l.gen)
	return err == nil
}

// Other returns the endpoint of l opposite p.
func (g *Graph) Other(l LinkID, p PointID) (PointID, error) {
	link, err := g.Link(l)
	if err != nil {
		return PointID{}, err
	}
	switch p {
	case link.A:
		return link.B, nil
	case link.B:
		return link.A, nil
	}
	return PointID{}, &HandleError{Kind: KindPoint, Index: p.index, Gen: p.gen, Wrapped: ErrInvalidHandle}
}

// Neighbors returns a copy of the links incident to p.
func (g *Graph) Neighbors(p PointID) ([]LinkID, error) {
	if _, err := g.points.ref(p); err != nil {
		return nil, err
	}
	if int(p.index) >= len(g.adj) {
		return []LinkID{}, nil
	}
	out := make([]LinkID, len(g.adj[p.index]))
	copy(out, g.adj[p.index])
	return out, nil
}

func (g *Graph) Degree(p PointID) (int, error) {
	if _, err := g.points.ref(p); err != nil {
		return 0, err
	}
	if int(p.index) >= len(g.adj) {
		return 0, nil
	}
	return len(g.adj[p.index]), nil
}

func (g *Graph) Len() int { return g.arena.live }

// IDs returns live link handles in slot order, which is also relaxation order.
func (g *Graph) IDs() []LinkID {
	ids := make([]LinkID, 0, g.arena.live)
	g.arena.each(func(idx, gen uint32, _ *Link) {
		ids = append(ids, LinkID{index: idx, gen: gen})
	})
	return ids
}
