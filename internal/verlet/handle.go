package verlet

import "fmt"

// PointID is a stable generational handle to a point mass. The zero value is
// never issued.
type PointID struct {
	index uint32
	gen   uint32
}

func (p PointID) Index() uint32 { return p.index }
func (p PointID) IsZero() bool  { return p.gen == 0 }
func (p PointID) String() string {
	return fmt.Sprintf("p%d.%d", p.index, p.gen)
}

// LinkID is a stable generational handle to a link. The zero value is never
// issued.
type LinkID struct {
	index uint32
	gen   uint32
}

func (l LinkID) Index() uint32 { return l.index }
func (l LinkID) IsZero() bool  { return l.gen == 0 }
func (l LinkID) String() string {
	return fmt.Sprintf("l%d.%d", l.index, l.gen)
}

type slot[T any] struct {
	val  T
	gen  uint32
	live bool
}

// arena stores values in reusable slots. Removing a value bumps the slot
// generation, so handles to the old occupant stop resolving.
type arena[T any] struct {
	kind  HandleKind
	slots []slot[T]
	free  []uint32
	live  int
}

func newArena[T any](kind HandleKind) arena[T] {
	return arena[T]{kind: kind}
}

func (a *arena[T]) insert(v T) (uint32, uint32) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if len(a.slots) == int(^uint32(0)) {
			panic(fmt.Sprintf("verlet: %s arena overflow", a.kind))
		}
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{gen: 1})
	}

	s := &a.slots[idx]
	s.val = v
	s.live = true
	a.live++
	return idx, s.gen
}

func (a *arena[T]) get(idx, gen uint32) (*T, error) {
	if gen == 0 || int(idx) >= len(a.slots) {
		return nil, a.handleErr(idx, gen, ErrInvalidHandle)
	}
	s := &a.slots[idx]
	if s.live && s.gen == gen {
		return &s.val, nil
	}
	if gen > s.gen {
		return nil, a.handleErr(idx, gen, ErrInvalidHandle)
	}
	return nil, a.handleErr(idx, gen, ErrStaleHandle)
}

func (a *arena[T]) remove(idx, gen uint32) (T, error) {
	var zero T
	if _, err := a.get(idx, gen); err != nil {
		return zero, err
	}
	s := &a.slots[idx]
	old := s.val
	s.val = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, idx)
	a.live--
	return old, nil
}

func (a *arena[T]) handleErr(idx, gen uint32, err error) error {
	return &HandleError{Kind: a.kind, Index: idx, Gen: gen, Wrapped: err}
}

// each calls fn for every live slot in ascending index order.
func (a *arena[T]) each(fn func(idx, gen uint32, v *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(uint32(i), s.gen, &s.val)
		}
	}
}
