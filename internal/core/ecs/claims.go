package ecs

const minClaimCapacity = 8

// grow doubles the backing array of s when it is full.
func grow[S ~[]E, E any](s S) S {
	if len(s) < cap(s) {
		return s
	}
	grown := make(S, len(s), max(2*cap(s), minClaimCapacity))
	copy(grown, s)
	return grown
}

// claimIndex is the entity half of a claim store: a dense array of claimed
// entities and the index of each. Component arrays kept beside it share its
// indices and follow its swap-removes.
type claimIndex struct {
	entities []*Entity
	index    map[*Entity]int
}

func newClaimIndex() claimIndex {
	return claimIndex{
		entities: make([]*Entity, 0, minClaimCapacity),
		index:    make(map[*Entity]int, minClaimCapacity),
	}
}

func (c *claimIndex) Len() int { return len(c.entities) }

func (c *claimIndex) Has(e *Entity) bool {
	_, ok := c.index[e]
	return ok
}

// Entities returns the claimed entities in dense order. The slice is only
// valid until the next drain.
func (c *claimIndex) Entities() []*Entity { return c.entities }

func (c *claimIndex) push(e *Entity) {
	c.entities = append(grow(c.entities), e)
	c.index[e] = len(c.entities) - 1
}

// remove swap-removes e and reports the vacated index and the old last
// index so parallel arrays can mirror the move.
func (c *claimIndex) remove(e *Entity) (idx, last int, ok bool) {
	idx, ok = c.index[e]
	if !ok {
		return 0, 0, false
	}
	last = len(c.entities) - 1
	moved := c.entities[last]
	c.entities[idx] = moved
	c.index[moved] = idx
	c.entities[last] = nil
	c.entities = c.entities[:last]
	delete(c.index, e)
	return idx, last, true
}

func swapRemove[T any](s []*T, idx, last int) []*T {
	s[idx] = s[last]
	s[last] = nil
	return s[:last]
}

// Claims1 holds the entities carrying component A, with A stored beside them.
type Claims1[A any] struct {
	claimIndex
	ka Kind[A]
	a  []*A
}

func NewClaims1[A any](ka Kind[A]) *Claims1[A] {
	return &Claims1[A]{claimIndex: newClaimIndex(), ka: ka}
}

// Claim reads every required component off e. On success e is claimed (or
// its component pointers refreshed); otherwise any existing claim is dropped.
func (c *Claims1[A]) Claim(e *Entity) bool {
	a, ok := Get(e, c.ka)
	if !ok {
		c.Drop(e)
		return false
	}
	if i, ok := c.index[e]; ok {
		c.a[i] = a
		return true
	}
	c.push(e)
	c.a = append(grow(c.a), a)
	return true
}

func (c *Claims1[A]) Drop(e *Entity) bool {
	idx, last, ok := c.remove(e)
	if !ok {
		return false
	}
	c.a = swapRemove(c.a, idx, last)
	return true
}

func (c *Claims1[A]) Each(fn func(e *Entity, a *A)) {
	for i, e := range c.entities {
		fn(e, c.a[i])
	}
}

// Claims2 holds the entities carrying both A and B.
type Claims2[A, B any] struct {
	claimIndex
	ka Kind[A]
	kb Kind[B]
	a  []*A
	b  []*B
}

func NewClaims2[A, B any](ka Kind[A], kb Kind[B]) *Claims2[A, B] {
	return &Claims2[A, B]{claimIndex: newClaimIndex(), ka: ka, kb: kb}
}

func (c *Claims2[A, B]) Claim(e *Entity) bool {
	a, okA := Get(e, c.ka)
	b, okB := Get(e, c.kb)
	if !okA || !okB {
		c.Drop(e)
		return false
	}
	if i, ok := c.index[e]; ok {
		c.a[i], c.b[i] = a, b
		return true
	}
	c.push(e)
	c.a = append(grow(c.a), a)
	c.b = append(grow(c.b), b)
	return true
}

func (c *Claims2[A, B]) Drop(e *Entity) bool {
	idx, last, ok := c.remove(e)
	if !ok {
		return false
	}
	c.a = swapRemove(c.a, idx, last)
	c.b = swapRemove(c.b, idx, last)
	return true
}

func (c *Claims2[A, B]) Each(fn func(e *Entity, a *A, b *B)) {
	for i, e := range c.entities {
		fn(e, c.a[i], c.b[i])
	}
}

// Claims3 holds the entities carrying A, B and C.
type Claims3[A, B, C any] struct {
	claimIndex
	ka Kind[A]
	kb Kind[B]
	kc Kind[C]
	a  []*A
	b  []*B
	c  []*C
}

func NewClaims3[A, B, C any](ka Kind[A], kb Kind[B], kc Kind[C]) *Claims3[A, B, C] {
	return &Claims3[A, B, C]{claimIndex: newClaimIndex(), ka: ka, kb: kb, kc: kc}
}

func (s *Claims3[A, B, C]) Claim(e *Entity) bool {
	a, okA := Get(e, s.ka)
	b, okB := Get(e, s.kb)
	c, okC := Get(e, s.kc)
	if !okA || !okB || !okC {
		s.Drop(e)
		return false
	}
	if i, ok := s.index[e]; ok {
		s.a[i], s.b[i], s.c[i] = a, b, c
		return true
	}
	s.push(e)
	s.a = append(grow(s.a), a)
	s.b = append(grow(s.b), b)
	s.c = append(grow(s.c), c)
	return true
}

func (s *Claims3[A, B, C]) Drop(e *Entity) bool {
	idx, last, ok := s.remove(e)
	if !ok {
		return false
	}
	s.a = swapRemove(s.a, idx, last)
	s.b = swapRemove(s.b, idx, last)
	s.c = swapRemove(s.c, idx, last)
	return true
}

func (s *Claims3[A, B, C]) Each(fn func(e *Entity, a *A, b *B, c *C)) {
	for i, e := range s.entities {
		fn(e, s.a[i], s.b[i], s.c[i])
	}
}
