package system

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

var (
	ErrUnresolvableOrder = errors.New("unresolvable system ordering")
	ErrDuplicateName     = errors.New("duplicate system name")
	ErrMissingName       = errors.New("system name required")
	ErrInvalidReplace    = errors.New("invalid system replacement")
)

// Constraint is the ordering metadata of one system registration.
// After lists systems that must run before this one; Before lists
// systems that must run after it.
type Constraint struct {
	Name    string
	After   []string
	Before  []string
	Replace string
}

func (c Constraint) constrained() bool {
	return len(c.After) > 0 || len(c.Before) > 0
}

// Node is anything that carries ordering metadata.
type Node interface {
	Constraint() Constraint
}

type item[T Node] struct {
	node    T
	c       Constraint
	aliases []string // own name, then every name it replaced
}

func (it *item[T]) answersTo(name string) bool {
	return slices.Contains(it.aliases, name)
}

// follows reports whether it must be placed somewhere after other.
func (it *item[T]) follows(other *item[T]) bool {
	for _, name := range it.c.After {
		if other.answersTo(name) {
			return true
		}
	}
	for _, name := range other.c.Before {
		if it.answersTo(name) {
			return true
		}
	}
	return false
}

type planner[T Node] struct {
	list []*item[T]
	log  *zap.Logger
}

// Order returns nodes sorted so that every After/Before constraint holds,
// with Replace directives applied. Nodes are placed one at a time in input
// order; the result is deterministic for a given input. Constraints that
// cannot be satisfied yield ErrUnresolvableOrder.
func Order[T Node](nodes []T, log *zap.Logger) ([]T, error) {
	if log == nil {
		log = zap.NewNop()
	}
	seen := make(map[string]bool, len(nodes))
	var normal, replacements []*item[T]
	for _, n := range nodes {
		c := n.Constraint()
		if c.Name == "" {
			return nil, ErrMissingName
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		seen[c.Name] = true
		if c.Replace == c.Name {
			return nil, fmt.Errorf("%w: %q replaces itself", ErrInvalidReplace, c.Name)
		}
		if slices.Contains(c.After, c.Name) || slices.Contains(c.Before, c.Name) {
			return nil, fmt.Errorf("%w: %q is ordered against itself", ErrUnresolvableOrder, c.Name)
		}
		it := &item[T]{node: n, c: c, aliases: []string{c.Name}}
		if c.Replace != "" {
			replacements = append(replacements, it)
		} else {
			normal = append(normal, it)
		}
	}

	p := &planner[T]{list: make([]*item[T], 0, len(nodes)), log: log}
	for _, it := range normal {
		if err := p.insert(it, 0, len(p.list)+1); err != nil {
			return nil, err
		}
	}
	if err := p.replace(replacements); err != nil {
		return nil, err
	}

	out := make([]T, len(p.list))
	for i, it := range p.list {
		out[i] = it.node
	}
	return out, nil
}

// insert places it into the running list. A is the slot just past the last
// element it must follow; B is the first element that must follow it. When
// B < A the element at B is evicted and both are re-inserted one collision
// degree higher.
func (p *planner[T]) insert(it *item[T], degree, bound int) error {
	if degree > bound {
		return fmt.Errorf("%w: %q exceeded %d collisions", ErrUnresolvableOrder, it.c.Name, bound)
	}

	a := 0
	for i := len(p.list) - 1; i >= 0; i-- {
		if it.follows(p.list[i]) {
			a = i + 1
			break
		}
	}
	b := len(p.list)
	for i, other := range p.list {
		if other.follows(it) {
			b = i
			break
		}
	}

	if b >= a {
		p.list = slices.Insert(p.list, b, it)
		return nil
	}

	evicted := p.list[b]
	p.list = slices.Delete(p.list, b, b+1)
	p.log.Debug("system order collision",
		zap.String("system", it.c.Name),
		zap.String("evicted", evicted.c.Name),
		zap.Int("degree", degree+1))
	if err := p.insert(it, degree+1, bound); err != nil {
		return err
	}
	return p.insert(evicted, degree+1, bound)
}

func (p *planner[T]) indexOf(name string) int {
	return slices.IndexFunc(p.list, func(it *item[T]) bool { return it.answersTo(name) })
}

// replace applies replacements until none of the remaining ones can find
// their target; chains resolve regardless of input order. A replacement
// takes over the names of what it replaced. When nothing matches, one
// orphan is kept as an ordinary system and the rest are retried against it.
func (p *planner[T]) replace(pending []*item[T]) error {
	for len(pending) > 0 {
		var rest []*item[T]
		for _, r := range pending {
			idx := p.indexOf(r.c.Replace)
			if idx < 0 {
				rest = append(rest, r)
				continue
			}
			target := p.list[idx]
			r.aliases = append(r.aliases, target.aliases...)
			p.log.Debug("system replaced",
				zap.String("system", r.c.Name),
				zap.String("replaced", target.c.Name))
			if !r.c.constrained() {
				p.list[idx] = r
				continue
			}
			p.list = slices.Delete(p.list, idx, idx+1)
			if err := p.insert(r, 0, len(p.list)+1); err != nil {
				return err
			}
		}
		if len(rest) == len(pending) {
			i := orphanIndex(rest)
			orphan := rest[i]
			rest = slices.Delete(rest, i, i+1)
			p.log.Warn("replacement target not registered, keeping system",
				zap.String("system", orphan.c.Name),
				zap.String("replace", orphan.c.Replace))
			if err := p.insert(orphan, 0, len(p.list)+1); err != nil {
				return err
			}
		}
		pending = rest
	}
	return nil
}

// orphanIndex picks the first replacement whose target is not itself a
// pending replacement, falling back to the first one.
func orphanIndex[T Node](pending []*item[T]) int {
	for i, r := range pending {
		if !slices.ContainsFunc(pending, func(other *item[T]) bool { return other.answersTo(r.c.Replace) }) {
			return i
		}
	}
	return 0
}
