package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/san-kum/beamsim/internal/config"
)

// Machine is an ordered lattice of elements built from a configuration.
//
// A Machine owns its elements exclusively. Elements keep mutable caches and
// scratch buffers, so a Machine must not propagate two states concurrently;
// build one Machine per goroutine instead.
type Machine struct {
	simType  string
	info     *simInfo
	conf     *config.Config
	elements []Element
	lookup   map[string]Element
	logger   *slog.Logger
}

type Option func(*Machine)

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New builds every element listed under "elements" using the builders
// registered for the configuration's "sim_type". No partially built Machine
// is ever returned.
func New(reg *Registry, conf *config.Config, opts ...Option) (*Machine, error) {
	m := &Machine{
		conf:   conf,
		lookup: make(map[string]Element),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	simType, err := config.Get[string](conf, "sim_type")
	if err != nil {
		return nil, err
	}
	info, err := reg.lookup(simType)
	if err != nil {
		return nil, err
	}
	m.simType = simType
	m.info = info

	sections, err := config.Get[[]*config.Config](conf, "elements")
	if err != nil && !errors.Is(err, config.ErrKeyNotFound) {
		return nil, err
	}

	m.elements = make([]Element, 0, len(sections))
	for i, section := range sections {
		elem, err := m.build(i, section.Inherit(conf))
		if err != nil {
			return nil, err
		}
		m.elements = append(m.elements, elem)
		m.lookup[elem.Name()] = elem
	}

	for _, elem := range m.elements {
		elem.Peek(m.elements)
	}

	m.logger.Debug("machine built", "sim_type", simType, "elements", len(m.elements))
	return m, nil
}

func (m *Machine) build(index int, c *config.Config) (Element, error) {
	name := config.GetOr(c, "name", "")
	typ, err := config.Get[string](c, "type")
	if err != nil {
		return nil, &ElementError{Index: index, Name: name, Wrapped: err}
	}

	builder, ok := m.info.elements[typ]
	if !ok {
		return nil, &ElementError{
			Index:   index,
			Name:    name,
			Type:    typ,
			Wrapped: fmt.Errorf("%w: %s/%s", ErrUnknownElementType, m.simType, typ),
		}
	}

	elem, err := builder(c)
	if err != nil {
		return nil, &ElementError{Index: index, Name: name, Type: typ, Wrapped: err}
	}
	elem.bind(index)

	m.logger.Debug("element built", "index", index, "name", elem.Name(), "type", elem.TypeName())
	return elem, nil
}

// Propagate advances s through at most max elements starting at start.
// An element may redirect the walk by setting s.Base().NextElem. With max
// zero s is left untouched, NextElem included.
func (m *Machine) Propagate(s State, start, max int) error {
	return m.PropagateObserve(s, start, max)
}

// PropagateObserve is Propagate with observers called after every element.
func (m *Machine) PropagateObserve(s State, start, max int, obs ...Observer) error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidArgument)
	}
	if max < 0 {
		max = All
	}
	if max == 0 {
		return nil
	}

	base := s.Base()
	base.NextElem = start
	for i := 0; base.NextElem >= 0 && base.NextElem < len(m.elements) && i < max; i++ {
		elem := m.elements[base.NextElem]
		base.NextElem++

		if err := elem.Advance(s); err != nil {
			return &ElementError{Index: elem.Index(), Name: elem.Name(), Type: elem.TypeName(), Wrapped: err}
		}
		for _, o := range obs {
			o.OnElement(elem, s)
		}
	}
	return nil
}

// AllocState builds a fresh state of this Machine's simulation type.
func (m *Machine) AllocState(c *config.Config) (State, error) {
	if c == nil {
		c = config.New()
	}
	return m.info.state(c)
}

// Reconfigure rebuilds the element at index from its configuration merged
// with c.
func (m *Machine) Reconfigure(index int, c *config.Config) error {
	if index < 0 || index >= len(m.elements) {
		return fmt.Errorf("%w: element index %d out of range [0,%d)", ErrInvalidArgument, index, len(m.elements))
	}
	old := m.elements[index]

	merged := old.Config().Clone()
	merged.Merge(c)

	elem, err := m.build(index, merged)
	if err != nil {
		return err
	}

	m.elements[index] = elem
	if m.lookup[old.Name()] == old {
		delete(m.lookup, old.Name())
	}
	m.lookup[elem.Name()] = elem
	elem.Peek(m.elements)
	return nil
}

func (m *Machine) SimType() string { return m.simType }

func (m *Machine) Len() int { return len(m.elements) }

func (m *Machine) Element(i int) Element { return m.elements[i] }

// Lookup finds an element by name. With duplicate names the last one wins.
func (m *Machine) Lookup(name string) (Element, bool) {
	e, ok := m.lookup[name]
	return e, ok
}

// Elements returns the lattice in order. The slice must not be modified.
func (m *Machine) Elements() []Element { return m.elements }

func (m *Machine) Show(w io.Writer) {
	fmt.Fprintf(w, "sim_type: %s\n#Elements: %d\n", m.simType, len(m.elements))
	for _, e := range m.elements {
		fmt.Fprintf(w, "Element %d: %s (%s)\n", e.Index(), e.Name(), e.TypeName())
		e.Show(w)
	}
}

func (m *Machine) String() string {
	var sb strings.Builder
	m.Show(&sb)
	return sb.String()
}
