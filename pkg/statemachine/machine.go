// Package statemachine is a small data-driven transition engine shared by the
// school, candidate and exam lifecycles.
//
// A Machine holds a closed set of states and a table of edges
// (from, event) -> to. Each edge may carry a guard evaluated against the
// entity. Attempt never mutates anything; callers apply the returned state
// inside their store's Execute callback.
//
// Tables never contain self loops, so re-applying an already completed
// transition always fails with CodeInvalidTransition.
package statemachine

import (
	"fmt"

	dErrors "dgtt/pkg/domain-errors"
)

// Guard is a precondition evaluated against the entity when an edge is taken.
type Guard[T any] func(entity T) bool

// Edge is one row of the transition table.
type Edge[S, E comparable] struct {
	From  S
	Event E
	To    S
}

type edgeKey[S, E comparable] struct {
	from  S
	event E
}

type rule[S comparable, T any] struct {
	to        S
	guard     Guard[T]
	guardName string
}

// Machine is immutable once built. It is safe for concurrent use.
type Machine[S, E comparable, T any] struct {
	name   string
	states []S
	known  map[S]struct{}
	rules  map[edgeKey[S, E]]rule[S, T]
	edges  []Edge[S, E]
}

// Builder assembles a Machine. Misconfiguration panics at build time.
type Builder[S, E comparable, T any] struct {
	m *Machine[S, E, T]
}

// NewBuilder starts a table over the closed set of states.
func NewBuilder[S, E comparable, T any](name string, states ...S) *Builder[S, E, T] {
	known := make(map[S]struct{}, len(states))
	for _, s := range states {
		known[s] = struct{}{}
	}
	return &Builder[S, E, T]{m: &Machine[S, E, T]{
		name:   name,
		states: append([]S(nil), states...),
		known:  known,
		rules:  make(map[edgeKey[S, E]]rule[S, T]),
	}}
}

// Allow adds an unguarded edge.
func (b *Builder[S, E, T]) Allow(from S, event E, to S) *Builder[S, E, T] {
	return b.AllowIf(from, event, to, "", nil)
}

// AllowIf adds an edge taken only when guard holds. guardName appears in the
// error returned when the guard fails.
func (b *Builder[S, E, T]) AllowIf(from S, event E, to S, guardName string, guard Guard[T]) *Builder[S, E, T] {
	if _, ok := b.m.known[from]; !ok {
		panic(fmt.Sprintf("statemachine %s: unknown state %v", b.m.name, from))
	}
	if _, ok := b.m.known[to]; !ok {
		panic(fmt.Sprintf("statemachine %s: unknown state %v", b.m.name, to))
	}
	if from == to {
		panic(fmt.Sprintf("statemachine %s: self loop on %v", b.m.name, from))
	}
	key := edgeKey[S, E]{from: from, event: event}
	if _, dup := b.m.rules[key]; dup {
		panic(fmt.Sprintf("statemachine %s: duplicate edge %v --%v-->", b.m.name, from, event))
	}
	b.m.rules[key] = rule[S, T]{to: to, guard: guard, guardName: guardName}
	b.m.edges = append(b.m.edges, Edge[S, E]{From: from, Event: event, To: to})
	return b
}

// AllowFromEach adds the same unguarded event from several source states.
func (b *Builder[S, E, T]) AllowFromEach(froms []S, event E, to S) *Builder[S, E, T] {
	for _, from := range froms {
		b.Allow(from, event, to)
	}
	return b
}

func (b *Builder[S, E, T]) Build() *Machine[S, E, T] {
	return b.m
}

// Attempt resolves the next state for entity in current under event.
//
// Errors:
//   - CodeInvalidTransition when no edge exists for (current, event)
//   - CodeGuardNotSatisfied when the edge exists but its guard is false
func (m *Machine[S, E, T]) Attempt(entity T, current S, event E) (S, error) {
	r, ok := m.rules[edgeKey[S, E]{from: current, event: event}]
	if !ok {
		var zero S
		return zero, dErrors.Newf(dErrors.CodeInvalidTransition,
			"%s: event %v not allowed from %v", m.name, event, current)
	}
	if r.guard != nil && !r.guard(entity) {
		var zero S
		return zero, dErrors.Newf(dErrors.CodeGuardNotSatisfied,
			"%s: %v -> %v requires %s", m.name, current, r.to, r.guardName)
	}
	return r.to, nil
}

// Can reports whether Attempt would succeed.
func (m *Machine[S, E, T]) Can(entity T, current S, event E) bool {
	_, err := m.Attempt(entity, current, event)
	return err == nil
}

// Target returns the destination of (from, event) ignoring guards.
func (m *Machine[S, E, T]) Target(from S, event E) (S, bool) {
	r, ok := m.rules[edgeKey[S, E]{from: from, event: event}]
	return r.to, ok
}

// Edges returns the table in declaration order.
func (m *Machine[S, E, T]) Edges() []Edge[S, E] {
	return append([]Edge[S, E](nil), m.edges...)
}

// States returns the closed set of states.
func (m *Machine[S, E, T]) States() []S {
	return append([]S(nil), m.states...)
}

// Events lists the events that leave from.
func (m *Machine[S, E, T]) Events(from S) []E {
	var out []E
	for _, e := range m.edges {
		if e.From == from {
			out = append(out, e.Event)
		}
	}
	return out
}

// IsTerminal reports whether no edge leaves s.
func (m *Machine[S, E, T]) IsTerminal(s S) bool {
	for _, e := range m.edges {
		if e.From == s {
			return false
		}
	}
	return true
}

// Reachable reports whether target can be reached from s following edges
// and ignoring guards. A state reaches itself.
func (m *Machine[S, E, T]) Reachable(from, target S) bool {
	if from == target {
		return true
	}
	seen := map[S]struct{}{from: {}}
	queue := []S{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range m.edges {
			if e.From != cur {
				continue
			}
			if e.To == target {
				return true
			}
			if _, ok := seen[e.To]; !ok {
				seen[e.To] = struct{}{}
				queue = append(queue, e.To)
			}
		}
	}
	return false
}
