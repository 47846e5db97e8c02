// Package workflow holds the per-kind status graphs. Validation is a pure
// lookup and must run before any write is attempted.
package workflow

import (
	"errors"
	"fmt"

	"github.com/fixzit/fm-service/internal/domain"
)

// ErrIllegalTransition marks a requested edge that is not in the graph.
var ErrIllegalTransition = errors.New("illegal status transition")

// TransitionError names the rejected edge.
type TransitionError struct {
	Kind domain.EntityKind
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrIllegalTransition, e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Machine is a fixed directed graph over a status enum.
type Machine[S ~string] struct {
	kind    domain.EntityKind
	initial S
	edges   map[S]map[S]struct{}
	states  map[S]struct{}
}

// NewMachine builds a machine from an adjacency list. States that appear only
// as targets are terminal.
func NewMachine[S ~string](kind domain.EntityKind, initial S, edges map[S][]S) *Machine[S] {
	m := &Machine[S]{
		kind:    kind,
		initial: initial,
		edges:   make(map[S]map[S]struct{}, len(edges)),
		states:  map[S]struct{}{initial: {}},
	}
	for from, targets := range edges {
		m.states[from] = struct{}{}
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
			m.states[to] = struct{}{}
		}
		m.edges[from] = set
	}
	return m
}

func (m *Machine[S]) Kind() domain.EntityKind { return m.kind }

// Initial is the status new entities are created in.
func (m *Machine[S]) Initial() S { return m.initial }

// Known reports whether s is a state of this graph.
func (m *Machine[S]) Known(s S) bool {
	_, ok := m.states[s]
	return ok
}

// CanTransition is true iff to is an outgoing edge of from.
func (m *Machine[S]) CanTransition(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// IsTerminal is true for known states with no outgoing edges.
func (m *Machine[S]) IsTerminal(s S) bool {
	return m.Known(s) && len(m.edges[s]) == 0
}

// Next lists the legal targets of from.
func (m *Machine[S]) Next(from S) []S {
	out := make([]S, 0, len(m.edges[from]))
	for to := range m.edges[from] {
		out = append(out, to)
	}
	return out
}

// Validate returns a *TransitionError when from -> to is not legal.
func (m *Machine[S]) Validate(from, to S) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return &TransitionError{Kind: m.kind, From: string(from), To: string(to)}
}
