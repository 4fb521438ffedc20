package shared

import (
	"context"

	"github.com/google/uuid"
)

// Guard checks an external precondition for a status edge, e.g. a linked
// delivery note or sufficient material stock. Guards return a
// *PreconditionError when the edge must be blocked.
type Guard func(ctx context.Context, ref uuid.UUID) error

type edge struct {
	permission string
	guard      Guard
}

// StateMachine encodes, per document type, the directed graph of legal status
// transitions together with the capability and precondition for each edge.
// States are plain strings owned by the document package; the machine itself
// carries no persistence.
type StateMachine[S ~string] struct {
	document string
	edges    map[S]map[S]edge
}

// NewStateMachine constructs an empty machine for the named document type.
func NewStateMachine[S ~string](document string) *StateMachine[S] {
	return &StateMachine[S]{
		document: document,
		edges:    make(map[S]map[S]edge),
	}
}

// Allow registers a legal edge. The permission is required from the actor;
// an empty permission means any actor may take the edge.
func (m *StateMachine[S]) Allow(from, to S, permission string) *StateMachine[S] {
	return m.AllowIf(from, to, permission, nil)
}

// AllowIf registers a legal edge guarded by an external precondition.
func (m *StateMachine[S]) AllowIf(from, to S, permission string, guard Guard) *StateMachine[S] {
	targets, ok := m.edges[from]
	if !ok {
		targets = make(map[S]edge)
		m.edges[from] = targets
	}
	targets[to] = edge{permission: permission, guard: guard}
	return m
}

// CanTransition reports whether the edge exists, ignoring permissions and guards.
func (m *StateMachine[S]) CanTransition(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// Targets returns the legal targets from a state.
func (m *StateMachine[S]) Targets(from S) []S {
	targets := make([]S, 0, len(m.edges[from]))
	for to := range m.edges[from] {
		targets = append(targets, to)
	}
	return targets
}

// Transition validates the edge from current to target for the given actor.
// It fails with *TransitionError when the edge does not exist, with
// ErrUnauthorized when the actor lacks the edge capability, and with the
// guard's error (typically *PreconditionError) when the precondition is unmet.
// The machine does not mutate anything; the caller persists the new status
// inside its own transaction after a successful check.
func (m *StateMachine[S]) Transition(ctx context.Context, ref uuid.UUID, current, target S, actor Actor) error {
	e, ok := m.edges[current][target]
	if !ok {
		return &TransitionError{Document: m.document, From: string(current), To: string(target)}
	}
	if !actor.Can(e.permission) {
		return ErrUnauthorized
	}
	if e.guard != nil {
		if err := e.guard(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

// IsTerminal reports whether no edges leave the state.
func (m *StateMachine[S]) IsTerminal(state S) bool {
	return len(m.edges[state]) == 0
}
