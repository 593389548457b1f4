package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session ID is not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when creating a session whose ID is already in use.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrSessionClosed is returned when an operation targets a session that is being torn down.
	ErrSessionClosed = errors.New("session closed")

	// ErrScopeNotFound is returned by config stores that hold no document for a scope.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrNodeNotFound is returned when a node ID is absent from the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is wrapped by GraphIntegrityError when two nodes share an ID.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrInvalidEvent is returned when an event has an unknown type.
	ErrInvalidEvent = errors.New("invalid event")
)

// GraphIntegrityError reports a graph that cannot be installed.
type GraphIntegrityError struct {
	EdgeID string
	NodeID string
	Reason string
	Err    error
}

func (e *GraphIntegrityError) Error() string {
	if e.EdgeID != "" {
		return fmt.Sprintf("graph integrity: edge '%s' references node '%s': %s", e.EdgeID, e.NodeID, e.Reason)
	}
	return fmt.Sprintf("graph integrity: node '%s': %s", e.NodeID, e.Reason)
}

func (e *GraphIntegrityError) Unwrap() error {
	return e.Err
}

// ConditionEvaluationFault reports a predicate that misbehaved.
// It is never propagated out of an evaluation; the edge counts as not met.
type ConditionEvaluationFault struct {
	EdgeID string
	Kind   ConditionKind
	Cause  error
}

func (e *ConditionEvaluationFault) Error() string {
	return fmt.Sprintf("condition fault on edge '%s' (%s): %v", e.EdgeID, e.Kind, e.Cause)
}

func (e *ConditionEvaluationFault) Unwrap() error {
	return e.Cause
}

// TargetMaterializationError reports an Agent Factory failure.
type TargetMaterializationError struct {
	NodeID string
	Cause  error
}

func (e *TargetMaterializationError) Error() string {
	return fmt.Sprintf("failed to materialize agent '%s': %v", e.NodeID, e.Cause)
}

func (e *TargetMaterializationError) Unwrap() error {
	return e.Cause
}
