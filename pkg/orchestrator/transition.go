package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/handoff/pkg/condition"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/google/uuid"
)

const checkKey = "check"

// CheckAndExecuteTransition evaluates the current node's outgoing edges and commits the
// first one that fires. Overlapping calls share a single evaluation and its outcome,
// unless that evaluation read the session before the caller's last change; the caller
// then evaluates again.
// It never panics and always returns an outcome.
func (o *Orchestrator) CheckAndExecuteTransition(ctx context.Context) domain.Outcome {
	for {
		seen := o.stateVersion()
		var executed bool
		v, _, _ := o.flight.Do(checkKey, func() (any, error) {
			executed = true
			return o.check(ctx), nil
		})
		p := v.(pass)
		// Only the caller that ran the evaluation reports it, after the flight is released,
		// so hooks may trigger further checks.
		if executed {
			o.report(ctx, p)
			return p.outcome
		}
		if p.version >= seen {
			return p.outcome
		}
	}
}

func (o *Orchestrator) stateVersion() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.version
}

// pass collects what must be reported after the lock is released.
type pass struct {
	outcome    domain.Outcome
	transition *domain.TransitionEvent
	faults     []*domain.ConditionEvaluationFault
	retired    ports.AgentHandle
	elapsed    time.Duration
	// version is the state version the pass evaluated.
	version uint64
}

func (o *Orchestrator) check(ctx context.Context) pass {
	start := o.now()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return pass{outcome: domain.Failure(domain.ErrSessionClosed), version: o.version}
	}
	o.phase.Store(int32(PhaseEvaluating))
	version := o.version
	p := o.evaluate(ctx)
	p.version = version
	o.phase.Store(int32(PhaseIdle))
	o.mu.Unlock()

	p.elapsed = o.now().Sub(start)
	return p
}

// evaluate runs one pass. The caller holds o.mu.
func (o *Orchestrator) evaluate(ctx context.Context) pass {
	var p pass
	sc := o.sc
	current := sc.CurrentNodeID

	node, err := o.graph.Node(current)
	if err != nil {
		p.outcome = domain.Failure(err)
		return p
	}

	sc.RequestedNodeID = ""
	defer func() { sc.RequestedNodeID = "" }()
	// Rule effects land in Values during evaluation; a failed commit puts them back.
	values := maps.Clone(sc.Values)

	env := condition.Env{Context: sc, Current: node}
	var selected *domain.TransitionEdge
	for _, edge := range o.graph.OutgoingEdges(current) {
		met, fault := o.evaluator.Evaluate(ctx, edge, env)
		if fault != nil {
			p.faults = append(p.faults, fault)
			continue
		}
		if met {
			selected = &edge
			break
		}
	}
	if selected == nil {
		p.outcome = domain.NoTransition()
		return p
	}

	target := selected.To
	if req := sc.RequestedNodeID; req != "" && req != target {
		o.logger.Debug("rule set retargeted transition", "edge_id", selected.ID, "from", target, "to", req)
		target = req
	}
	if target == current {
		p.outcome = domain.NoTransition()
		return p
	}
	targetNode, err := o.graph.Node(target)
	if err != nil {
		sc.Values = values
		p.outcome = domain.Failure(fmt.Errorf("transition target: %w", err))
		return p
	}

	return o.commit(ctx, *selected, current, targetNode, values, p)
}

// commit moves the session to target. The caller holds o.mu.
// A factory failure restores the node pointers, history and values, and reports an error outcome.
func (o *Orchestrator) commit(ctx context.Context, edge domain.TransitionEdge, from string, target domain.AgentNode, values map[string]any, p pass) pass {
	o.phase.Store(int32(PhaseCommitting))
	sc := o.sc

	prevNode := sc.PreviousNodeID
	history := append([]domain.Event(nil), sc.History...)
	seq, lastTransition := sc.Seq, sc.LastTransitionSeq
	updated := sc.Session.UpdatedAt

	now := o.now()
	sc.PreviousNodeID = from
	sc.CurrentNodeID = target.ID
	marker := sc.AppendEvent(domain.Event{
		ID:        uuid.NewString(),
		Type:      domain.EventCustom,
		Timestamp: now,
		Source:    domain.SourceEngine,
		Data: map[string]any{
			"transition": true,
			"from":       from,
			"to":         target.ID,
			"edge_id":    edge.ID,
			"kind":       string(edge.Kind),
		},
	})
	sc.LastTransitionSeq = marker.Seq

	handle, err := o.factory.Materialize(ctx, target)
	if err != nil {
		sc.CurrentNodeID = from
		sc.PreviousNodeID = prevNode
		sc.History = history
		sc.Seq, sc.LastTransitionSeq = seq, lastTransition
		sc.Session.UpdatedAt = updated
		sc.Values = values

		merr := &domain.TargetMaterializationError{NodeID: target.ID, Cause: err}
		o.logger.Warn("transition rolled back", "from", from, "to", target.ID, "edge_id", edge.ID, "error", merr)
		p.outcome = domain.Failure(merr)
		return p
	}

	p.retired = o.agent
	o.agent = handle
	o.version++
	p.transition = &domain.TransitionEvent{
		SessionID: o.sessionID,
		From:      from,
		To:        target.ID,
		EdgeID:    edge.ID,
		Kind:      edge.Kind,
		Timestamp: now,
	}
	p.outcome = domain.Success(target.ID)
	o.logger.Info("transition committed", "from", from, "to", target.ID, "edge_id", edge.ID, "kind", edge.Kind)
	return p
}

// report runs hooks and releases the retired agent. Called without o.mu.
func (o *Orchestrator) report(ctx context.Context, p pass) {
	for _, f := range p.faults {
		if o.hooks.OnConditionFault != nil {
			o.hooks.OnConditionFault(ctx, o.sessionID, f)
		}
	}
	if p.retired != nil {
		if err := p.retired.Close(ctx); err != nil {
			o.logger.Warn("failed to close previous agent", "agent", p.retired.NodeID(), "error", err)
		}
	}
	if p.transition != nil && o.hooks.OnTransition != nil {
		o.hooks.OnTransition(ctx, p.transition)
	}
	if o.hooks.OnOutcome != nil {
		o.hooks.OnOutcome(ctx, o.sessionID, p.outcome, p.elapsed)
	}
}
