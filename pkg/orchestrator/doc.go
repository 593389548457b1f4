/*
Package orchestrator drives the agent transitions of a single session.

An Orchestrator owns the session context, the transition graph and the current agent
handle. Two sources trigger transition checks: reactive callbacks fired by Submit and a
periodic ticker started by Start. Both go through CheckAndExecuteTransition, which collapses
overlapping calls into one evaluation and runs it under the session lock.

The evaluation is first-match-wins over the current node's outgoing edges, ordered by
priority and then definition order. A matched rule_set edge may request a different target.
Edges pointing back to the current node never transition.
*/
package orchestrator
