/*
Package handoff is a deterministic decision engine that moves a conversation between AI agents.

It treats a multi-agent application as a graph of agents connected by prioritized, conditional
transitions. Each session owns a mutable fact base fed by events (user messages, tool results,
agent decisions, participant changes). On every check the engine evaluates the outgoing
transitions of the active agent in priority order and, on the first match, asks the host's Agent
Factory to materialize the next agent. A failed materialization rolls the session back.

# Key Features

  - Deterministic selection: the highest-priority matching edge wins; ties keep declaration order.
  - Event-scoped conditions: event triggers only see events recorded since the last transition.
  - Rule sets: declarative conditions with actions that can retarget the transition or stage values.
  - Custom predicates: host code registered by name and referenced from configuration.
  - Pluggable storage: in-memory, file, Loam markdown and Redis adapters.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/handoff"
		"github.com/aretw0/handoff/pkg/domain"
	)

	func main() {
		// Reads support.yaml from ./agents
		eng, err := handoff.New("./agents")
		if err != nil {
			log.Fatal(err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		if _, err := eng.Manager.CreateSession(ctx, "support", "session-123", ""); err != nil {
			log.Fatal(err)
		}

		// User messages trigger a transition check.
		_, err = eng.Manager.Submit(ctx, "session-123", domain.NewEvent(domain.EventUserMessage,
			domain.SourceHost, map[string]any{"message": "I need a refund"}))
		if err != nil {
			log.Fatal(err)
		}
	}
*/
package handoff
