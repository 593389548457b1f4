/*
Package domain contains the core domain models of the Handoff transition engine.

It defines the fundamental entities of the agent graph and of a running session,
such as Agent Nodes, Transition Edges, Events and the Session Context. This package
is kept pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - AgentNode: A vertex of the graph, materialized into a live agent by the host.
  - TransitionEdge: A prioritized, conditional move from one agent to another.
  - Event: An immutable fact delivered by the transport or emitted by the engine.
  - SessionContext: The mutable per-session fact base read by conditions.
  - Outcome: The result of a single transition check.
*/
package domain
