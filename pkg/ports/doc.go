/*
Package ports defines the driven ports (interfaces) of the transition engine.

These interfaces decouple the orchestration core from external implementations, allowing
the engine to work with various configuration sources, agent runtimes and storage backends.

# Key Interfaces

  - ConfigStore: Loads agent and transition definitions for a session scope (e.g., from YAML, Loam or Memory).
  - AgentFactory: Materializes an agent runtime when a transition commits.
  - SnapshotStore: Persists session context snapshots.
  - DistributedLocker: Provides distributed locking for session creation across replicas.
*/
package ports
