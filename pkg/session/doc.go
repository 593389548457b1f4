/*
Package session implements the registry of live sessions.

A Manager creates one orchestrator per session, loading the agent graph of the session's
scope from a ports.ConfigStore. Lifecycle operations on the same session ID are serialized
with ref-counted local locks and, when configured, a distributed lock so that replicas
sharing a snapshot store never create the same session twice.
*/
package session
