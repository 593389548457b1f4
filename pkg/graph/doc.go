/*
Package graph implements the directed transition graph of agents.

A Graph is built once from the agent and transition definitions of a scope and is
read-only afterwards. Selection order (priority, then insertion order) lives here;
the truth of an individual condition is decided by package condition.
*/
package graph
