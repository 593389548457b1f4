/*
Package dsl provides a fluent builder for assembling transition graphs in Go code.

It is the programmatic alternative to loading agents and transitions from a configuration
store, which makes it convenient for tests, examples and embedded deployments.

Example usage:

	g, err := dsl.New().
		Agent("triage").Named("Triage").
		Instructions("Route the user to the right specialist.").
		OnUserInput("billing", "billing", 10).
		OnDecision("escalate", true, "human", 20).
		Agent("billing").Named("Billing").Tools("lookup_invoice").
		Agent("human").Named("Human").
		Build()
*/
package dsl
