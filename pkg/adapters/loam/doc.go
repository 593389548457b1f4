// Package loam adapts a Loam document repository into a ports.ConfigStore.
//
// Each markdown (or JSON/YAML) document describes one agent. The frontmatter carries the
// agent fields and its outgoing transitions; the body becomes the agent instructions:
//
//	---
//	scope: support
//	name: Triage
//	transitions:
//	  - to: billing
//	    kind: user_input
//	    priority: 10
//	    condition:
//	      pattern: invoice
//	---
//	You route customers to the right specialist.
//
// Documents without a scope belong to the scope named after their directory, or to
// DefaultScope at the repository root.
package loam
