// Package rules implements the declarative rule documents used by rule_set transitions.
//
// A document is either a single rule
//
//	{"conditions": {"all": [{"name": "user_input", "operator": "contains", "value": "refund"}]},
//	 "actions": [{"name": "transition_to_agent", "params": {"agent_id": "billing"}}]}
//
// or an ordered list under "rules". Evaluation runs in two phases: Evaluate computes a Result
// without touching the session, and Effects.Apply writes the staged effects back.
package rules
