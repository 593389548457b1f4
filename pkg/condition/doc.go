// Package condition decides whether a transition edge fires.
//
// Every domain.ConditionKind maps to exactly one Predicate in the evaluator's table.
// Predicates read the session context; only rule_set predicates write to it, and only
// after their rule document matched.
package condition
