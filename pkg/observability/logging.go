package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
)

// LoggingHooks logs transitions and failed checks.
// Events and quiet checks are logged at Debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(ctx context.Context, sid string, e domain.Event) {
			logger.DebugContext(ctx, "event recorded", "session_id", sid, "type", e.Type, "seq", e.Seq)
		},
		OnTransition: func(ctx context.Context, te *domain.TransitionEvent) {
			logger.InfoContext(ctx, "agent transition",
				"session_id", te.SessionID,
				"from", te.From,
				"to", te.To,
				"edge_id", te.EdgeID,
				"kind", te.Kind,
			)
		},
		OnOutcome: func(ctx context.Context, sid string, o domain.Outcome, d time.Duration) {
			if o.Status == domain.OutcomeError {
				logger.WarnContext(ctx, "transition check failed", "session_id", sid, "reason", o.Reason, "duration", d)
				return
			}
			logger.DebugContext(ctx, "transition check", "session_id", sid, "status", o.Status, "duration", d)
		},
	}
}
