package authz

import "context"

// OutcomeAllowed is the decision outcome recorded when a request is authorized.
// Denials are recorded with their Kind.
const OutcomeAllowed = "allowed"

// MetricsRecorder receives authorization decisions and key refresh outcomes.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordDecision(ctx context.Context, permission, outcome string)
	RecordKeyRefresh(ctx context.Context, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordDecision(context.Context, string, string) {}
func (noopRecorder) RecordKeyRefresh(context.Context, string)       {}
