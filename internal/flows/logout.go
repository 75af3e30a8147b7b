package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	EndSession func(context.Context, string) error
	MetricInc  func(int)
	EmitAudit  func(ctx context.Context, event, username string, success bool, err error, metadata map[string]string)

	LogoutMetric int
	LogoutEvent  string
}

// RunLogout ends sessionID. Ending a session that does not exist succeeds.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, string, bool, error, map[string]string) {}
	}

	if err := deps.EndSession(ctx, sessionID); err != nil {
		deps.EmitAudit(ctx, deps.LogoutEvent, "", false, err, nil)
		return err
	}

	deps.MetricInc(deps.LogoutMetric)
	deps.EmitAudit(ctx, deps.LogoutEvent, "", true, nil, nil)
	return nil
}
