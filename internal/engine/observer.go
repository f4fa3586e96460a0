package engine

// Observer receives notifications about scheduling events that are
// interesting to instrumentation but play no role in the scheduling
// decision itself. Wired to pkg/metrics in production. A nil Observer is
// valid; every call site checks before invoking it.
type Observer interface {
	OnActivate(entityID string)
	OnDeactivate(entityID string)
	OnForcedIdleClassPick()
	OnBackshiftCorrection()
	OnChargeTimeInflation()
	OnWeightBoundsViolation()
}

// SetObserver installs obs as the engine's event sink, replacing any
// previous observer. Pass nil to disable notifications.
func (e *Engine) SetObserver(obs Observer) { e.observer = obs }
