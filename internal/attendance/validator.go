package attendance

import "time"

// Check-in window bounds relative to the activity start.
const (
	WindowBefore = 30 * time.Minute
	WindowAfter  = 15 * time.Minute
)

// Decision is the outcome of window validation.
type Decision struct {
	Accept bool
	Status Status // present or late when accepted
	Reason string
}

// Validate decides whether a check-in at now is allowed for an activity
// starting at activityStart. Pure: no I/O, deterministic in its inputs.
// The window is [start-30m, start+15m]; on-time check-ins (now <= start)
// are present, anything after start but inside the window is late.
func Validate(activityStart, now time.Time) Decision {
	earliest := activityStart.Add(-WindowBefore)
	latest := activityStart.Add(WindowAfter)

	if now.Before(earliest) {
		return Decision{Reason: "too early"}
	}
	if now.After(latest) {
		return Decision{Reason: "too late"}
	}
	if now.After(activityStart) {
		return Decision{Accept: true, Status: StatusLate}
	}
	return Decision{Accept: true, Status: StatusPresent}
}
