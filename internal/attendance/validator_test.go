package attendance

import (
	"testing"
	"time"
)

var activityStart = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func TestValidateScenario(t *testing.T) {
	cases := []struct {
		name   string
		now    time.Time
		accept bool
		status Status
		reason string
	}{
		{"on time", time.Date(2025, 1, 10, 8, 35, 0, 0, time.UTC), true, StatusPresent, ""},
		{"late", time.Date(2025, 1, 10, 9, 10, 0, 0, time.UTC), true, StatusLate, ""},
		{"too early", time.Date(2025, 1, 10, 8, 29, 0, 0, time.UTC), false, "", "too early"},
		{"too late", time.Date(2025, 1, 10, 9, 16, 0, 0, time.UTC), false, "", "too late"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Validate(activityStart, tc.now)
			if dec.Accept != tc.accept {
				t.Fatalf("Accept = %v, want %v", dec.Accept, tc.accept)
			}
			if dec.Status != tc.status {
				t.Fatalf("Status = %q, want %q", dec.Status, tc.status)
			}
			if dec.Reason != tc.reason {
				t.Fatalf("Reason = %q, want %q", dec.Reason, tc.reason)
			}
		})
	}
}

func TestValidateBoundaries(t *testing.T) {
	earliest := activityStart.Add(-WindowBefore)
	latest := activityStart.Add(WindowAfter)

	// Inclusive bounds.
	if dec := Validate(activityStart, earliest); !dec.Accept || dec.Status != StatusPresent {
		t.Fatalf("at earliest: %+v", dec)
	}
	if dec := Validate(activityStart, latest); !dec.Accept || dec.Status != StatusLate {
		t.Fatalf("at latest: %+v", dec)
	}
	// Exactly at start is still present.
	if dec := Validate(activityStart, activityStart); !dec.Accept || dec.Status != StatusPresent {
		t.Fatalf("at start: %+v", dec)
	}
	// One second outside either bound rejects.
	if dec := Validate(activityStart, earliest.Add(-time.Second)); dec.Accept {
		t.Fatalf("before earliest accepted: %+v", dec)
	}
	if dec := Validate(activityStart, latest.Add(time.Second)); dec.Accept {
		t.Fatalf("after latest accepted: %+v", dec)
	}
}

func TestValidateSweep(t *testing.T) {
	// Walk the window in 1m steps and check the status flips exactly at
	// the activity start.
	for m := -35; m <= 20; m++ {
		now := activityStart.Add(time.Duration(m) * time.Minute)
		dec := Validate(activityStart, now)
		switch {
		case m < -30, m > 15:
			if dec.Accept {
				t.Fatalf("minute %d: accepted outside window", m)
			}
		case m <= 0:
			if !dec.Accept || dec.Status != StatusPresent {
				t.Fatalf("minute %d: %+v, want present", m, dec)
			}
		default:
			if !dec.Accept || dec.Status != StatusLate {
				t.Fatalf("minute %d: %+v, want late", m, dec)
			}
		}
	}
}

func TestValidateStalePastActivity(t *testing.T) {
	// An activity far in the past rejects via the latest bound alone.
	now := activityStart.Add(3 * time.Hour)
	dec := Validate(activityStart, now)
	if dec.Accept || dec.Reason != "too late" {
		t.Fatalf("stale activity: %+v", dec)
	}
}
