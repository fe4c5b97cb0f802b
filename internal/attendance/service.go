package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendtrack/internal/clock"
)

// Invalidator drops cached report entries whose scope covers a unit.
// Satisfied by the report cache; nil disables invalidation.
type Invalidator interface {
	InvalidateUnit(unitID string)
}

// Service coordinates window validation, duplicate defense, and record
// writes for check-ins.
type Service struct {
	store Store
	clock clock.Clock
	inval Invalidator
}

// NewService creates a check-in service. inval may be nil.
func NewService(store Store, clk clock.Clock, inval Invalidator) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{store: store, clock: clk, inval: inval}
}

// CheckInResult reports a successful check-in.
type CheckInResult struct {
	Record ParticipationRecord
	UnitID string
}

// CheckIn records attendance for a participant at an activity.
//
// The FindRecord read is only a fast path: two callers can both pass it
// for the same pair. The store's uniqueness constraint is the actual
// safety net; its conflict is converted to ErrDuplicate so every losing
// caller sees the same outcome as a straight repeat call.
func (s *Service) CheckIn(ctx context.Context, activityID, participantID string) (CheckInResult, error) {
	if activityID == "" || participantID == "" {
		return CheckInResult{}, errors.New("activity and participant required")
	}

	act, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return CheckInResult{}, err
	}
	if _, err := s.store.GetParticipant(ctx, participantID); err != nil {
		return CheckInResult{}, err
	}

	existing, err := s.store.FindRecord(ctx, activityID, participantID)
	if err != nil {
		return CheckInResult{}, err
	}
	if existing != nil {
		return CheckInResult{}, ErrDuplicate
	}

	now := s.clock.Now()
	dec := Validate(act.StartsAt, now)
	if !dec.Accept {
		if dec.Reason == "too early" {
			return CheckInResult{}, ErrWindowNotOpen
		}
		return CheckInResult{}, ErrWindowClosed
	}

	checkedIn := now
	rec := ParticipationRecord{
		ID:            uuid.NewString(),
		ActivityID:    activityID,
		ParticipantID: participantID,
		Status:        dec.Status,
		CheckedInAt:   &checkedIn,
		RecordedBy:    RecordedBySelf,
	}
	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// A concurrent caller won between FindRecord and InsertRecord.
			return CheckInResult{}, ErrDuplicate
		}
		return CheckInResult{}, fmt.Errorf("insert record: %w", err)
	}

	if s.inval != nil {
		s.inval.InvalidateUnit(act.UnitID)
	}
	return CheckInResult{Record: inserted, UnitID: act.UnitID}, nil
}

// MarkAbsent lets a reviewer record an absent or excused participant with
// no check-in instant. Uniqueness is handled like CheckIn.
func (s *Service) MarkAbsent(ctx context.Context, activityID, participantID string, status Status, notes string) (CheckInResult, error) {
	if status != StatusAbsent && status != StatusExcused {
		return CheckInResult{}, fmt.Errorf("status %q not allowed for reviewer marking", status)
	}

	act, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return CheckInResult{}, err
	}
	if _, err := s.store.GetParticipant(ctx, participantID); err != nil {
		return CheckInResult{}, err
	}
	existing, err := s.store.FindRecord(ctx, activityID, participantID)
	if err != nil {
		return CheckInResult{}, err
	}
	if existing != nil {
		return CheckInResult{}, ErrDuplicate
	}

	rec := ParticipationRecord{
		ID:            uuid.NewString(),
		ActivityID:    activityID,
		ParticipantID: participantID,
		Status:        status,
		RecordedBy:    RecordedByReviewer,
		Notes:         notes,
	}
	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return CheckInResult{}, ErrDuplicate
		}
		return CheckInResult{}, fmt.Errorf("insert record: %w", err)
	}

	if s.inval != nil {
		s.inval.InvalidateUnit(act.UnitID)
	}
	return CheckInResult{Record: inserted, UnitID: act.UnitID}, nil
}

// Override applies a reviewer edit to an existing record's status and
// notes, then invalidates cached reports for the owning unit.
func (s *Service) Override(ctx context.Context, recordID string, status Status, notes string) (ParticipationRecord, error) {
	switch status {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
	default:
		return ParticipationRecord{}, fmt.Errorf("unknown status %q", status)
	}

	updated, err := s.store.UpdateRecord(ctx, recordID, status, notes)
	if err != nil {
		return ParticipationRecord{}, err
	}
	if s.inval != nil {
		if act, err := s.store.GetActivity(ctx, updated.ActivityID); err == nil {
			s.inval.InvalidateUnit(act.UnitID)
		}
	}
	return updated, nil
}

// Window returns the check-in window for an activity start, handy for
// surfacing "opens at" hints to clients.
func Window(activityStart time.Time) (earliest, latest time.Time) {
	return activityStart.Add(-WindowBefore), activityStart.Add(WindowAfter)
}
