package attendance

import (
	"errors"
	"time"
)

// Status classifies a participation record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// ActivityStatus classifies a scheduled activity.
type ActivityStatus string

const (
	ActivityScheduled ActivityStatus = "scheduled"
	ActivityOngoing   ActivityStatus = "ongoing"
	ActivityCompleted ActivityStatus = "completed"
	ActivityCancelled ActivityStatus = "cancelled"
)

// ScheduledActivity is a scheduled occurrence participants may attend.
// Created by the scheduling collaborator; read-only here.
type ScheduledActivity struct {
	ID        string
	UnitID    string
	StartsAt  time.Time
	EndsAt    time.Time
	Location  string
	Status    ActivityStatus
	CreatedAt time.Time
}

// RecordedBy distinguishes self check-ins from reviewer-entered records.
type RecordedBy string

const (
	RecordedBySelf     RecordedBy = "self"
	RecordedByReviewer RecordedBy = "reviewer"
)

// ParticipationRecord is the attendance fact for one participant at one
// activity. At most one record exists per (activity, participant) pair;
// the store's uniqueness constraint is what enforces this under races.
type ParticipationRecord struct {
	ID            string
	ActivityID    string
	ParticipantID string
	Status        Status
	CheckedInAt   *time.Time // nil for reviewer-marked absent/excused
	RecordedBy    RecordedBy
	Notes         string
	CreatedAt     time.Time
}

// Participant is a person who may attend activities in a unit.
type Participant struct {
	ID     string
	UnitID string
	Name   string
}

// Unit is an organizational unit owning activities and participants.
type Unit struct {
	ID   string
	Name string
}

// Domain errors. All but ErrConflict are safe to show to callers verbatim;
// ErrConflict is a store-layer signal the service converts to ErrDuplicate.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already checked in")
	ErrWindowNotOpen = errors.New("check-in window not open yet")
	ErrWindowClosed  = errors.New("check-in window closed")
	ErrInvalidRange  = errors.New("start date after end date")
	ErrConflict      = errors.New("record already exists")
)
