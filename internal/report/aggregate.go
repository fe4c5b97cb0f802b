package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"attendtrack/internal/attendance"
)

// ScopeKind selects what an aggregation call covers.
type ScopeKind string

const (
	ScopeSelf ScopeKind = "self" // one participant
	ScopeUnit ScopeKind = "unit" // participants of specific units
	ScopeAll  ScopeKind = "all"  // every unit, system-wide
)

// Scope is the caller's allowed aggregation coverage, supplied by the
// scope resolver. Never constructed from request input directly.
type Scope struct {
	Kind          ScopeKind
	UnitIDs       []string // unit and self scope
	ParticipantID string   // self scope only
}

// DateRange is an inclusive calendar-date range.
type DateRange struct {
	Start time.Time // midnight UTC of the first day
	End   time.Time // midnight UTC of the last day
}

// NewDateRange parses YYYY-MM-DD bounds and validates ordering.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start date: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end date: %w", err)
	}
	if s.After(e) {
		return DateRange{}, attendance.ErrInvalidRange
	}
	return DateRange{Start: s, End: e}, nil
}

// Bounds returns the instant range covering every day inclusively.
func (r DateRange) Bounds() (from, to time.Time) {
	return r.Start, r.End.Add(24*time.Hour - time.Nanosecond)
}

// AggregatedStat is one computed row of a report. Regenerated per call;
// never persisted.
type AggregatedStat struct {
	ScopeKind ScopeKind `json:"scope_kind"`
	ScopeID   string    `json:"scope_id"`
	Label     string    `json:"label"`
	Total     int       `json:"total_activities"`
	Present   int       `json:"present"`
	Absent    int       `json:"absent"`
	Late      int       `json:"late"`
	Excused   int       `json:"excused"`
	Rate      float64   `json:"rate"`
}

// Rate computes the attendance rate over a given activity total, as a
// percentage rounded to one decimal. Zero total yields zero, never a
// division.
func Rate(present, late, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(present+late)/float64(total)*1000) / 10
}

// Aggregator turns raw participation records into per-scope statistics.
// All record access goes through three bulk store calls per Aggregate;
// grouping happens in memory so no per-participant round trips occur.
type Aggregator struct {
	store attendance.Store
}

// NewAggregator creates an aggregator over a store.
func NewAggregator(store attendance.Store) *Aggregator {
	return &Aggregator{store: store}
}

// ResolveUnits returns the unit ids a scope covers: the participant's own
// unit for self scope, the listed units for unit scope, nil (all) for
// system-wide. Used for both activity filtering and cache indexing.
func (a *Aggregator) ResolveUnits(ctx context.Context, scope Scope) ([]string, error) {
	switch scope.Kind {
	case ScopeSelf:
		p, err := a.store.GetParticipant(ctx, scope.ParticipantID)
		if err != nil {
			return nil, err
		}
		return []string{p.UnitID}, nil
	case ScopeUnit:
		if len(scope.UnitIDs) == 0 {
			return nil, fmt.Errorf("unit scope without units")
		}
		return scope.UnitIDs, nil
	case ScopeAll:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
}

type counts struct {
	present, absent, late, excused int
}

func (c *counts) add(status attendance.Status) {
	switch status {
	case attendance.StatusPresent:
		c.present++
	case attendance.StatusAbsent:
		c.absent++
	case attendance.StatusLate:
		c.late++
	case attendance.StatusExcused:
		c.excused++
	}
}

// Aggregate computes stats for the scope over the range: per participant
// for self and unit scopes, per unit for the system-wide scope. Totals
// count resolved activities, not records, so missing records lower the
// rate instead of disappearing. Read-only; honours ctx cancellation
// through the store calls.
func (a *Aggregator) Aggregate(ctx context.Context, scope Scope, dr DateRange) ([]AggregatedStat, error) {
	if dr.Start.After(dr.End) {
		return nil, attendance.ErrInvalidRange
	}
	unitIDs, err := a.ResolveUnits(ctx, scope)
	if err != nil {
		return nil, err
	}

	from, to := dr.Bounds()
	activities, err := a.store.ListActivities(ctx, unitIDs, from, to)
	if err != nil {
		return nil, err
	}

	activityIDs := make([]string, 0, len(activities))
	activityUnit := make(map[string]string, len(activities))
	perUnitTotal := make(map[string]int)
	for _, act := range activities {
		activityIDs = append(activityIDs, act.ID)
		activityUnit[act.ID] = act.UnitID
		perUnitTotal[act.UnitID]++
	}

	records, err := a.store.BulkFetchRecords(ctx, activityIDs)
	if err != nil {
		return nil, err
	}

	if scope.Kind == ScopeAll {
		return a.aggregateByUnit(ctx, activityUnit, perUnitTotal, records)
	}
	return a.aggregateByParticipant(ctx, scope, unitIDs, perUnitTotal, records)
}

func (a *Aggregator) aggregateByParticipant(ctx context.Context, scope Scope, unitIDs []string, perUnitTotal map[string]int, records []attendance.ParticipationRecord) ([]AggregatedStat, error) {
	participants, err := a.store.ListParticipants(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	if scope.Kind == ScopeSelf {
		kept := participants[:0]
		for _, p := range participants {
			if p.ID == scope.ParticipantID {
				kept = append(kept, p)
			}
		}
		participants = kept
	}

	grouped := make(map[string]*counts, len(participants))
	for _, p := range participants {
		grouped[p.ID] = &counts{}
	}
	for _, rec := range records {
		if c, ok := grouped[rec.ParticipantID]; ok {
			c.add(rec.Status)
		}
	}

	stats := make([]AggregatedStat, 0, len(participants))
	for _, p := range participants {
		c := grouped[p.ID]
		total := perUnitTotal[p.UnitID]
		stats = append(stats, AggregatedStat{
			ScopeKind: scope.Kind,
			ScopeID:   p.ID,
			Label:     p.Name,
			Total:     total,
			Present:   c.present,
			Absent:    c.absent,
			Late:      c.late,
			Excused:   c.excused,
			Rate:      Rate(c.present, c.late, total),
		})
	}
	sortStats(stats)
	return stats, nil
}

func (a *Aggregator) aggregateByUnit(ctx context.Context, activityUnit map[string]string, perUnitTotal map[string]int, records []attendance.ParticipationRecord) ([]AggregatedStat, error) {
	units, err := a.store.ListUnits(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]*counts, len(units))
	for _, u := range units {
		grouped[u.ID] = &counts{}
	}
	for _, rec := range records {
		unitID, ok := activityUnit[rec.ActivityID]
		if !ok {
			continue
		}
		if c, ok := grouped[unitID]; ok {
			c.add(rec.Status)
		}
	}

	stats := make([]AggregatedStat, 0, len(units))
	for _, u := range units {
		c := grouped[u.ID]
		total := perUnitTotal[u.ID]
		stats = append(stats, AggregatedStat{
			ScopeKind: ScopeAll,
			ScopeID:   u.ID,
			Label:     u.Name,
			Total:     total,
			Present:   c.present,
			Absent:    c.absent,
			Late:      c.late,
			Excused:   c.excused,
			Rate:      Rate(c.present, c.late, total),
		})
	}
	sortStats(stats)
	return stats, nil
}

// sortStats orders by descending rate, ties broken by ascending label so
// results are deterministic regardless of record order.
func sortStats(stats []AggregatedStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Rate != stats[j].Rate {
			return stats[i].Rate > stats[j].Rate
		}
		return stats[i].Label < stats[j].Label
	})
}
