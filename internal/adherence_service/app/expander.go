package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

var (
	occurrencesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "occurrences_total",
			Help:      "Total occurrences produced by recurrence expansion.",
		},
		[]string{"result"}, // "inserted" or "duplicate"
	)
	expansionDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "adherence",
			Name:      "expansion_duration_seconds",
			Help:      "Duration of one schedule expansion.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// ExpansionSummary reports the outcome of one expansion run.
type ExpansionSummary struct {
	Candidates int `json:"candidates"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// Expander turns a medication schedule into the concrete dose instances the
// user is expected to act on. Re-running expansion for the same schedule is
// a no-op for already-generated occurrences.
type Expander struct {
	schedules domain.ScheduleSource
	records   domain.AdherenceRepository
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewExpander creates a new Expander.
func NewExpander(schedules domain.ScheduleSource, records domain.AdherenceRepository, logger *slog.Logger) *Expander {
	return &Expander{
		schedules: schedules,
		records:   records,
		logger:    logger.With("component", "expander"),
		nowFunc:   time.Now,
	}
}

// ExpandByID loads a schedule and expands it over its full date range.
// A deleted schedule produces no new records.
func (e *Expander) ExpandByID(ctx context.Context, scheduleID uuid.UUID) (ExpansionSummary, error) {
	sched, err := e.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return ExpansionSummary{}, fmt.Errorf("load schedule %s: %w", scheduleID, err)
	}
	return e.ExpandSchedule(ctx, sched)
}

// ExpandSchedule expands a schedule over its full date range.
func (e *Expander) ExpandSchedule(ctx context.Context, sched *domain.MedicationSchedule) (ExpansionSummary, error) {
	return e.expand(ctx, sched, time.Time{})
}

// TopUpActive re-expands every active schedule forward, bounded by the
// given horizon in days. Deduplication makes this safe to run on a cadence.
func (e *Expander) TopUpActive(ctx context.Context, horizonDays int) (ExpansionSummary, error) {
	scheds, err := e.schedules.ListActive(ctx)
	if err != nil {
		return ExpansionSummary{}, fmt.Errorf("list active schedules: %w", err)
	}

	var total ExpansionSummary
	for _, sched := range scheds {
		loc, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			e.logger.ErrorContext(ctx, "Skipping schedule with unknown timezone", "schedule_id", sched.ID, "timezone", sched.Timezone)
			continue
		}
		horizon := localDayStart(e.nowFunc().In(loc), loc).AddDate(0, 0, horizonDays)
		summary, err := e.expand(ctx, sched, horizon)
		if err != nil {
			// One bad schedule must not abort the top-up run.
			e.logger.ErrorContext(ctx, "Top-up expansion failed", "schedule_id", sched.ID, "error", err)
			continue
		}
		total.Candidates += summary.Candidates
		total.Inserted += summary.Inserted
		total.Duplicates += summary.Duplicates
	}
	return total, nil
}

// expand walks local calendar days from the schedule start to its end
// (capped at capEnd when non-zero) and emits one pending record per
// time-of-day slot that is still in the future.
func (e *Expander) expand(ctx context.Context, sched *domain.MedicationSchedule, capEnd time.Time) (ExpansionSummary, error) {
	timer := prometheus.NewTimer(expansionDurationHist)
	defer timer.ObserveDuration()

	if sched.DeletedAt.Valid {
		e.logger.InfoContext(ctx, "Schedule deleted, no records generated", "schedule_id", sched.ID)
		return ExpansionSummary{}, nil
	}
	if sched.StartDate.IsZero() {
		return ExpansionSummary{}, domain.ErrMissingStartDate
	}
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return ExpansionSummary{}, fmt.Errorf("%w: %q", domain.ErrUnknownTimezone, sched.Timezone)
	}

	now := e.nowFunc().UTC()
	today := localDayStart(now.In(loc), loc)

	localStart := localDayStart(sched.StartDate, loc)
	// An omitted end date means a single-day expansion.
	localEnd := localStart
	if sched.EndDate.Valid {
		localEnd = localDayStart(sched.EndDate.Time, loc)
	}
	if !capEnd.IsZero() && capEnd.Before(localEnd) {
		localEnd = capEnd
	}

	var recs []*domain.AdherenceRecord
	for day := localStart; !day.After(localEnd); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			continue // no retroactive generation
		}
		if !sched.RunsOn(day.Weekday()) {
			continue
		}
		for _, tod := range sched.TimesOfDay {
			instant, err := LocalToUTC(day, tod, sched.Timezone)
			if err != nil {
				return ExpansionSummary{}, fmt.Errorf("schedule %s time %q: %w", sched.ID, tod, err)
			}
			if day.Equal(today) && instant.Before(now) {
				continue // already-past slot on the first day
			}
			recs = append(recs, domain.NewAdherenceRecord(uuid.New(), sched.UserID, sched.MedicationID, instant, sched.Timezone))
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].ScheduledAt.Before(recs[j].ScheduledAt) })

	summary := ExpansionSummary{Candidates: len(recs)}
	if len(recs) == 0 {
		return summary, nil
	}

	inserted, err := e.records.BulkCreate(ctx, recs)
	if err != nil {
		return summary, fmt.Errorf("persist occurrences for schedule %s: %w", sched.ID, err)
	}
	summary.Inserted = inserted
	summary.Duplicates = summary.Candidates - inserted

	occurrencesCounter.WithLabelValues("inserted").Add(float64(summary.Inserted))
	occurrencesCounter.WithLabelValues("duplicate").Add(float64(summary.Duplicates))
	e.logger.InfoContext(ctx, "Expansion completed",
		"schedule_id", sched.ID,
		"candidates", summary.Candidates,
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
	)
	return summary, nil
}
