// Package syncer reconciles canonical shifts against a remote calendar
// store. The store has no notion of the source shift identity, so every run
// re-derives "does this shift already exist" from fresh time-range queries:
// a pre-clean pass removes duplicate clusters left by earlier runs, then
// each shift is inserted only if no approximately-matching event is found.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Danialsamadi/farmboy/internal/models"
	"github.com/Danialsamadi/farmboy/internal/schedule"
)

// Store is the remote calendar surface the reconciler needs. Both the
// Google Calendar and CalDAV adapters implement it. All timestamps crossing
// this boundary are time-zone qualified.
type Store interface {
	// ResolveCalendar checks that calendarID exists and is accessible,
	// returning the id to use for subsequent calls.
	ResolveCalendar(ctx context.Context, calendarID string) (string, error)
	// ListEvents returns the events whose start falls within [timeMin, timeMax).
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]models.Event, error)
	// InsertEvent creates a new event with a 30-minute popup reminder.
	InsertEvent(ctx context.Context, calendarID string, event models.Event) (models.Event, error)
	// DeleteEvent removes an event by its store-assigned id.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// PrimaryCalendar is the fallback target when the configured calendar
// cannot be resolved.
const PrimaryCalendar = "primary"

// summaryMarker identifies events created by this tool. Matching is a plain
// substring test because the store offers nothing stronger.
const summaryMarker = "Work:"

// Options tunes the reconciliation heuristics.
type Options struct {
	// CalendarID is the target calendar; empty means the primary calendar.
	CalendarID string
	// MatchTolerance is the maximum per-endpoint drift for an existing
	// event to still count as the same shift. Defaults to 30 minutes.
	MatchTolerance time.Duration
	// SearchPad widens the per-shift query window on both sides.
	// Defaults to 1 hour.
	SearchPad time.Duration
	// DryRun logs intended mutations without performing them.
	DryRun bool
}

// Result summarizes one reconciliation run.
type Result struct {
	Inserted    int // events newly created
	Skipped     int // shifts already present remotely
	Removed     int // duplicate events deleted by the pre-clean pass
	Failed      int // individual store operations that errored
	Unparseable int // shifts dropped for bad date/time text
	Absent      int // shifts dropped as absences
}

// Success reports whether the run achieved anything: at least one insert or
// one recognized duplicate. A run where every shift was absent or
// unparseable is a failure the caller should surface, not an error.
func (r Result) Success() bool {
	return r.Inserted > 0 || r.Skipped > 0
}

// Syncer reconciles shifts against a Store.
type Syncer struct {
	logger *slog.Logger
	store  Store
	loc    *time.Location
	opts   Options
}

// New creates a Syncer. loc is the zone in which shift text is interpreted.
func New(logger *slog.Logger, store Store, loc *time.Location, opts Options) *Syncer {
	if opts.MatchTolerance <= 0 {
		opts.MatchTolerance = 30 * time.Minute
	}
	if opts.SearchPad <= 0 {
		opts.SearchPad = time.Hour
	}
	return &Syncer{logger: logger, store: store, loc: loc, opts: opts}
}

// Sync runs one full reconciliation: resolve the target calendar, remove
// pre-existing duplicates on the affected days, then insert every shift not
// already present. Individual store failures are logged and counted, never
// fatal; the caller inspects Result.Success for the run outcome.
func (s *Syncer) Sync(ctx context.Context, shifts []models.Shift, year int) Result {
	var res Result

	candidates := s.plan(shifts, year, &res)
	calendarID := s.resolveCalendar(ctx)

	s.preClean(ctx, calendarID, candidates, &res)

	for _, c := range candidates {
		s.upsert(ctx, calendarID, c, &res)
	}

	s.logger.Info("Reconciliation finished",
		"inserted", res.Inserted, "skipped", res.Skipped,
		"removed", res.Removed, "failed", res.Failed,
		"unparseable", res.Unparseable, "absent", res.Absent)
	return res
}

// plan filters and parses the input shifts into insert candidates.
func (s *Syncer) plan(shifts []models.Shift, year int, res *Result) []models.Event {
	var candidates []models.Event
	for _, shift := range shifts {
		if shift.Absent() {
			s.logger.Info("Skipping absent shift", "date", shift.Date)
			res.Absent++
			continue
		}
		start, end, err := schedule.Parse(shift.Date, shift.Time, year, s.loc)
		if err != nil {
			s.logger.Warn("Skipping unparseable shift", "date", shift.Date, "time", shift.Time, "error", err)
			res.Unparseable++
			continue
		}
		candidates = append(candidates, models.Event{
			Summary:     shift.Summary(),
			Description: shift.Description(),
			Location:    models.Location,
			Start:       start,
			End:         end,
		})
	}
	return candidates
}

// resolveCalendar resolves the configured calendar id, falling back to the
// primary calendar on any failure. Resolution problems never abort a run.
func (s *Syncer) resolveCalendar(ctx context.Context) string {
	if s.opts.CalendarID == "" {
		return PrimaryCalendar
	}
	resolved, err := s.store.ResolveCalendar(ctx, s.opts.CalendarID)
	if err != nil {
		s.logger.Warn("Could not access configured calendar, using primary",
			"calendarID", s.opts.CalendarID, "error", err)
		return PrimaryCalendar
	}
	s.logger.Info("Using calendar", "calendarID", resolved)
	return resolved
}

// preClean removes duplicate clusters from every day touched by the
// candidates. Events are grouped by (exact start instant, exact summary);
// the first member of each group survives, the rest are deleted. The pass
// always runs to completion: failures are logged and counted.
func (s *Syncer) preClean(ctx context.Context, calendarID string, candidates []models.Event, res *Result) {
	for _, day := range s.distinctDays(candidates) {
		events, err := s.store.ListEvents(ctx, calendarID, day, day.AddDate(0, 0, 1))
		if err != nil {
			s.logger.Error("Failed to list events for duplicate scan", "day", day, "error", err)
			res.Failed++
			continue
		}

		groups := make(map[string][]models.Event)
		var order []string
		for _, ev := range events {
			key := fmt.Sprintf("%d|%s", ev.Start.Unix(), ev.Summary)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], ev)
		}

		for _, key := range order {
			for _, dup := range groups[key][1:] {
				if s.opts.DryRun {
					s.logger.Info("[DRY RUN] Would delete duplicate event", "summary", dup.Summary, "start", dup.Start)
					res.Removed++
					continue
				}
				if err := s.store.DeleteEvent(ctx, calendarID, dup.ID); err != nil {
					s.logger.Error("Failed to delete duplicate event", "id", dup.ID, "error", err)
					res.Failed++
					continue
				}
				s.logger.Info("Deleted duplicate event", "summary", dup.Summary, "start", dup.Start)
				res.Removed++
			}
		}
	}
}

// distinctDays returns the local midnights of the calendar dates covered by
// the candidates' start times, in chronological order.
func (s *Syncer) distinctDays(candidates []models.Event) []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, c := range candidates {
		y, m, d := c.Start.In(s.loc).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// upsert inserts the candidate unless a matching event already exists.
func (s *Syncer) upsert(ctx context.Context, calendarID string, cand models.Event, res *Result) {
	existing, err := s.store.ListEvents(ctx, calendarID,
		cand.Start.Add(-s.opts.SearchPad), cand.End.Add(s.opts.SearchPad))
	if err != nil {
		s.logger.Error("Failed to search for existing events", "summary", cand.Summary, "error", err)
		res.Failed++
		return
	}

	for _, ev := range existing {
		if s.SameShift(ev, cand) {
			s.logger.Info("Shift already on calendar, skipping", "summary", cand.Summary, "start", cand.Start)
			res.Skipped++
			return
		}
	}

	if s.opts.DryRun {
		s.logger.Info("[DRY RUN] Would insert event", "summary", cand.Summary, "start", cand.Start)
		res.Inserted++
		return
	}

	if _, err := s.store.InsertEvent(ctx, calendarID, cand); err != nil {
		s.logger.Error("Failed to insert event", "summary", cand.Summary, "start", cand.Start, "error", err)
		res.Failed++
		return
	}
	s.logger.Info("Inserted event", "summary", cand.Summary, "start", cand.Start)
	res.Inserted++
}

// SameShift reports whether an existing remote event represents the same
// shift as the candidate. The store has no real key to compare, so identity
// is reconstructed heuristically: the summary must carry the tool's marker,
// the location tag must match exactly, and both endpoints must each lie
// within the match tolerance. An event whose end has drifted past the
// tolerance is treated as a different shift; there is deliberately no
// update path, only insert-or-skip.
func (s *Syncer) SameShift(existing, cand models.Event) bool {
	return strings.Contains(existing.Summary, summaryMarker) &&
		existing.Location == models.Location &&
		absDelta(existing.Start, cand.Start) < s.opts.MatchTolerance &&
		absDelta(existing.End, cand.End) < s.opts.MatchTolerance
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}
