// Package ics serializes canonical shifts into a portable iCalendar
// document that any calendar application can import.
package ics

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/Danialsamadi/farmboy/internal/models"
	"github.com/Danialsamadi/farmboy/internal/schedule"
)

const (
	prodID           = "-//MyFarmBoy Schedule//EN"
	alarmTrigger     = "-PT30M" // 30 minutes before start
	alarmDescription = "Work shift reminder"
)

// Emitter writes shift calendars. The zero value is not usable; use NewEmitter.
type Emitter struct {
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time // DTSTAMP clock, swapped in tests
}

// NewEmitter returns an Emitter producing events in the given time zone.
func NewEmitter(logger *slog.Logger, loc *time.Location) *Emitter {
	return &Emitter{logger: logger, loc: loc, now: time.Now}
}

// Write emits one VEVENT per non-absent, parseable shift to w, in input
// order. Absent shifts are dropped silently; shifts whose date or time text
// fails to parse are counted in skipped and the rest of the batch continues.
// Apart from the generated UIDs and DTSTAMP values the output is
// deterministic for a given input.
func (e *Emitter) Write(w io.Writer, shifts []models.Shift, year int) (written, skipped int, err error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	for _, shift := range shifts {
		if shift.Absent() {
			e.logger.Info("Skipping absent shift", "date", shift.Date)
			continue
		}

		start, end, perr := schedule.Parse(shift.Date, shift.Time, year, e.loc)
		if perr != nil {
			e.logger.Warn("Skipping unparseable shift", "date", shift.Date, "time", shift.Time, "error", perr)
			skipped++
			continue
		}

		cal.Children = append(cal.Children, e.toVEvent(shift, start, end))
		written++
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return written, skipped, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return written, skipped, nil
}

// toVEvent builds one VEVENT component, including the 30-minute display alarm.
func (e *Emitter) toVEvent(shift models.Shift, start, end time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uuid.New().String())
	ve.Props.SetDateTime(ical.PropDateTimeStamp, e.now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	ve.Props.SetText(ical.PropSummary, shift.Summary())
	ve.Props.SetText(ical.PropDescription, shift.Description())
	ve.Props.SetText(ical.PropLocation, models.Location)

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, alarmDescription)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetValueType(ical.ValueDuration)
	trigger.Value = alarmTrigger
	alarm.Props.Add(trigger)
	ve.Children = append(ve.Children, alarm)

	return ve
}
