// Package schedule parses the free-text date and time strings the employee
// portal renders into precise start/end timestamps.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidFormat is returned (wrapped) when date or time text does not
// match the portal's schedule format. Callers should skip the offending
// record and keep going; a bad record is never fatal to the batch.
var ErrInvalidFormat = errors.New("invalid schedule format")

var (
	// "Monday, Jan 6th" — weekday, month abbreviation, day, optional ordinal suffix.
	dateRe = regexp.MustCompile(`^([A-Za-z]+),\s+([A-Za-z]+)\s+(\d+)(st|nd|rd|th)?`)
	// "9:00 AM to 5:30 PM" — hour without a leading zero is fine.
	timeRe = regexp.MustCompile(`^(\d+):(\d+)\s*([AP]M)\s*to\s*(\d+):(\d+)\s*([AP]M)`)
)

// Month abbreviations are matched exactly; the portal always emits the
// standard three-letter English form.
var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Parse converts a portal date string ("Monday, Jan 6th") and time-range
// string ("9:00 AM to 5:00 PM") into start and end timestamps in loc, using
// year as the reference year. The source data carries no year and no seconds.
//
// Shifts that cross midnight come out of the portal with end before start;
// in that case one calendar day is added to end, so end > start always holds
// on success.
func Parse(dateText, timeText string, year int, loc *time.Location) (start, end time.Time, err error) {
	dm := dateRe.FindStringSubmatch(dateText)
	if dm == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrInvalidFormat, dateText)
	}

	month, ok := months[dm[2]]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid month %q", ErrInvalidFormat, dm[2])
	}
	day, err := strconv.Atoi(dm[3])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid day %q", ErrInvalidFormat, dm[3])
	}

	tm := timeRe.FindStringSubmatch(timeText)
	if tm == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unrecognized time %q", ErrInvalidFormat, timeText)
	}

	startHour, startMin, err := clockFields(tm[1], tm[2], tm[3])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endHour, endMin, err := clockFields(tm[4], tm[5], tm[6])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = time.Date(year, month, day, startHour, startMin, 0, 0, loc)
	end = time.Date(year, month, day, endHour, endMin, 0, 0, loc)

	// time.Date normalizes out-of-range components ("Jan 45" becomes
	// Feb 14); a day that doesn't round-trip was never a real date.
	if start.Day() != day || start.Month() != month {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid day %d for %s", ErrInvalidFormat, day, month)
	}

	// Overnight shift: the end clock time belongs to the next day.
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// clockFields converts a 12-hour clock reading into a 24-hour hour/minute
// pair. Hour 12 with AM means midnight; hour 12 with PM stays 12.
func clockFields(hourStr, minStr, ampm string) (hour, min int, err error) {
	hour, err = strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid hour %q", ErrInvalidFormat, hourStr)
	}
	min, err = strconv.Atoi(minStr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid minute %q", ErrInvalidFormat, minStr)
	}
	switch {
	case ampm == "PM" && hour < 12:
		hour += 12
	case ampm == "AM" && hour == 12:
		hour = 0
	}
	if hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour %s out of range", ErrInvalidFormat, hourStr)
	}
	if min > 59 {
		return 0, 0, fmt.Errorf("%w: minute %s out of range", ErrInvalidFormat, minStr)
	}
	return hour, min, nil
}
