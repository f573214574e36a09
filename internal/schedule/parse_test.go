package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseValid(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	cases := []struct {
		name     string
		dateText string
		timeText string
		start    time.Time
		end      time.Time
	}{
		{
			name:     "plain day shift",
			dateText: "Monday, Jan 6th",
			timeText: "9:00 AM to 5:00 PM",
			start:    time.Date(2025, time.January, 6, 9, 0, 0, 0, loc),
			end:      time.Date(2025, time.January, 6, 17, 0, 0, 0, loc),
		},
		{
			name:     "no ordinal suffix",
			dateText: "Tuesday, Feb 11",
			timeText: "10:30 AM to 6:45 PM",
			start:    time.Date(2025, time.February, 11, 10, 30, 0, 0, loc),
			end:      time.Date(2025, time.February, 11, 18, 45, 0, 0, loc),
		},
		{
			name:     "noon start",
			dateText: "Wednesday, Mar 3rd",
			timeText: "12:00 PM to 8:00 PM",
			start:    time.Date(2025, time.March, 3, 12, 0, 0, 0, loc),
			end:      time.Date(2025, time.March, 3, 20, 0, 0, 0, loc),
		},
		{
			name:     "midnight start",
			dateText: "Thursday, Apr 2nd",
			timeText: "12:15 AM to 8:00 AM",
			start:    time.Date(2025, time.April, 2, 0, 15, 0, 0, loc),
			end:      time.Date(2025, time.April, 2, 8, 0, 0, 0, loc),
		},
		{
			name:     "21st keeps full day number",
			dateText: "Sunday, Dec 21st",
			timeText: "8:00 AM to 4:00 PM",
			start:    time.Date(2025, time.December, 21, 8, 0, 0, 0, loc),
			end:      time.Date(2025, time.December, 21, 16, 0, 0, 0, loc),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			start, end, err := Parse(c.dateText, c.timeText, 2025, loc)
			if err != nil {
				t.Fatalf("Parse(%q, %q) failed: %v", c.dateText, c.timeText, err)
			}
			if !start.Equal(c.start) {
				t.Errorf("start = %v, want %v", start, c.start)
			}
			if !end.Equal(c.end) {
				t.Errorf("end = %v, want %v", end, c.end)
			}
			if !end.After(start) {
				t.Errorf("end %v not after start %v", end, start)
			}
		})
	}
}

func TestParseOvernightRollover(t *testing.T) {
	t.Parallel()

	start, end, err := Parse("Mon, Jan 1st", "11:00 PM to 1:00 AM", 2025, time.UTC)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := end.Sub(start); got != 2*time.Hour {
		t.Errorf("shift length = %v, want 2h", got)
	}
	if end.Day() != start.Day()+1 {
		t.Errorf("end day = %d, want %d", end.Day(), start.Day()+1)
	}
}

func TestParseZeroLengthRollsOver(t *testing.T) {
	t.Parallel()

	// Identical start and end also triggers the one-day rollover.
	start, end, err := Parse("Fri, May 9th", "9:00 AM to 9:00 AM", 2025, time.UTC)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := end.Sub(start); got != 24*time.Hour {
		t.Errorf("end - start = %v, want 24h", got)
	}
}

func TestParseAmPmBoundaries(t *testing.T) {
	t.Parallel()

	start, end, err := Parse("Sat, Jun 7th", "12:00 AM to 12:00 PM", 2025, time.UTC)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if start.Hour() != 0 {
		t.Errorf("12 AM hour = %d, want 0", start.Hour())
	}
	if end.Hour() != 12 {
		t.Errorf("12 PM hour = %d, want 12", end.Hour())
	}
}

func TestParseUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*3600)
	start, _, err := Parse("Monday, Jan 6th", "9:00 AM to 5:00 PM", 2025, loc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if start.Location() != loc {
		t.Errorf("start location = %v, want %v", start.Location(), loc)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		dateText string
		timeText string
	}{
		{"empty date", "", "9:00 AM to 5:00 PM"},
		{"missing comma", "Monday Jan 6th", "9:00 AM to 5:00 PM"},
		{"lowercase month abbrev", "Monday, jan 6th", "9:00 AM to 5:00 PM"},
		{"full month name", "Monday, January 6th", "9:00 AM to 5:00 PM"},
		{"bogus month", "Monday, Foo 6th", "9:00 AM to 5:00 PM"},
		{"empty time", "Monday, Jan 6th", ""},
		{"no minutes", "Monday, Jan 6th", "9 AM to 5 PM"},
		{"24h clock", "Monday, Jan 6th", "09:00 to 17:00"},
		{"missing range", "Monday, Jan 6th", "9:00 AM"},
		{"day past end of month", "Monday, Jan 45th", "9:00 AM to 5:00 PM"},
		{"day zero", "Monday, Jan 0th", "9:00 AM to 5:00 PM"},
		{"february 30th", "Sunday, Feb 30", "9:00 AM to 5:00 PM"},
		{"minute out of range", "Monday, Jan 6th", "9:75 AM to 5:00 PM"},
		{"end minute out of range", "Monday, Jan 6th", "9:00 AM to 5:60 PM"},
		{"hour out of range", "Monday, Jan 6th", "25:00 AM to 5:00 PM"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Parse(c.dateText, c.timeText, 2025, time.UTC)
			if err == nil {
				t.Fatalf("Parse(%q, %q) succeeded, want error", c.dateText, c.timeText)
			}
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("error %v is not ErrInvalidFormat", err)
			}
		})
	}
}
