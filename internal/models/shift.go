package models

import (
	"fmt"
	"strings"
)

// Default values substituted when the portal omits a field.
const (
	DefaultRole       = "Employee"
	DefaultDepartment = "Unknown"
	DefaultDuration   = "N/A"
	DefaultStatus     = "Active"
)

// Location is the fixed location tag stamped on every shift event. The
// reconciler also uses it to recognize events it created on earlier runs.
const Location = "Farm Boy"

// RawShift holds the free-form field strings extracted from one schedule
// card on the portal. No invariants; a raw shift lives only long enough to
// be normalized.
type RawShift struct {
	Date       string // e.g. "Monday, Jan 6th"
	Time       string // e.g. "9:00 AM to 5:00 PM"
	Status     string
	Role       string
	Department string
	Duration   string
}

// Shift is the canonical, defaulted representation of one scheduled work
// period. It is immutable after Normalize and consumed by both the ICS
// emitter and the remote reconciler.
type Shift struct {
	Date       string
	Time       string
	Status     string
	Role       string
	Department string
	Duration   string
}

// Normalize maps a raw shift into its canonical form, substituting fixed
// defaults for missing fields. It never fails.
func Normalize(raw RawShift) Shift {
	s := Shift{
		Date:       raw.Date,
		Time:       raw.Time,
		Status:     raw.Status,
		Role:       raw.Role,
		Department: raw.Department,
		Duration:   raw.Duration,
	}
	if s.Status == "" {
		s.Status = DefaultStatus
	}
	if s.Role == "" {
		s.Role = DefaultRole
	}
	if s.Department == "" {
		s.Department = DefaultDepartment
	}
	if s.Duration == "" {
		s.Duration = DefaultDuration
	}
	return s
}

// Absent reports whether the shift's status marks it as an absence.
// The check is a case-insensitive substring match so "ABSENT", "Absent
// (approved)" and the like all count.
func (s Shift) Absent() bool {
	return strings.Contains(strings.ToLower(s.Status), "absent")
}

// Summary returns the calendar event title for the shift.
func (s Shift) Summary() string {
	return fmt.Sprintf("Work: %s (%s)", s.Role, s.Department)
}

// Description returns the calendar event body for the shift.
func (s Shift) Description() string {
	return fmt.Sprintf("Role: %s\nDepartment: %s\nDuration: %s", s.Role, s.Department, s.Duration)
}
