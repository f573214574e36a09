package models

import "time"

// Event represents a calendar event as seen on a remote store.
// This is an internal representation, independent of any specific calendar
// provider. The ID is whatever handle the store hands back (a Google event
// id, a CalDAV object path); it is only ever discovered by search and never
// persisted across runs.
type Event struct {
	ID          string    // Store-assigned identifier for the event
	Summary     string    // Title of the event
	Description string    // Detailed description of the event
	Location    string    // Location tag of the event
	Start       time.Time // Start time of the event
	End         time.Time // End time of the event
}
