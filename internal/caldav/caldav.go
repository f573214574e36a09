// Package caldav implements the reconciler's store contract against a
// CalDAV server such as iCloud, for users who keep their shift calendar
// there instead of on Google.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/Danialsamadi/farmboy/internal/models"
)

// DefaultEndpoint is the iCloud CalDAV endpoint.
const DefaultEndpoint = "https://caldav.icloud.com/"

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "farmboy/1.0")
	return t.Transport.RoundTrip(req)
}

// Client provides the reconciler's store operations backed by a CalDAV
// server. Calendar ids are calendar display names; ResolveCalendar turns
// them into server paths, and the reconciler's "primary" fallback maps to
// the first calendar in the user's home set.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	loc          *time.Location

	calendars []caldav.Calendar // discovered once, first use
}

// NewClient creates a CalDAV client. endpoint may be empty for iCloud.
// Authentication problems surface on the first request, before any mutation.
func NewClient(logger *slog.Logger, endpoint, username, password string, loc *time.Location) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		loc:          loc,
	}, nil
}

// ResolveCalendar finds the calendar with the given display name and
// returns its server path.
func (c *Client) ResolveCalendar(ctx context.Context, calendarID string) (string, error) {
	calendars, err := c.findCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range calendars {
		if cal.Name == calendarID || cal.Path == calendarID {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name %q", calendarID)
}

// ListEvents issues a time-range REPORT against the calendar collection.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]models.Event, error) {
	calPath, err := c.calendarPath(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			Comps:    []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: timeMin,
				End:   timeMax,
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var events []models.Event
	for _, obj := range objects {
		for _, ve := range obj.Data.Events() {
			ev, err := c.toInternalEvent(obj.Path, ve)
			if err != nil {
				c.logger.Warn("Skipping malformed calendar object", "path", obj.Path, "error", err)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// InsertEvent uploads a new calendar object containing the event and its
// 30-minute display alarm.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event models.Event) (models.Event, error) {
	calPath, err := c.calendarPath(ctx, calendarID)
	if err != nil {
		return models.Event{}, err
	}

	uid := uuid.New().String()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//MyFarmBoy Schedule//EN")
	cal.Children = append(cal.Children, c.toICal(uid, event))

	eventPath := path.Join(calPath, uid+".ics")
	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	defer writer.Close()

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		return models.Event{}, fmt.Errorf("failed to encode event to iCal format: %w", err)
	}

	event.ID = eventPath
	return event, nil
}

// DeleteEvent removes the calendar object at the event's path.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.webdavClient.RemoveAll(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// toICal converts an internal event to a VEVENT component.
func (c *Client) toICal(uid string, event models.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End)
	ve.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, "Work shift reminder")
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetValueType(ical.ValueDuration)
	trigger.Value = "-PT30M"
	alarm.Props.Add(trigger)
	ve.Children = append(ve.Children, alarm)

	return ve
}

// toInternalEvent maps one VEVENT back to the internal model. The object
// path doubles as the event id.
func (c *Client) toInternalEvent(objPath string, ve ical.Event) (models.Event, error) {
	start, err := ve.DateTimeStart(c.loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("bad DTSTART: %w", err)
	}
	end, err := ve.DateTimeEnd(c.loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("bad DTEND: %w", err)
	}
	summary, _ := ve.Props.Text(ical.PropSummary)
	description, _ := ve.Props.Text(ical.PropDescription)
	location, _ := ve.Props.Text(ical.PropLocation)

	return models.Event{
		ID:          objPath,
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start.In(c.loc),
		End:         end.In(c.loc),
	}, nil
}

// calendarPath maps a calendar id from the reconciler to a server path.
// "primary" (the reconciler's fallback) means the first calendar in the
// user's home set; paths pass through unchanged.
func (c *Client) calendarPath(ctx context.Context, calendarID string) (string, error) {
	if calendarID != "" && calendarID != "primary" {
		return calendarID, nil
	}
	calendars, err := c.findCalendars(ctx)
	if err != nil {
		return "", err
	}
	if len(calendars) == 0 {
		return "", fmt.Errorf("no calendars in home set")
	}
	return calendars[0].Path, nil
}

// findCalendars discovers the user's calendars and caches the result for
// the rest of the run.
func (c *Client) findCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	if c.calendars != nil {
		return c.calendars, nil
	}

	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	c.calendars = calendars
	return calendars, nil
}
