// Package gcal implements the reconciler's store contract against the
// Google Calendar API, plus the one-time OAuth bootstrap used by the auth
// command.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/Danialsamadi/farmboy/internal/models"
)

const (
	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

// Client provides the reconciler's store operations backed by the Google
// Calendar API.
type Client struct {
	service *calendar.Service
	logger  *slog.Logger
	loc     *time.Location
}

// NewClient creates an authenticated Google Calendar client. It loads the
// OAuth config from the environment or credentials.json and the token saved
// by the auth command. Any failure here is the run's one hard failure: no
// remote mutation has been attempted yet.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret string, loc *time.Location) (*Client, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token: %w. Please run the 'auth' command first", err)
	}

	httpClient := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service, logger: logger, loc: loc}, nil
}

// ResolveCalendar verifies that the calendar exists and is visible to the
// authenticated account.
func (c *Client) ResolveCalendar(ctx context.Context, calendarID string) (string, error) {
	entry, err := c.service.CalendarList.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up calendar %s: %w", calendarID, err)
	}
	c.logger.Debug("Resolved calendar", "calendarID", entry.Id, "summary", entry.Summary)
	return entry.Id, nil
}

// ListEvents fetches the timed events starting within [timeMin, timeMax).
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]models.Event, error) {
	events, err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}
	return c.toInternalEvents(events.Items), nil
}

// InsertEvent creates the event with an explicit time zone and a single
// 30-minute popup reminder.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event models.Event) (models.Event, error) {
	body := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := c.service.Events.Insert(calendarID, body).Context(ctx).Do()
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to insert event: %w", err)
	}
	event.ID = created.Id
	return event, nil
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// toInternalEvents converts Google Calendar events to the internal Event
// model. All-day events carry no start time and are skipped; shifts are
// always timed.
func (c *Client) toInternalEvents(items []*calendar.Event) []models.Event {
	var events []models.Event
	for _, item := range items {
		if item.Start == nil || item.Start.DateTime == "" || item.End == nil || item.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			c.logger.Warn("Skipping event with unparseable start", "id", item.Id, "error", err)
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			c.logger.Warn("Skipping event with unparseable end", "id", item.Id, "error", err)
			continue
		}
		events = append(events, models.Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Start:       start.In(c.loc),
			End:         end.In(c.loc),
		})
	}
	return events
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config
// for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
// The full calendar scope is required: the reconciler inserts and deletes.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to the default token file.
func SaveToken(token *oauth2.Token) error {
	f, err := os.Create(tokenFile)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
