package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/Danialsamadi/farmboy/internal/caldav"
	"github.com/Danialsamadi/farmboy/internal/gcal"
	"github.com/Danialsamadi/farmboy/internal/ics"
	"github.com/Danialsamadi/farmboy/internal/models"
	"github.com/Danialsamadi/farmboy/internal/portal"
	"github.com/Danialsamadi/farmboy/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "farmboy",
		Usage: "Sync the Farm Boy work schedule to a calendar.",
		Commands: []*cli.Command{
			authCommand(),
			exportCommand(),
			syncCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			config, err := gcal.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := gcal.TokenFromWeb(config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := gcal.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.")
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Scrape the schedule and write it to an ICS file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "schedule.ics", Usage: "Output ICS file path."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			loc, err := loadTimezone()
			if err != nil {
				return err
			}

			shifts, err := fetchShifts(c.Context, logger)
			if err != nil {
				return err
			}

			year := time.Now().In(loc).Year()
			if err := writeICS(logger, loc, c.String("out"), shifts, year); err != nil {
				return err
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Scrape the schedule and reconcile it with the remote calendar.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would change without touching the calendar."},
			&cli.StringFlag{Name: "backend", Value: "google", Usage: "Remote calendar backend: google or caldav."},
			&cli.StringFlag{Name: "ics", Usage: "Also write the schedule to this ICS file."},
			&cli.StringFlag{Name: "cron", Usage: "Run on a cron schedule (e.g. \"0 7 * * *\") instead of once."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			loc, err := loadTimezone()
			if err != nil {
				return err
			}

			store, calendarID, err := newStore(c.Context, logger, c.String("backend"), loc)
			if err != nil {
				return fmt.Errorf("failed to create calendar store: %w", err)
			}

			s := syncer.New(logger, store, loc, syncer.Options{
				CalendarID: calendarID,
				DryRun:     c.Bool("dry-run"),
			})

			runOnce := func(ctx context.Context) error {
				shifts, err := fetchShifts(ctx, logger)
				if err != nil {
					return err
				}

				year := time.Now().In(loc).Year()
				if out := c.String("ics"); out != "" {
					if err := writeICS(logger, loc, out, shifts, year); err != nil {
						logger.Error("ICS export failed", "error", err)
					}
				}

				res := s.Sync(ctx, shifts, year)
				if !res.Success() {
					return fmt.Errorf("nothing synced: %d unparseable, %d absent, %d failed",
						res.Unparseable, res.Absent, res.Failed)
				}
				return nil
			}

			if spec := c.String("cron"); spec != "" {
				logger.Info("Starting scheduled sync.", "cron", spec)
				sched := cron.New()
				if _, err := sched.AddFunc(spec, func() {
					if err := runOnce(c.Context); err != nil {
						logger.Error("Sync cycle failed", "error", err)
					}
				}); err != nil {
					return fmt.Errorf("invalid cron spec %q: %w", spec, err)
				}
				sched.Run()
				return nil
			}

			logger.Info("Running a single sync cycle.")
			return runOnce(c.Context)
		},
	}
}

// fetchShifts drives the portal collaborator and normalizes what it finds.
func fetchShifts(ctx context.Context, logger *slog.Logger) ([]models.Shift, error) {
	email := os.Getenv("FARMBOY_EMAIL")
	password := os.Getenv("FARMBOY_PASSWORD")
	if email == "" || password == "" {
		return nil, fmt.Errorf("FARMBOY_EMAIL or FARMBOY_PASSWORD not set")
	}

	p := portal.NewClient(logger, portal.Options{BaseURL: os.Getenv("FARMBOY_BASE_URL")})
	raws, err := p.FetchShifts(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("no schedule data found")
	}

	shifts := make([]models.Shift, 0, len(raws))
	for _, raw := range raws {
		shifts = append(shifts, models.Normalize(raw))
	}
	return shifts, nil
}

// newStore builds the remote calendar store for the chosen backend and
// returns it with the configured target calendar id.
func newStore(ctx context.Context, logger *slog.Logger, backend string, loc *time.Location) (syncer.Store, string, error) {
	switch backend {
	case "google":
		client, err := gcal.NewClient(ctx, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), loc)
		if err != nil {
			return nil, "", err
		}
		return client, os.Getenv("GOOGLE_CALENDAR_ID"), nil
	case "caldav":
		client, err := caldav.NewClient(logger, os.Getenv("CALDAV_ENDPOINT"),
			os.Getenv("ICLOUD_USERNAME"), os.Getenv("ICLOUD_APP_SPECIFIC_PASSWORD"), loc)
		if err != nil {
			return nil, "", err
		}
		return client, os.Getenv("ICLOUD_CALENDAR_NAME"), nil
	default:
		return nil, "", fmt.Errorf("unknown backend %q", backend)
	}
}

func writeICS(logger *slog.Logger, loc *time.Location, path string, shifts []models.Shift, year int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	written, skipped, err := ics.NewEmitter(logger, loc).Write(f, shifts, year)
	if err != nil {
		return err
	}
	logger.Info("ICS file created", "file", path, "events", written, "skipped", skipped)
	return nil
}

func loadTimezone() (*time.Location, error) {
	tzStr := os.Getenv("PRIMARY_TIMEZONE")
	if tzStr == "" {
		tzStr = "America/Toronto"
	}
	loc, err := time.LoadLocation(tzStr)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", tzStr, err)
	}
	return loc, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
