// Package portal drives a headless browser against the Farm Boy employee
// portal and yields raw shift records. It is deliberately thin UI glue: the
// rest of the system only ever sees []models.RawShift and never touches the
// browser.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Danialsamadi/farmboy/internal/models"
)

// Default navigation parameters for the portal.
const (
	DefaultBaseURL    = "https://myfarmboy.ca"
	DefaultTimeoutSec = 60
)

// The portal is a rendered SPA; these selectors track its markup and are
// expected to break whenever the site changes.
const (
	emailSelector    = `#__layout > div > div > form > div > div:nth-child(1) > input`
	passwordSelector = `#__layout > div > div > form > div > div:nth-child(2) > input`
	signInSelector   = `button.w-full.px-6.py-2.mt-4.bg-green-10.rounded-lg`
	cardSelector     = `div.rounded-md.p-3.my-3.bg-gray-50`
)

// extractScript maps every schedule card to its raw field strings. Missing
// fields come back empty; the normalizer substitutes defaults.
const extractScript = `
Array.from(document.querySelectorAll('div.rounded-md.p-3.my-3.bg-gray-50')).map(card => {
	const text = el => el ? el.textContent.trim() : '';
	const heading = (() => {
		let n = card;
		while (n) {
			let p = n.previousElementSibling;
			while (p) {
				if (p.matches('h3.text-lg')) return p;
				const inner = p.querySelector && p.querySelector('h3.text-lg');
				if (inner) return inner;
				p = p.previousElementSibling;
			}
			n = n.parentElement;
		}
		return null;
	})();
	const labelled = label => {
		const d = Array.from(card.querySelectorAll('div')).find(e => e.textContent.includes(label));
		return d ? text(d.querySelector('span.capitalize')) : '';
	};
	return {
		date: text(heading),
		time: text(card.querySelector('div.font-bold')),
		status: text(card.querySelector('div.rounded-sm')),
		role: labelled('Role:'),
		department: labelled('Department:'),
		duration: text(card.querySelector('p.text-xl.font-bold')),
	};
})
`

// rawCard mirrors the objects produced by extractScript.
type rawCard struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Duration   string `json:"duration"`
}

// Options configures a portal session.
type Options struct {
	// BaseURL of the portal; DefaultBaseURL if empty.
	BaseURL string
	// Timeout bounds the whole login-and-scrape sequence.
	Timeout time.Duration
}

// Client scrapes the portal's schedule page.
type Client struct {
	logger *slog.Logger
	opts   Options
}

// NewClient returns a portal client.
func NewClient(logger *slog.Logger, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeoutSec * time.Second
	}
	return &Client{logger: logger, opts: opts}
}

// FetchShifts logs into the portal with the given credentials, opens the
// schedule page, and returns one raw record per rendered shift card.
func (c *Client) FetchShifts(parentCtx context.Context, email, password string) ([]models.RawShift, error) {
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer timeoutCancel()

	c.logger.Info("Logging in to portal", "url", c.opts.BaseURL)
	var currentURL string
	loginTasks := chromedp.Tasks{
		chromedp.Navigate(c.opts.BaseURL + "/login"),
		chromedp.WaitVisible(emailSelector, chromedp.ByQuery),
		chromedp.SendKeys(emailSelector, email, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, password, chromedp.ByQuery),
		chromedp.Click(signInSelector, chromedp.ByQuery),
		// The portal redirects away from /login once the session is up.
		chromedp.Sleep(5 * time.Second),
		chromedp.Location(&currentURL),
	}
	if err := chromedp.Run(ctx, loginTasks); err != nil {
		return nil, fmt.Errorf("portal login failed: %w", err)
	}
	if strings.Contains(currentURL, "/login") {
		return nil, fmt.Errorf("portal login failed: still on login page, check credentials")
	}

	c.logger.Info("Loading schedule page")
	var cards []rawCard
	scrapeTasks := chromedp.Tasks{
		chromedp.Navigate(c.opts.BaseURL + "/schedule"),
		chromedp.WaitVisible(cardSelector, chromedp.ByQuery),
		chromedp.Evaluate(extractScript, &cards),
	}
	if err := chromedp.Run(ctx, scrapeTasks); err != nil {
		return nil, fmt.Errorf("failed to scrape schedule: %w", err)
	}

	shifts := make([]models.RawShift, 0, len(cards))
	for _, card := range cards {
		shifts = append(shifts, models.RawShift{
			Date:       card.Date,
			Time:       card.Time,
			Status:     card.Status,
			Role:       card.Role,
			Department: card.Department,
			Duration:   card.Duration,
		})
	}
	c.logger.Info("Scraped schedule cards", "count", len(shifts))
	return shifts, nil
}
