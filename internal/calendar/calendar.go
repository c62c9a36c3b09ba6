// Package calendar provides the third-party lookup clients used by the text
// command handlers: the Sefaria calendar API (Daf Yomi) and the Hebcal
// converter API (Hebrew dates).
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// Defaults for the calendar clients.
const (
	// DefaultSefariaBaseURL is the Sefaria API host serving calendar data.
	DefaultSefariaBaseURL = "https://www.sefaria.org.il"
	// DefaultHebcalBaseURL is the Hebcal API host serving date conversions.
	DefaultHebcalBaseURL = "https://www.hebcal.com"
	// DefaultRequestTimeout bounds each lookup call.
	DefaultRequestTimeout = 30 * time.Second
	// DafYomiTitle is the calendar item title for the daily Talmud page.
	DafYomiTitle = "Daf Yomi"
)

// Item is one resolved calendar lookup: a display string plus a reference URL.
type Item struct {
	DisplayText string
	URL         string
}

// Lookup is the capability interface the command handlers depend on.
type Lookup interface {
	DafYomi(ctx context.Context) (Item, error)
	HebrewDate(ctx context.Context, t time.Time) (string, error)
}

// Opts holds configuration options for the calendar client.
type Opts struct {
	SefariaBaseURL string
	HebcalBaseURL  string
	HTTPClient     *http.Client
}

// Option defines a configuration option for the calendar client.
type Option func(*Opts)

// WithSefariaBaseURL overrides the Sefaria host (used in tests).
func WithSefariaBaseURL(base string) Option {
	return func(o *Opts) { o.SefariaBaseURL = base }
}

// WithHebcalBaseURL overrides the Hebcal host (used in tests).
func WithHebcalBaseURL(base string) Option {
	return func(o *Opts) { o.HebcalBaseURL = base }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Compile-time check that Client implements Lookup.
var _ Lookup = (*Client)(nil)

// Client performs calendar lookups over HTTP.
type Client struct {
	sefariaBase string
	hebcalBase  string
	httpClient  *http.Client
}

// NewClient creates a calendar client with the given options.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		SefariaBaseURL: DefaultSefariaBaseURL,
		HebcalBaseURL:  DefaultHebcalBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{
		sefariaBase: strings.TrimSuffix(cfg.SefariaBaseURL, "/"),
		hebcalBase:  strings.TrimSuffix(cfg.HebcalBaseURL, "/"),
		httpClient:  cfg.HTTPClient,
	}
}

// sefariaCalendarResponse mirrors the fields we use from /api/calendars.
type sefariaCalendarResponse struct {
	CalendarItems []struct {
		Title struct {
			En string `json:"en"`
			He string `json:"he"`
		} `json:"title"`
		DisplayValue struct {
			En string `json:"en"`
			He string `json:"he"`
		} `json:"displayValue"`
		URL string `json:"url"`
	} `json:"calendar_items"`
}

// DafYomi fetches today's Daf Yomi from the Sefaria calendar.
// Returns models.ErrItemNotFound when the calendar has no Daf Yomi entry.
func (c *Client) DafYomi(ctx context.Context) (Item, error) {
	endpoint := c.sefariaBase + "/api/calendars"
	var payload sefariaCalendarResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return Item{}, fmt.Errorf("daf yomi lookup: %w", err)
	}

	for _, item := range payload.CalendarItems {
		if item.Title.En != DafYomiTitle {
			continue
		}
		if item.DisplayValue.He == "" || item.URL == "" {
			break
		}
		resolved := Item{
			DisplayText: item.DisplayValue.He,
			URL:         "https://sefaria.org.il/" + item.URL,
		}
		slog.Debug("calendar.DafYomi: resolved", "display", resolved.DisplayText, "url", resolved.URL)
		return resolved, nil
	}
	return Item{}, fmt.Errorf("daf yomi lookup: %w", models.ErrItemNotFound)
}

// hebcalConverterResponse mirrors the fields we use from /converter.
type hebcalConverterResponse struct {
	Hebrew string `json:"hebrew"`
}

// HebrewDate converts a Gregorian date to its Hebrew date string.
func (c *Client) HebrewDate(ctx context.Context, t time.Time) (string, error) {
	q := url.Values{}
	q.Set("cfg", "json")
	q.Set("g2h", "1")
	q.Set("gy", fmt.Sprintf("%d", t.Year()))
	q.Set("gm", fmt.Sprintf("%d", int(t.Month())))
	q.Set("gd", fmt.Sprintf("%d", t.Day()))
	endpoint := c.hebcalBase + "/converter?" + q.Encode()

	var payload hebcalConverterResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", fmt.Errorf("hebrew date lookup: %w", err)
	}
	if payload.Hebrew == "" {
		return "", fmt.Errorf("hebrew date lookup: %w", models.ErrItemNotFound)
	}
	slog.Debug("calendar.HebrewDate: resolved", "hebrew", payload.Hebrew)
	return payload.Hebrew, nil
}

// getJSON performs one GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
