package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/quantworks/workbench/pkg/httputil"
	"github.com/quantworks/workbench/pkg/logger"
)

// Fetcher scrapes an HTML economic calendar into an excluded-dates list.
// The page is expected to carry one row per event with the date and label in
// the first two cells; rows that do not parse are skipped, not fatal.
type Fetcher struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewFetcher creates a calendar fetcher for the given URL.
func NewFetcher(httpClient *httputil.Client, log *logger.Logger, url string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		logger:     log,
		url:        url,
	}
}

// dateFormats are the layouts tried when parsing a row's date cell.
var dateFormats = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"02.01.2006",
	"01/02/2006",
}

// Fetch downloads and parses the calendar page.
func (f *Fetcher) Fetch(ctx context.Context) (*Calendar, error) {
	if f.url == "" {
		return nil, fmt.Errorf("calendar fetch: no URL configured")
	}

	resp, err := f.httpClient.Get(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar fetch: unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: parse HTML: %w", err)
	}

	cal := f.parseDocument(doc)

	f.logger.WithFields(map[string]interface{}{
		"url":   f.url,
		"dates": cal.Len(),
	}).Info("Fetched news calendar")

	return cal, nil
}

// parseDocument walks every table row and keeps the ones whose first cell is
// a date.
func (f *Fetcher) parseDocument(doc *goquery.Document) *Calendar {
	cal := New()

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 1 {
			return
		}

		dateStr := strings.TrimSpace(cells.Eq(0).Text())
		date, ok := parseDate(dateStr)
		if !ok {
			return
		}

		label := ""
		if cells.Length() > 1 {
			label = strings.TrimSpace(cells.Eq(1).Text())
		}
		cal.Add(date, label)
	})

	return cal
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
