// Package calendar manages the excluded-dates list used by the news filter:
// a set of local calendar dates on which high-impact economic events make
// bars unusable for the downstream studies. The list can be loaded from a CSV
// file or fetched from an HTML economic calendar. The list is always
// optional; callers skip filtering when it is unavailable.
package calendar

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// dateLayout is the on-disk and in-memory date format.
const dateLayout = "2006-01-02"

// Calendar is a set of excluded dates with their event labels.
type Calendar struct {
	dates map[string]string // date -> label
}

// New creates an empty calendar.
func New() *Calendar {
	return &Calendar{dates: make(map[string]string)}
}

// Add records an excluded date with its label.
func (c *Calendar) Add(date time.Time, label string) {
	c.dates[date.Format(dateLayout)] = label
}

// Excluded reports whether the given timestamp's calendar date (in the
// timestamp's own zone) is on the list, and returns the event label.
func (c *Calendar) Excluded(t time.Time) (string, bool) {
	label, ok := c.dates[t.Format(dateLayout)]
	return label, ok
}

// Len returns the number of excluded dates.
func (c *Calendar) Len() int { return len(c.dates) }

// Dates returns the excluded dates in ascending order.
func (c *Calendar) Dates() []string {
	out := make([]string, 0, len(c.dates))
	for d := range c.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// LoadCSV reads a calendar from a CSV file with a "date,label" header row.
// A missing file is reported via os.IsNotExist on the returned error so the
// caller can degrade to no filtering.
func LoadCSV(path string) (*Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cal, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cal, nil
}

func parseCSV(r io.Reader) (*Calendar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	cal := New()
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}

		dateStr := strings.TrimSpace(record[0])
		if first {
			first = false
			if strings.EqualFold(dateStr, "date") {
				continue // header
			}
		}

		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", dateStr, err)
		}

		label := ""
		if len(record) > 1 {
			label = strings.TrimSpace(record[1])
		}
		cal.Add(date, label)
	}

	return cal, nil
}

// WriteCSV writes the calendar as "date,label" rows with a header.
func (c *Calendar) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "label"}); err != nil {
		return err
	}
	for _, d := range c.Dates() {
		if err := w.Write([]string{d, c.dates[d]}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
