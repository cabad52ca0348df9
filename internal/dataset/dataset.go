// Package dataset loads viewing events from files, remote APIs and generators.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/streamdash/internal/model"
)

var (
	// ErrNoData reports that a source could not supply any events.
	ErrNoData = errors.New("no data available")
	// ErrMissingColumn reports a required header column absent from an input.
	ErrMissingColumn = errors.New("missing required column")
)

// LoadStats counts rows seen and dropped while cleaning an input.
type LoadStats struct {
	Read           int
	Kept           int
	DroppedBlank   int
	DroppedInvalid int
}

// Provider supplies a dataset.
type Provider interface {
	Name() string
	Load(ctx context.Context) (model.Dataset, LoadStats, error)
}

var timestampLayouts = []string{
	model.TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	model.DateLayout,
}

// ParseTimestamp accepts the timestamp layouts seen in exported viewership data.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseDuration parses a non-negative number of minutes.
func ParseDuration(value string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("non-finite duration %q", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

type rawRow struct {
	timestamp string
	viewerIP  string
	userID    string
	country   string
	sport     string
	duration  string
	device    string
	channel   string
}

func (r rawRow) fields() []string {
	return []string{r.timestamp, r.viewerIP, r.userID, r.country, r.sport, r.duration, r.device, r.channel}
}

func (r rawRow) hasBlank() bool {
	for _, f := range r.fields() {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}

// clean converts raw rows to events, dropping rows with blank or unparsable fields.
func clean(rows []rawRow) ([]model.Event, LoadStats) {
	stats := LoadStats{Read: len(rows)}
	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		if row.hasBlank() {
			stats.DroppedBlank++
			continue
		}
		ts, err := ParseTimestamp(row.timestamp)
		if err != nil {
			stats.DroppedInvalid++
			continue
		}
		dur, err := ParseDuration(row.duration)
		if err != nil {
			stats.DroppedInvalid++
			continue
		}
		events = append(events, model.Event{
			Timestamp: ts,
			ViewerIP:  strings.TrimSpace(row.viewerIP),
			UserID:    strings.TrimSpace(row.userID),
			Country:   strings.TrimSpace(row.country),
			Sport:     strings.TrimSpace(row.sport),
			Duration:  dur,
			Device:    strings.TrimSpace(row.device),
			Channel:   strings.TrimSpace(row.channel),
		})
	}
	stats.Kept = len(events)
	return events, stats
}
