// Package model defines shared data structures.
package model

import (
	"strconv"
	"time"
)

// Column names a field of the viewing-event schema.
type Column string

// Schema columns as they appear in the CSV header.
const (
	ColTimestamp Column = "Timestamp"
	ColViewerIP  Column = "Viewer IPs"
	ColUserID    Column = "User ID"
	ColCountry   Column = "Country"
	ColSport     Column = "Sport"
	ColDuration  Column = "Duration"
	ColDevice    Column = "Device"
	ColChannel   Column = "Channel"
)

// ColDate is derived from ColTimestamp and is never part of a file header.
const ColDate Column = "date"

// EventColumns is the full schema in export order.
var EventColumns = []Column{
	ColTimestamp,
	ColViewerIP,
	ColUserID,
	ColCountry,
	ColSport,
	ColDuration,
	ColDevice,
	ColChannel,
}

// DateLayout is the calendar date format used in filters and exports.
const DateLayout = "2006-01-02"

// TimestampLayout is the canonical timestamp format used in exports.
const TimestampLayout = "2006-01-02 15:04:05"

// Event is one viewing session.
type Event struct {
	Timestamp time.Time
	ViewerIP  string
	UserID    string
	Country   string
	Sport     string
	Duration  float64
	Device    string
	Channel   string
}

// Date returns the calendar date of the event.
func (e Event) Date() time.Time {
	return DateOf(e.Timestamp)
}

// Field returns the string form of a column value.
func (e Event) Field(c Column) (string, bool) {
	switch c {
	case ColTimestamp:
		return e.Timestamp.Format(TimestampLayout), true
	case ColViewerIP:
		return e.ViewerIP, true
	case ColUserID:
		return e.UserID, true
	case ColCountry:
		return e.Country, true
	case ColSport:
		return e.Sport, true
	case ColDuration:
		return strconv.FormatFloat(e.Duration, 'f', -1, 64), true
	case ColDevice:
		return e.Device, true
	case ColChannel:
		return e.Channel, true
	case ColDate:
		return e.Date().Format(DateLayout), true
	default:
		return "", false
	}
}

// Dataset is an ordered collection of events with its schema.
type Dataset struct {
	Columns []Column
	Events  []Event
}

// NewDataset builds a dataset carrying the full event schema.
func NewDataset(events []Event) Dataset {
	return Dataset{
		Columns: append([]Column(nil), EventColumns...),
		Events:  events,
	}
}

// Len returns the number of events.
func (d Dataset) Len() int {
	return len(d.Events)
}

// HasColumn reports whether the schema carries c. ColDate is present whenever ColTimestamp is.
func (d Dataset) HasColumn(c Column) bool {
	if c == ColDate {
		c = ColTimestamp
	}
	for _, col := range d.Columns {
		if col == c {
			return true
		}
	}
	return false
}

// DateBounds returns the first and last calendar dates in the dataset.
func (d Dataset) DateBounds() (time.Time, time.Time, bool) {
	if len(d.Events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	minDate := d.Events[0].Date()
	maxDate := minDate
	for _, e := range d.Events[1:] {
		day := e.Date()
		if day.Before(minDate) {
			minDate = day
		}
		if day.After(maxDate) {
			maxDate = day
		}
	}
	return minDate, maxDate, true
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(DateOf(r.Start)) && !day.After(DateOf(r.End))
}

// Inverted reports whether Start falls after End.
func (r DateRange) Inverted() bool {
	return DateOf(r.Start).After(DateOf(r.End))
}

// FilterSpec holds the user's selections. Empty lists mean no restriction.
type FilterSpec struct {
	DateRange *DateRange `json:"date_range,omitempty"`
	Countries []string   `json:"countries,omitempty"`
	Sports    []string   `json:"sports,omitempty"`
	Devices   []string   `json:"devices,omitempty"`
}

// IsEmpty reports whether no constraint is active.
func (f FilterSpec) IsEmpty() bool {
	return f.DateRange == nil && len(f.Countries) == 0 && len(f.Sports) == 0 && len(f.Devices) == 0
}

// AggregateEntry is one group of an aggregation.
type AggregateEntry struct {
	Key   string
	Date  time.Time
	Total float64
}

// AggregateResult is a group-by-sum over a dataset, in first-occurrence order.
type AggregateResult struct {
	Key     Column
	Measure Column
	Entries []AggregateEntry
}

// Total returns the sum of all entry totals.
func (r AggregateResult) Total() float64 {
	var sum float64
	for _, e := range r.Entries {
		sum += e.Total
	}
	return sum
}

// Settings is the resolved runtime configuration.
type Settings struct {
	Source    SourceSettings
	Filter    FilterSpec
	ExportDir string `validate:"required"`
	DBPath    string `validate:"required"`
	LogLevel  string `validate:"oneof=trace debug info warn error disabled"`
	LogFormat string `validate:"oneof=console json"`
}

// SourceSettings selects and configures the dataset provider.
type SourceSettings struct {
	Kind        string        `validate:"oneof=csv api store generate"`
	Path        string        `validate:"required_if=Kind csv"`
	Encoding    string        `validate:"oneof=utf-8 latin1"`
	APIEndpoint string        `validate:"required_if=Kind api"`
	APIKey      string        `validate:"-"`
	APITimeout  time.Duration `validate:"gte=0"`
	APIDelay    time.Duration `validate:"gte=0"`
	Fallback    string        `validate:"oneof=none generate"`
	Rows        int           `validate:"gte=1"`
	Seed        int64
	Dataset     string `validate:"required"`
}

// ExportRecord describes one written export file.
type ExportRecord struct {
	ID        string
	RunID     string
	Kind      string
	Path      string
	Rows      int
	Filter    string
	CreatedAt time.Time
}
