package charts

import (
	"fmt"
	"io"

	"github.com/verte-zerg/streamdash/internal/model"
	"github.com/verte-zerg/streamdash/internal/query"
)

// SummaryRowLimit is the number of rows shown in the summary table.
const SummaryRowLimit = 15

// SummaryColumns are the columns shown in the summary table.
var SummaryColumns = []model.Column{
	model.ColTimestamp,
	model.ColCountry,
	model.ColSport,
	model.ColDevice,
	model.ColChannel,
}

// Summary holds headline metrics of a dataset.
type Summary struct {
	Events    int
	Minutes   float64
	Users     int
	Countries int
}

// Report contains precomputed aggregates for one filter selection.
type Report struct {
	Spec      model.FilterSpec
	Dataset   model.Dataset
	Summary   Summary
	BySport   model.AggregateResult
	ByCountry model.AggregateResult
	ByChannel model.AggregateResult
	ByDevice  model.AggregateResult
	Timeline  model.AggregateResult
}

// RenderOptions controls report rendering.
type RenderOptions struct {
	Width      int
	PlotHeight int
	Color      bool
}

// BuildReport filters ds by spec and computes every chart aggregate.
func BuildReport(ds model.Dataset, spec model.FilterSpec) (Report, error) {
	filtered, err := query.Filter(ds, spec)
	if err != nil {
		return Report{}, err
	}
	r := Report{Spec: spec, Dataset: filtered, Summary: Summarize(filtered)}
	targets := []struct {
		key model.Column
		dst *model.AggregateResult
	}{
		{model.ColSport, &r.BySport},
		{model.ColCountry, &r.ByCountry},
		{model.ColChannel, &r.ByChannel},
		{model.ColDevice, &r.ByDevice},
		{model.ColDate, &r.Timeline},
	}
	for _, t := range targets {
		agg, err := query.AggregateBy(filtered, t.key, model.ColDuration)
		if err != nil {
			return Report{}, err
		}
		*t.dst = agg
	}
	r.Timeline = query.SortedByDate(r.Timeline)
	return r, nil
}

// Summarize computes headline metrics.
func Summarize(ds model.Dataset) Summary {
	users := make(map[string]struct{})
	countries := make(map[string]struct{})
	s := Summary{Events: ds.Len()}
	for _, e := range ds.Events {
		s.Minutes += e.Duration
		users[e.UserID] = struct{}{}
		countries[e.Country] = struct{}{}
	}
	s.Users = len(users)
	s.Countries = len(countries)
	return s
}

// SummaryRows returns the first limit rows projected onto SummaryColumns.
func SummaryRows(ds model.Dataset, limit int) [][]string {
	n := ds.Len()
	if limit > 0 && n > limit {
		n = limit
	}
	rows := make([][]string, 0, n)
	for _, e := range ds.Events[:n] {
		row := make([]string, len(SummaryColumns))
		for i, c := range SummaryColumns {
			row[i], _ = e.Field(c)
		}
		rows = append(rows, row)
	}
	return rows
}

// TimelineValues returns the per-date totals in chronological order.
func (r Report) TimelineValues() []float64 {
	values := make([]float64, len(r.Timeline.Entries))
	for i, e := range r.Timeline.Entries {
		values[i] = e.Total
	}
	return values
}

// RenderReport writes every chart and the summary table.
func RenderReport(w io.Writer, r Report, opts RenderOptions) error {
	width := opts.Width
	if width <= 0 {
		width = TerminalWidth()
	}
	s := r.Summary
	if _, err := fmt.Fprintf(w, "Events: %d  Minutes viewed: %s  Viewers: %d  Countries: %d\n\n",
		s.Events, FormatNumber(s.Minutes), s.Users, s.Countries); err != nil {
		return err
	}
	if s.Events == 0 {
		_, err := fmt.Fprintln(w, "No events match the current filters.")
		return err
	}
	if err := RenderBars(w, "Views Per Sport", BarsFromAggregate(r.BySport), width, opts.Color); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := RenderShares(w, "Views Per Country", BarsFromAggregate(r.ByCountry), width, opts.Color); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := RenderTimeline(w, "Time Series Analysis", r.Timeline, width, PlotOptions{Height: opts.PlotHeight, Color: opts.Color}); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := RenderShares(w, "Views Per Channel", BarsFromAggregate(r.ByChannel), width, opts.Color); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := RenderShares(w, "Views Per Device", BarsFromAggregate(r.ByDevice), width, opts.Color); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return RenderSummaryTable(w, r.Dataset)
}

// RenderSummaryTable writes the first rows of the dataset as an aligned table.
func RenderSummaryTable(w io.Writer, ds model.Dataset) error {
	if _, err := fmt.Fprintln(w, "Summary Table"); err != nil {
		return err
	}
	headers := make([]string, len(SummaryColumns))
	for i, c := range SummaryColumns {
		headers[i] = string(c)
	}
	for _, line := range FormatTable(headers, SummaryRows(ds, SummaryRowLimit), nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTimeline plots per-date totals, sizing the plot so the value axis fits within width.
func RenderTimeline(w io.Writer, title string, timeline model.AggregateResult, width int, opts PlotOptions) error {
	return PlotLine(w, title, PointsFromAggregate(timeline), withAxisWidth(opts, width, timeline))
}

func withAxisWidth(opts PlotOptions, totalWidth int, timeline model.AggregateResult) PlotOptions {
	values := make([]float64, len(timeline.Entries))
	for i, e := range timeline.Entries {
		values[i] = e.Total
	}
	lo, hi := valueBounds(values)
	axisWidth := 0
	for _, l := range axisLabels(lo, hi, max(opts.Height, 3)) {
		axisWidth = max(axisWidth, len(l))
	}
	opts.Width = PlotWidthFor(totalWidth, axisWidth)
	return opts
}
