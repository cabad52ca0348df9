// Package query filters and aggregates viewing-event datasets.
package query

import (
	"sort"

	"github.com/verte-zerg/streamdash/internal/model"
)

var categoricalColumns = map[model.Column]bool{
	model.ColCountry: true,
	model.ColSport:   true,
	model.ColDevice:  true,
	model.ColChannel: true,
}

var groupableColumns = map[model.Column]bool{
	model.ColCountry:  true,
	model.ColSport:    true,
	model.ColDevice:   true,
	model.ColChannel:  true,
	model.ColUserID:   true,
	model.ColViewerIP: true,
	model.ColDate:     true,
}

type predicate func(model.Event) bool

type memberConstraint struct {
	column model.Column
	values []string
}

// Filter returns the events matching every active constraint of spec.
func Filter(ds model.Dataset, spec model.FilterSpec) (model.Dataset, error) {
	preds, err := predicates(ds, spec)
	if err != nil {
		return model.Dataset{}, err
	}
	out := model.Dataset{
		Columns: append([]model.Column(nil), ds.Columns...),
		Events:  make([]model.Event, 0, len(ds.Events)),
	}
	for _, e := range ds.Events {
		if matchAll(preds, e) {
			out.Events = append(out.Events, e)
		}
	}
	return out, nil
}

func predicates(ds model.Dataset, spec model.FilterSpec) ([]predicate, error) {
	var preds []predicate
	if spec.DateRange != nil {
		if !ds.HasColumn(model.ColTimestamp) {
			return nil, missingColumn("filter", model.ColTimestamp)
		}
		r := *spec.DateRange
		preds = append(preds, func(e model.Event) bool {
			return r.Contains(e.Timestamp)
		})
	}
	constraints := []memberConstraint{
		{column: model.ColCountry, values: spec.Countries},
		{column: model.ColSport, values: spec.Sports},
		{column: model.ColDevice, values: spec.Devices},
	}
	for _, c := range constraints {
		if len(c.values) == 0 {
			continue
		}
		if !ds.HasColumn(c.column) {
			return nil, missingColumn("filter", c.column)
		}
		preds = append(preds, memberOf(c.column, c.values))
	}
	return preds, nil
}

func memberOf(column model.Column, values []string) predicate {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return func(e model.Event) bool {
		v, _ := e.Field(column)
		_, ok := allowed[v]
		return ok
	}
}

func matchAll(preds []predicate, e model.Event) bool {
	for _, p := range preds {
		if !p(e) {
			return false
		}
	}
	return true
}

// AggregateBy sums measure per distinct key value, in order of first occurrence.
func AggregateBy(ds model.Dataset, key, measure model.Column) (model.AggregateResult, error) {
	if !ds.HasColumn(key) {
		return model.AggregateResult{}, missingColumn("aggregate", key)
	}
	if !groupableColumns[key] {
		return model.AggregateResult{}, &SchemaError{Op: "aggregate", Column: key, Reason: "cannot be used as a group key"}
	}
	if !ds.HasColumn(measure) {
		return model.AggregateResult{}, missingColumn("aggregate", measure)
	}
	if measure != model.ColDuration {
		return model.AggregateResult{}, &SchemaError{Op: "aggregate", Column: measure, Reason: "is not numeric"}
	}

	result := model.AggregateResult{Key: key, Measure: measure}
	index := make(map[string]int)
	for _, e := range ds.Events {
		k, _ := e.Field(key)
		i, ok := index[k]
		if !ok {
			entry := model.AggregateEntry{Key: k}
			if key == model.ColDate {
				entry.Date = e.Date()
			}
			i = len(result.Entries)
			index[k] = i
			result.Entries = append(result.Entries, entry)
		}
		result.Entries[i].Total += e.Duration
	}
	return result, nil
}

// ValueDomain lists the distinct values of a categorical column, in order of first occurrence.
func ValueDomain(ds model.Dataset, column model.Column) ([]string, error) {
	if !ds.HasColumn(column) {
		return nil, missingColumn("domain", column)
	}
	if !categoricalColumns[column] {
		return nil, &SchemaError{Op: "domain", Column: column, Reason: "is not categorical"}
	}
	seen := make(map[string]struct{})
	var values []string
	for _, e := range ds.Events {
		v, _ := e.Field(column)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}

// SortedByDate returns a copy of a date-keyed result ordered chronologically.
func SortedByDate(r model.AggregateResult) model.AggregateResult {
	out := r
	out.Entries = append([]model.AggregateEntry(nil), r.Entries...)
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Date.Before(out.Entries[j].Date)
	})
	return out
}
