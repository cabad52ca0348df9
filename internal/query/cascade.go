package query

import (
	"slices"

	"github.com/verte-zerg/streamdash/internal/model"
)

// Domains holds the picker options available under the current selections.
type Domains struct {
	Countries []string
	Sports    []string
	Devices   []string
}

// CascadeDomains computes picker options where each list only offers values
// reachable under the selections made upstream of it: date, then country, then sport.
func CascadeDomains(ds model.Dataset, spec model.FilterSpec) (Domains, error) {
	dated, err := Filter(ds, model.FilterSpec{DateRange: spec.DateRange})
	if err != nil {
		return Domains{}, err
	}
	countries, err := ValueDomain(dated, model.ColCountry)
	if err != nil {
		return Domains{}, err
	}
	byCountry, err := Filter(dated, model.FilterSpec{Countries: spec.Countries})
	if err != nil {
		return Domains{}, err
	}
	sports, err := ValueDomain(byCountry, model.ColSport)
	if err != nil {
		return Domains{}, err
	}
	bySport, err := Filter(byCountry, model.FilterSpec{Sports: spec.Sports})
	if err != nil {
		return Domains{}, err
	}
	devices, err := ValueDomain(bySport, model.ColDevice)
	if err != nil {
		return Domains{}, err
	}
	return Domains{Countries: countries, Sports: sports, Devices: devices}, nil
}

// Prune drops selections that are no longer offered by d.
func (d Domains) Prune(spec model.FilterSpec) model.FilterSpec {
	spec.Countries = intersect(spec.Countries, d.Countries)
	spec.Sports = intersect(spec.Sports, d.Sports)
	spec.Devices = intersect(spec.Devices, d.Devices)
	return spec
}

func intersect(selected, allowed []string) []string {
	if len(selected) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range selected {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Resolve prunes spec against its cascaded domains until the selections are
// consistent, returning the pruned spec and the final domains. An inverted
// date range matches nothing, so selections are returned untouched and come
// back into effect once the range is corrected.
func Resolve(ds model.Dataset, spec model.FilterSpec) (model.FilterSpec, Domains, error) {
	if spec.DateRange != nil && spec.DateRange.Inverted() {
		d, err := CascadeDomains(ds, spec)
		return spec, d, err
	}
	for i := 0; i < 3; i++ {
		d, err := CascadeDomains(ds, spec)
		if err != nil {
			return spec, Domains{}, err
		}
		pruned := d.Prune(spec)
		if sameSelections(pruned, spec) {
			return pruned, d, nil
		}
		spec = pruned
	}
	d, err := CascadeDomains(ds, spec)
	return spec, d, err
}

func sameSelections(a, b model.FilterSpec) bool {
	return slices.Equal(a.Countries, b.Countries) &&
		slices.Equal(a.Sports, b.Sports) &&
		slices.Equal(a.Devices, b.Devices)
}
