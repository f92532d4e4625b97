package service

import (
	"sort"

	"carrental/pkg/model"
)

// Apply returns the cars of catalog that satisfy every active predicate of
// spec, ordered by spec.SortBy. Ties keep their catalog order. The input slice
// is never modified.
func Apply(catalog []model.Car, spec model.FilterSpec) []model.Car {
	result := make([]model.Car, 0, len(catalog))
	for _, car := range catalog {
		if matches(car, spec) {
			result = append(result, car)
		}
	}

	if spec.SortBy == nil {
		return result
	}

	var less func(a, b model.Car) bool
	switch *spec.SortBy {
	case model.SortPriceAscending:
		less = func(a, b model.Car) bool { return a.PricePerDay < b.PricePerDay }
	case model.SortPriceDescending:
		less = func(a, b model.Car) bool { return a.PricePerDay > b.PricePerDay }
	case model.SortNewestFirst:
		less = func(a, b model.Car) bool { return a.Year > b.Year }
	default:
		return result
	}

	sort.SliceStable(result, func(i, j int) bool {
		return less(result[i], result[j])
	})
	return result
}

func matches(car model.Car, spec model.FilterSpec) bool {
	if spec.Brand != nil && car.Brand != *spec.Brand {
		return false
	}
	if spec.Type != nil && car.Type != *spec.Type {
		return false
	}
	if spec.PriceRange != nil && !spec.PriceRange.Contains(car.PricePerDay) {
		return false
	}
	return true
}
