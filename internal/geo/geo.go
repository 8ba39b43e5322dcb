// Package geo computes great-circle distances and proximity filtering over
// located entities. Everything here is a pure function: no I/O, no clock.
package geo

import (
	"math"
	"sort"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between a and b in
// kilometres, rounded to 2 decimal places.
func DistanceKm(a, b model.Location) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(earthRadiusKm*c*100) / 100
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// Located is any entity that exposes its coordinates. A nil result means the
// entity has no known position and is excluded from proximity filtering.
type Located interface {
	Loc() *model.Location
}

// Within pairs an entity with its computed distance from a filter center.
type Within[T Located] struct {
	Entity     T
	DistanceKm float64
}

// FilterWithinRadius attaches the distance from center to every candidate,
// drops candidates with no location or outside radiusKm, and returns the
// rest stable-sorted by ascending distance.
func FilterWithinRadius[T Located](center model.Location, candidates []T, radiusKm float64) []Within[T] {
	within := make([]Within[T], 0, len(candidates))
	for _, c := range candidates {
		loc := c.Loc()
		if loc == nil {
			continue
		}
		d := DistanceKm(center, *loc)
		if d > radiusKm {
			continue
		}
		within = append(within, Within[T]{Entity: c, DistanceKm: d})
	}

	sort.SliceStable(within, func(i, j int) bool {
		return within[i].DistanceKm < within[j].DistanceKm
	})
	return within
}
