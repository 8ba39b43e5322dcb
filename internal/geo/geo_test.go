package geo_test

import (
	"math"
	"testing"

	"github.com/fernandolim41/picopro-clt/internal/geo"
	"github.com/fernandolim41/picopro-clt/internal/model"
)

var (
	saoPaulo = model.Location{Latitude: -23.5505, Longitude: -46.6333}
	campinas = model.Location{Latitude: -22.9099, Longitude: -47.0626}
	rio      = model.Location{Latitude: -22.9068, Longitude: -43.1729}
)

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	if d := geo.DistanceKm(saoPaulo, saoPaulo); d != 0 {
		t.Errorf("DistanceKm(p, p) = %v, want 0", d)
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	ab := geo.DistanceKm(saoPaulo, rio)
	ba := geo.DistanceKm(rio, saoPaulo)
	if ab != ba {
		t.Errorf("DistanceKm not symmetric: %v vs %v", ab, ba)
	}
	if ab <= 0 {
		t.Errorf("DistanceKm(saoPaulo, rio) = %v, want > 0", ab)
	}
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// São Paulo → Rio de Janeiro is roughly 360 km as the crow flies.
	d := geo.DistanceKm(saoPaulo, rio)
	if d < 350 || d > 370 {
		t.Errorf("DistanceKm(saoPaulo, rio) = %v, want ~360", d)
	}
}

func TestDistanceKm_RoundedToTwoDecimals(t *testing.T) {
	d := geo.DistanceKm(saoPaulo, campinas)
	if got := math.Round(d*100) / 100; got != d {
		t.Errorf("DistanceKm = %v, not rounded to 2 decimals", d)
	}
}

func TestFilterWithinRadius_DropsOutOfRangeAndSorts(t *testing.T) {
	near := model.Worker{ID: "w-near", Location: &model.Location{Latitude: -23.56, Longitude: -46.64}}
	mid := model.Worker{ID: "w-mid", Location: &model.Location{Latitude: -23.60, Longitude: -46.70}}
	far := model.Worker{ID: "w-far", Location: &rio}

	got := geo.FilterWithinRadius(saoPaulo, []model.Worker{far, mid, near}, 15)

	if len(got) != 2 {
		t.Fatalf("got %d workers, want 2 (far one dropped)", len(got))
	}
	if got[0].Entity.ID != "w-near" || got[1].Entity.ID != "w-mid" {
		t.Errorf("order = [%s, %s], want [w-near, w-mid]", got[0].Entity.ID, got[1].Entity.ID)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Errorf("results not sorted ascending by distance: %v > %v", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestFilterWithinRadius_ExcludesNilLocation(t *testing.T) {
	nowhere := model.Worker{ID: "w-nowhere"}
	got := geo.FilterWithinRadius(saoPaulo, []model.Worker{nowhere}, 100)
	if len(got) != 0 {
		t.Errorf("worker without location must be excluded, got %d results", len(got))
	}
}

func TestFilterWithinRadius_BoundaryIsInclusive(t *testing.T) {
	w := model.Worker{ID: "w", Location: &campinas}
	d := geo.DistanceKm(saoPaulo, campinas)

	if got := geo.FilterWithinRadius(saoPaulo, []model.Worker{w}, d); len(got) != 1 {
		t.Errorf("worker exactly at radius must be kept, got %d results", len(got))
	}
	if got := geo.FilterWithinRadius(saoPaulo, []model.Worker{w}, d-0.01); len(got) != 0 {
		t.Errorf("worker just outside radius must be dropped, got %d results", len(got))
	}
}
