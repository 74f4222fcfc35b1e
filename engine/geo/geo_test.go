package geo

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	cases := []struct {
		name       string
		a, b       Coordinates
		expectedKm float64
	}{
		{
			name:       "central to tsim sha tsui",
			a:          Coordinates{Lat: 22.2819, Lng: 114.1582},
			b:          Coordinates{Lat: 22.2976, Lng: 114.1722},
			expectedKm: 2.24,
		},
		{
			name:       "airport to causeway bay",
			a:          Coordinates{Lat: 22.3080, Lng: 113.9185},
			b:          Coordinates{Lat: 22.2800, Lng: 114.1850},
			expectedKm: 27.6,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.a.Distance(c.b)
			if math.Abs(got-c.expectedKm) > c.expectedKm*0.02 {
				t.Errorf("Distance() = %f km, expected about %f km", got, c.expectedKm)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Coordinates{Lat: 22.3193, Lng: 114.1694}
	b := Coordinates{Lat: 22.3964, Lng: 114.1095}

	if d1, d2 := a.Distance(b), b.Distance(a); d1 != d2 {
		t.Errorf("distance is not symmetric: %f != %f", d1, d2)
	}
}

func TestDistanceToSelfIsZero(t *testing.T) {
	a := Coordinates{Lat: 22.3193, Lng: 114.1694}
	if d := a.Distance(a); d != 0 {
		t.Errorf("distance to self = %f, expected 0", d)
	}
}
