package geo

import (
	"math"
	"testing"

	"github.com/Subho98799/nagar/internal/models"
)

func TestDistanceMeters(t *testing.T) {
	a := models.Coordinates{Lat: 18.5074, Lon: 73.8077}
	if d := DistanceMeters(a, a); d != 0 {
		t.Fatalf("distance to self = %f", d)
	}
	// ~0.0003 deg of latitude is ~33 m.
	b := models.Coordinates{Lat: 18.5077, Lon: 73.8077}
	d := DistanceMeters(a, b)
	if math.Abs(d-33.4) > 1 {
		t.Fatalf("distance = %f, want ~33.4", d)
	}
}

func TestResolveCity(t *testing.T) {
	tests := []struct {
		name     string
		city     string
		locality string
		want     string
	}{
		{"explicit city", "Nashik", "College Road", "Nashik"},
		{"sentinel city ignored", "unknown", "Kothrud, Pune", "Pune"},
		{"known city in locality", "", "near pune station", "Pune"},
		{"trailing component", "", "Sector 5, Gurgaon", "Gurgaon"},
		{"short trailing component", "", "Block A, NY", models.UnknownCity},
		{"nothing to go on", "", "", models.UnknownCity},
		{"plain locality", "  ", "Market Yard", models.UnknownCity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCity(tt.city, tt.locality); got != tt.want {
				t.Errorf("ResolveCity(%q, %q) = %q, want %q", tt.city, tt.locality, got, tt.want)
			}
		})
	}
}
