// Package geo holds the small amount of geography the lifecycle engines need:
// great-circle distance for proximity checks and best-effort city derivation.
package geo

import (
	"math"
	"strings"

	"github.com/Subho98799/nagar/internal/models"
)

const earthRadiusMeters = 6371000.0

// knownCities are matched as substrings of a locality, case-insensitively.
var knownCities = []string{
	"pune", "mumbai", "nashik", "nagpur", "aurangabad",
	"delhi", "bangalore", "hyderabad", "chennai", "kolkata",
	"ahmedabad", "surat", "jaipur", "lucknow", "kanpur",
	"ranchi", "patna", "bhopal", "indore", "raipur",
}

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b models.Coordinates) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ResolveCity picks the city for a new report. An explicit city wins unless it is
// the sentinel; otherwise the locality is mined for a known city name or a
// trailing "Area, City" component. Coordinates alone cannot yield a city because
// no reverse geocoder is wired in. The result is never empty.
func ResolveCity(city, locality string) string {
	if c := strings.TrimSpace(city); c != "" && !strings.EqualFold(c, models.UnknownCity) {
		return c
	}
	if derived := CityFromLocality(locality); derived != "" {
		return derived
	}
	return models.UnknownCity
}

// CityFromLocality returns the city mentioned in locality, or "".
func CityFromLocality(locality string) string {
	locality = strings.TrimSpace(locality)
	if locality == "" {
		return ""
	}
	lower := strings.ToLower(locality)
	for _, c := range knownCities {
		if strings.Contains(lower, c) {
			return strings.ToUpper(c[:1]) + c[1:]
		}
	}
	if strings.Contains(locality, ",") {
		parts := strings.Split(locality, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		if len(last) > 2 {
			return last
		}
	}
	return ""
}
