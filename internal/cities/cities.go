// Package cities holds the catalog of Saudi cities offered as preset
// locations, plus nearest-city and region lookups.
package cities

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownCity is returned when an id is not in the catalog.
var ErrUnknownCity = errors.New("unknown city")

const (
	// DefaultID is the city used when no location is supplied.
	DefaultID = "riyadh"

	earthRadiusKm = 6371.0
)

// City is one preset location. AvgDNI is informational; yield always comes
// from the provider.
type City struct {
	ID     string  `json:"id" yaml:"id"`
	NameEn string  `json:"nameEn" yaml:"nameEn"`
	NameAr string  `json:"nameAr" yaml:"nameAr"`
	Lat    float64 `json:"lat" yaml:"lat"`
	Lon    float64 `json:"lon" yaml:"lon"`
	Region string  `json:"region" yaml:"region"`
	AvgDNI float64 `json:"avgDni" yaml:"avgDni"` // kWh/m²/day
}

var catalog = []City{
	{ID: "riyadh", NameEn: "Riyadh", NameAr: "الرياض", Lat: 24.7136, Lon: 46.6753, Region: "Central", AvgDNI: 5.8},
	{ID: "jeddah", NameEn: "Jeddah", NameAr: "جدة", Lat: 21.4858, Lon: 39.1925, Region: "Western", AvgDNI: 5.5},
	{ID: "makkah", NameEn: "Makkah", NameAr: "مكة المكرمة", Lat: 21.3891, Lon: 39.8579, Region: "Western", AvgDNI: 5.6},
	{ID: "madinah", NameEn: "Madinah", NameAr: "المدينة المنورة", Lat: 24.5247, Lon: 39.5692, Region: "Western", AvgDNI: 5.7},
	{ID: "dammam", NameEn: "Dammam", NameAr: "الدمام", Lat: 26.4207, Lon: 50.0888, Region: "Eastern", AvgDNI: 5.4},
	{ID: "khobar", NameEn: "Al-Khobar", NameAr: "الخبر", Lat: 26.2172, Lon: 50.1971, Region: "Eastern", AvgDNI: 5.4},
	{ID: "dhahran", NameEn: "Dhahran", NameAr: "الظهران", Lat: 26.2361, Lon: 50.0393, Region: "Eastern", AvgDNI: 5.5},
	{ID: "taif", NameEn: "Taif", NameAr: "الطائف", Lat: 21.2854, Lon: 40.4158, Region: "Western", AvgDNI: 5.9},
	{ID: "tabuk", NameEn: "Tabuk", NameAr: "تبوك", Lat: 28.3838, Lon: 36.5550, Region: "Northern", AvgDNI: 6.0},
	{ID: "abha", NameEn: "Abha", NameAr: "أبها", Lat: 18.2164, Lon: 42.5053, Region: "Southern", AvgDNI: 5.2},
	{ID: "jizan", NameEn: "Jizan", NameAr: "جيزان", Lat: 16.8892, Lon: 42.5511, Region: "Southern", AvgDNI: 5.1},
	{ID: "najran", NameEn: "Najran", NameAr: "نجران", Lat: 17.4923, Lon: 44.1277, Region: "Southern", AvgDNI: 5.7},
	{ID: "hail", NameEn: "Hail", NameAr: "حائل", Lat: 27.5114, Lon: 41.6931, Region: "Northern", AvgDNI: 5.9},
	{ID: "buraidah", NameEn: "Buraidah", NameAr: "بريدة", Lat: 26.3260, Lon: 43.9750, Region: "Central", AvgDNI: 5.8},
	{ID: "jubail", NameEn: "Al Jubail", NameAr: "الجبيل", Lat: 27.0174, Lon: 49.6580, Region: "Eastern", AvgDNI: 5.4},
	{ID: "yanbu", NameEn: "Yanbu", NameAr: "ينبع", Lat: 24.0899, Lon: 38.0618, Region: "Western", AvgDNI: 5.5},
}

// All returns a copy of the catalog in display order.
func All() []City {
	out := make([]City, len(catalog))
	copy(out, catalog)
	return out
}

// Default returns Riyadh.
func Default() City {
	c, _ := FindByID(DefaultID)
	return c
}

// FindByID looks a city up by id, ignoring case and surrounding spaces.
func FindByID(id string) (City, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range catalog {
		if c.ID == id {
			return c, nil
		}
	}
	return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, id)
}

// FindNearest returns the catalog city with the smallest great-circle
// distance to lat/lon, along with that distance in km. Ties keep the
// earlier catalog entry.
func FindNearest(lat, lon float64) (City, float64) {
	nearest := catalog[0]
	best := DistanceKm(lat, lon, nearest.Lat, nearest.Lon)
	for _, c := range catalog[1:] {
		if d := DistanceKm(lat, lon, c.Lat, c.Lon); d < best {
			nearest, best = c, d
		}
	}
	return nearest, best
}

// DistanceKm is the haversine distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ByRegion groups the catalog by region, keeping catalog order inside each
// group.
func ByRegion() map[string][]City {
	out := make(map[string][]City)
	for _, c := range catalog {
		out[c.Region] = append(out[c.Region], c)
	}
	return out
}

// Regions lists region names in order of first appearance.
func Regions() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range catalog {
		if !seen[c.Region] {
			seen[c.Region] = true
			out = append(out, c.Region)
		}
	}
	return out
}
