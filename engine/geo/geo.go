package geo

import (
	"math"
)

// earthRadiusKm is the mean radius of the Earth, in kilometers
const earthRadiusKm = 6371

// Coordinates represents a WGS-84 position in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// radians converts from degrees to radians
func radians(x float64) float64 {
	return x * math.Pi / 180
}

// Haversine calculates the great-circle distance between 2 points in km
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	// Convert to radians
	lat1 = radians(lat1)
	lng1 = radians(lng1)
	lat2 = radians(lat2)
	lng2 = radians(lng2)

	dlathalf := (lat2 - lat1) / 2
	dlnghalf := (lng2 - lng1) / 2

	a := math.Pow(math.Sin(dlathalf), 2)
	b := math.Pow(math.Sin(dlnghalf), 2)
	c := math.Sqrt(a + (b * math.Cos(lat1) * math.Cos(lat2)))

	return 2 * earthRadiusKm * math.Asin(c)
}

// Distance returns the great-circle distance from c to other in km
func (c Coordinates) Distance(other Coordinates) float64 {
	return Haversine(c.Lat, c.Lng, other.Lat, other.Lng)
}
