package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultCenter is returned whenever a place cannot be resolved (Washington, DC).
var DefaultCenter = Coordinate{Lat: 38.8977, Lon: -77.0365}

// Valid reports whether both components are finite and inside WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// MarshalJSON renders the coordinate as [lat, lon], the order map clients expect.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON accepts both the [lat, lon] array form and {"lat":..,"lon":..}.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err == nil {
		c.Lat, c.Lon = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	c.Lat, c.Lon = obj.Lat, obj.Lon
	return nil
}

// Centroid returns the unweighted mean of points. It fails on an empty slice
// or when the mean is not a valid coordinate.
func Centroid(points []Coordinate) (Coordinate, error) {
	if len(points) == 0 {
		return Coordinate{}, fmt.Errorf("centroid of zero points")
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	c := Coordinate{Lat: sumLat / n, Lon: sumLon / n}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("centroid %v out of range", c)
	}
	return c, nil
}
