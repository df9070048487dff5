// Package tracking собирает поездку из GPS-точек и сигналов распознавания активности.
package tracking

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Time      time.Time `json:"time"`
	SpeedMps  float64   `json:"speed_mps,omitempty"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
}

// Distance возвращает расстояние по большой окружности в километрах
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func PathDistance(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
