package tracking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Route - именованный набор опорных точек
type Route struct {
	Name      string
	Waypoints [][2]float64
}

var routes = map[string]Route{
	"chambery-lyon": {
		Name: "Chambéry -> Lyon",
		Waypoints: [][2]float64{
			{45.5646, 5.9178}, {45.5680, 5.8900}, {45.5720, 5.8500}, {45.5780, 5.8000},
			{45.5820, 5.7500}, {45.5850, 5.7000}, {45.5870, 5.6500}, {45.5880, 5.6000},
			{45.5867, 5.5800}, {45.5850, 5.5700}, {45.5830, 5.5600}, {45.5800, 5.5400},
			{45.5780, 5.5200}, {45.5760, 5.5000}, {45.5750, 5.4800}, {45.5760, 5.4600},
			{45.5780, 5.4400}, {45.5800, 5.4200}, {45.5850, 5.4000}, {45.5900, 5.3500},
			{45.6000, 5.3000}, {45.6200, 5.2500}, {45.6500, 5.2000}, {45.6800, 5.1500},
			{45.7100, 5.1000}, {45.7300, 5.0500}, {45.7500, 5.0000}, {45.7600, 4.9000},
			{45.7640, 4.8357},
		},
	},
	"lyon-aix": {
		Name: "Lyon -> Aix-les-Bains",
		Waypoints: [][2]float64{
			{45.7640, 4.8357}, {45.7680, 4.8420}, {45.7720, 4.8580}, {45.7850, 4.8800},
			{45.8100, 4.9200}, {45.8350, 4.9800}, {45.8500, 5.0200}, {45.8600, 5.0800},
			{45.8700, 5.1400}, {45.8800, 5.2000}, {45.8900, 5.2600}, {45.9000, 5.3200},
			{45.9100, 5.3800}, {45.6900, 5.9100}, {45.6950, 5.9150}, {45.6885, 5.9158},
		},
	},
}

// Endpoints возвращает названия начала и конца маршрута
func (r Route) Endpoints() (string, string) {
	from, to, ok := strings.Cut(r.Name, " -> ")
	if !ok {
		return r.Name, r.Name
	}
	return from, to
}

func RouteNames() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupRoute(name string) (Route, error) {
	r, ok := routes[name]
	if !ok {
		return Route{}, fmt.Errorf("unknown route %q", name)
	}
	return r, nil
}

// Simulate раскладывает маршрут на total точек с шагом interval, начиная со start.
// Скорость считается по расстоянию до предыдущей точки.
func Simulate(route Route, total int, interval time.Duration, start time.Time) []Point {
	if total < 2 || len(route.Waypoints) < 2 {
		return nil
	}

	segments := len(route.Waypoints) - 1
	points := make([]Point, 0, total)
	for i := 0; i < total; i++ {
		pos := float64(i) * float64(segments) / float64(total-1)
		seg := int(pos)
		if seg >= segments {
			seg = segments - 1
		}
		frac := pos - float64(seg)

		from, to := route.Waypoints[seg], route.Waypoints[seg+1]
		p := Point{
			Lat:       from[0] + frac*(to[0]-from[0]),
			Lon:       from[1] + frac*(to[1]-from[1]),
			Time:      start.Add(time.Duration(i) * interval),
			AccuracyM: 10,
		}
		if i > 0 && interval > 0 {
			p.SpeedMps = Distance(points[i-1], p) * 1000 / interval.Seconds()
		}
		points = append(points, p)
	}
	return points
}
