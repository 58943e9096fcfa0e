// Package geometry computes geographic properties of field polygons:
// distances, perimeter, area, centroid and bounding box.
//
// Polygons are ordered lists of latitude/longitude vertices. The last vertex
// is implicitly connected back to the first; callers should not repeat it.
// Area uses a local planar approximation scaled by the polygon's mean
// latitude, which holds up well at field scale but is not a geodesic
// calculation.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// earthRadius is the WGS84 mean radius in meters.
const earthRadius = 6371000.0

const (
	sqmPerHectare = 10000.0
	sqmPerAcre    = 4046.86
)

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lon"`
}

// Polygon is an ordered, non-closed vertex list.
type Polygon []Point

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Perimeter returns the polygon's perimeter in meters, closing the ring from
// the last vertex back to the first. Degenerate polygons have perimeter 0.
func (p Polygon) Perimeter() float64 {
	if len(p) < 3 {
		return 0
	}
	var total float64
	for i := range p {
		total += Haversine(p[i], p[(i+1)%len(p)])
	}
	return total
}

// Area returns the polygon's area in square meters using the shoelace
// formula on a local Cartesian projection. Longitudes are scaled by the
// cosine of the mean latitude before projecting.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}

	var avgLat float64
	for _, v := range p {
		avgLat += v.Lat
	}
	avgLat /= float64(len(p))
	cosLat := math.Cos(radians(avgLat))

	var area float64
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		x1 := radians(a.Lng) * cosLat * earthRadius
		y1 := radians(a.Lat) * earthRadius
		x2 := radians(b.Lng) * cosLat * earthRadius
		y2 := radians(b.Lat) * earthRadius
		area += x1*y2 - x2*y1
	}
	return math.Abs(area) / 2
}

// Centroid returns the polygon's geometric center. Degenerate polygons
// (fewer than 3 vertices, or collinear ones with near-zero signed area) fall
// back to the vertex average.
func (p Polygon) Centroid() Point {
	if len(p) == 0 {
		return Point{}
	}
	if len(p) < 3 {
		return p.vertexAverage()
	}

	var signedArea, cx, cy float64
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		cross := a.Lat*b.Lng - b.Lat*a.Lng
		signedArea += cross
		cx += (a.Lat + b.Lat) * cross
		cy += (a.Lng + b.Lng) * cross
	}
	signedArea /= 2

	if math.Abs(signedArea) < 1e-10 {
		return p.vertexAverage()
	}
	return Point{Lat: cx / (6 * signedArea), Lng: cy / (6 * signedArea)}
}

func (p Polygon) vertexAverage() Point {
	var lat, lng float64
	for _, v := range p {
		lat += v.Lat
		lng += v.Lng
	}
	n := float64(len(p))
	return Point{Lat: lat / n, Lng: lng / n}
}

// BoundingBox is an axis-aligned lat/lng extent with its physical size.
type BoundingBox struct {
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`
	MinLng  float64 `json:"min_lon"`
	MaxLng  float64 `json:"max_lon"`
	WidthM  float64 `json:"width_m"`
	HeightM float64 `json:"height_m"`
}

// Bounds returns the polygon's bounding box. Width is measured along the
// box's mid latitude, height along its mid longitude.
func (p Polygon) Bounds() BoundingBox {
	if len(p) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		MinLat: p[0].Lat, MaxLat: p[0].Lat,
		MinLng: p[0].Lng, MaxLng: p[0].Lng,
	}
	for _, v := range p[1:] {
		box.MinLat = math.Min(box.MinLat, v.Lat)
		box.MaxLat = math.Max(box.MaxLat, v.Lat)
		box.MinLng = math.Min(box.MinLng, v.Lng)
		box.MaxLng = math.Max(box.MaxLng, v.Lng)
	}

	midLat := (box.MinLat + box.MaxLat) / 2
	midLng := (box.MinLng + box.MaxLng) / 2
	box.WidthM = Haversine(Point{midLat, box.MinLng}, Point{midLat, box.MaxLng})
	box.HeightM = Haversine(Point{box.MinLat, midLng}, Point{box.MaxLat, midLng})
	return box
}

// Metrics bundles all derived field measurements.
type Metrics struct {
	AreaSqm      float64     `json:"area_sqm"`
	AreaHectares float64     `json:"area_hectares"`
	AreaAcres    float64     `json:"area_acres"`
	PerimeterM   float64     `json:"perimeter_m"`
	Centroid     Point       `json:"centroid"`
	BoundingBox  BoundingBox `json:"bounding_box"`
}

// FieldMetrics computes all measurements for a polygon in one call.
// Degenerate polygons produce zero metrics.
func FieldMetrics(p Polygon) Metrics {
	if len(p) < 3 {
		return Metrics{}
	}
	area := p.Area()
	return Metrics{
		AreaSqm:      round2(area),
		AreaHectares: round4(area / sqmPerHectare),
		AreaAcres:    round4(area / sqmPerAcre),
		PerimeterM:   round2(p.Perimeter()),
		Centroid:     roundPoint(p.Centroid()),
		BoundingBox:  roundBounds(p.Bounds()),
	}
}

// Contains reports whether the point lies inside the polygon, using ray
// casting. Points on an edge may land on either side. Polygons with fewer
// than 3 vertices contain nothing.
func (p Polygon) Contains(pt Point) bool {
	if len(p) < 3 {
		return false
	}

	x, y := pt.Lng, pt.Lat
	inside := false

	a := p[0]
	for i := 1; i <= len(p); i++ {
		b := p[i%len(p)]
		if y > math.Min(a.Lat, b.Lat) && y <= math.Max(a.Lat, b.Lat) && x <= math.Max(a.Lng, b.Lng) {
			if a.Lng == b.Lng || x <= (y-a.Lat)*(b.Lng-a.Lng)/(b.Lat-a.Lat)+a.Lng {
				inside = !inside
			}
		}
		a = b
	}
	return inside
}

// Validate checks that the polygon has at least 3 vertices and that every
// coordinate is within range.
func (p Polygon) Validate() error {
	if len(p) == 0 {
		return errors.New("polygon coordinates cannot be empty")
	}
	if len(p) < 3 {
		return errors.New("polygon must have at least 3 points")
	}
	for i, v := range p {
		if v.Lat < -90 || v.Lat > 90 {
			return fmt.Errorf("vertex %d: latitude %v out of range [-90, 90]", i, v.Lat)
		}
		if v.Lng < -180 || v.Lng > 180 {
			return fmt.Errorf("vertex %d: longitude %v out of range [-180, 180]", i, v.Lng)
		}
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

func roundPoint(p Point) Point {
	return Point{Lat: round6(p.Lat), Lng: round6(p.Lng)}
}

func roundBounds(b BoundingBox) BoundingBox {
	return BoundingBox{
		MinLat:  round6(b.MinLat),
		MaxLat:  round6(b.MaxLat),
		MinLng:  round6(b.MinLng),
		MaxLng:  round6(b.MaxLng),
		WidthM:  round2(b.WidthM),
		HeightM: round2(b.HeightM),
	}
}
