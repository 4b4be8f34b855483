// Package geo provides the single planar projection used by the whole
// simulation core. Every distance, direction, and offset in the route
// pipeline goes through the same Web Mercator plane so that parallel
// detection and train speeds stay consistent at any latitude.
package geo

import "math"

const earthRadiusMeters = 6378137 // WGS84 / Web Mercator sphere radius

// LngLat is a geographic coordinate in degrees, longitude first
// (the same ordering GeoJSON and MapLibre use).
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Point is a position or vector in the projected plane, in meters
// at the equator (Mercator units).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project converts a geographic coordinate to Web Mercator meters.
func Project(c LngLat) Point {
	x := earthRadiusMeters * c.Lng * math.Pi / 180
	latRad := c.Lat * math.Pi / 180
	y := earthRadiusMeters * math.Log(math.Tan(math.Pi/4+latRad/2))
	return Point{X: x, Y: y}
}

// Unproject converts Web Mercator meters back to a geographic coordinate.
func Unproject(p Point) LngLat {
	lng := p.X / earthRadiusMeters * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p.Y/earthRadiusMeters)) - math.Pi/2) * 180 / math.Pi
	return LngLat{Lng: lng, Lat: lat}
}

// mercatorScale is the Mercator distortion factor at a latitude.
// Plane distances divided by this factor yield true ground meters.
func mercatorScale(lat float64) float64 {
	return 1 / math.Cos(lat*math.Pi/180)
}

// DistanceMeters returns the ground distance between two coordinates in
// meters. It measures in the projected plane and corrects for the
// Mercator distortion at the midpoint latitude, so it agrees with the
// directions and offsets computed in the same plane (unlike Haversine,
// which disagrees with the projection at high latitudes).
func DistanceMeters(a, b LngLat) float64 {
	pa := Project(a)
	pb := Project(b)
	planeDist := math.Hypot(pb.X-pa.X, pb.Y-pa.Y)
	return planeDist / mercatorScale((a.Lat+b.Lat)/2)
}

// PlaneDistance returns the distance between two coordinates in Mercator
// plane units. Use this for threshold comparisons inside the corridor
// pipeline, which operates entirely in plane space.
func PlaneDistance(a, b LngLat) float64 {
	pa := Project(a)
	pb := Project(b)
	return math.Hypot(pb.X-pa.X, pb.Y-pa.Y)
}

// Direction returns the unit direction vector from a to b in the
// projected plane. Mercator is conformal, so plane directions match
// true bearings. Returns the zero vector for coincident points.
func Direction(a, b LngLat) Point {
	pa := Project(a)
	pb := Project(b)
	return Point{X: pb.X - pa.X, Y: pb.Y - pa.Y}.Normalized()
}

// OffsetBy displaces a coordinate by the given ground distance in meters
// along a plane direction vector. The displacement is scaled up by the
// Mercator factor so the ground distance is preserved.
func OffsetBy(c LngLat, dir Point, meters float64) LngLat {
	p := Project(c)
	scaled := meters * mercatorScale(c.Lat)
	return Unproject(Point{X: p.X + dir.X*scaled, Y: p.Y + dir.Y*scaled})
}

// PlaneOffsetBy displaces a coordinate by a distance in raw Mercator
// plane units. The visual pipeline uses this for lateral line offsets:
// constant plane offsets render at constant pixel spacing on the map,
// regardless of latitude.
func PlaneOffsetBy(c LngLat, dir Point, planeUnits float64) LngLat {
	p := Project(c)
	return Unproject(Point{X: p.X + dir.X*planeUnits, Y: p.Y + dir.Y*planeUnits})
}

// Add returns the vector sum p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns the vector difference p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Length returns the Euclidean length of p.
func (p Point) Length() float64 { return math.Hypot(p.X, p.Y) }

// Normalized returns p scaled to unit length, or the zero vector if p
// has zero length.
func (p Point) Normalized() Point {
	l := p.Length()
	if l == 0 {
		return Point{}
	}
	return Point{p.X / l, p.Y / l}
}

// Perp returns p rotated 90 degrees counterclockwise. For a corridor
// direction this is the axis lateral band offsets are applied along.
func (p Point) Perp() Point { return Point{-p.Y, p.X} }
