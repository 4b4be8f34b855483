package routegeom

import (
	"math"
	"testing"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// testOrigin is in central Barcelona; all geometry tests build their
// coordinates relative to it in plane meters.
var testOrigin = geo.LngLat{Lng: 2.170302, Lat: 41.3896}

// planePoint returns the coordinate at a plane offset from testOrigin.
func planePoint(x, y float64) geo.LngLat {
	p := geo.Project(testOrigin)
	return geo.Unproject(geo.Point{X: p.X + x, Y: p.Y + y})
}

func TestSchematicPathCardinalStraight(t *testing.T) {
	cases := []struct {
		name string
		dx   float64
		dy   float64
	}{
		{"east", 800, 0},
		{"west", -800, 0},
		{"north", 0, 650},
		{"south", 0, -650},
		{"east slightly off axis", 800, 4},
		{"north slightly off axis", -3, 650},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := SchematicPath(testOrigin, planePoint(c.dx, c.dy), 10)
			if len(path) != 2 {
				t.Fatalf("got %d points, want 2", len(path))
			}
		})
	}
}

func TestSchematicPathDiagonalStraight(t *testing.T) {
	for _, d := range []struct{ dx, dy float64 }{
		{500, 500}, {500, -500}, {-500, 500}, {-500, -500}, {500, 495},
	} {
		path := SchematicPath(testOrigin, planePoint(d.dx, d.dy), 10)
		if len(path) != 2 {
			t.Errorf("delta (%f,%f): got %d points, want 2", d.dx, d.dy, len(path))
		}
	}
}

func TestSchematicPathDogleg(t *testing.T) {
	path := SchematicPath(testOrigin, planePoint(800, 300), 10)
	if len(path) != 3 {
		t.Fatalf("got %d points, want 3", len(path))
	}

	a := geo.Project(path[0])
	corner := geo.Project(path[1])
	b := geo.Project(path[2])

	// First leg is the diagonal.
	if classifySegment(a, corner, 1) != segDiagonal {
		t.Errorf("first leg not diagonal: corner delta (%f,%f)", corner.X-a.X, corner.Y-a.Y)
	}
	// Final leg must be exactly horizontal after corner snapping, not
	// merely within tolerance: the corner inherits the target's Y.
	if math.Abs(corner.Y-b.Y) > 1e-6 {
		t.Errorf("final leg skewed: corner.Y=%f target.Y=%f", corner.Y, b.Y)
	}
}

func TestSchematicPathDoglegVerticalFinal(t *testing.T) {
	path := SchematicPath(testOrigin, planePoint(300, 800), 10)
	if len(path) != 3 {
		t.Fatalf("got %d points, want 3", len(path))
	}
	corner := geo.Project(path[1])
	b := geo.Project(path[2])
	if math.Abs(corner.X-b.X) > 1e-6 {
		t.Errorf("final leg skewed: corner.X=%f target.X=%f", corner.X, b.X)
	}
}

// TestSchematicPathFinalHeadingsClean sweeps a grid of targets and
// checks the property that every emitted segment lies on a clean metro
// angle.
func TestSchematicPathFinalHeadingsClean(t *testing.T) {
	for dx := -900.0; dx <= 900; dx += 300 {
		for dy := -900.0; dy <= 900; dy += 300 {
			if dx == 0 && dy == 0 {
				continue
			}
			path := SchematicPath(testOrigin, planePoint(dx, dy), 10)
			for i := 1; i < len(path); i++ {
				a := geo.Project(path[i-1])
				b := geo.Project(path[i])
				if classifySegment(a, b, 1e-3) == segSkewed {
					t.Errorf("delta (%f,%f) leg %d is skewed", dx, dy, i)
				}
			}
		}
	}
}

func TestRoutePolylineSharesJoints(t *testing.T) {
	stations := []geo.LngLat{
		testOrigin,
		planePoint(800, 300), // dogleg leg (3 points)
		planePoint(1600, 300), // straight leg (2 points)
	}
	line := RoutePolyline(stations, 10)
	// 3 + 2 with the two joints merged = 4 points.
	if len(line) != 4 {
		t.Fatalf("got %d points, want 4", len(line))
	}
	if line[0] != stations[0] || line[len(line)-1] != stations[2] {
		t.Error("polyline endpoints do not match station endpoints")
	}
}

func TestRoutePolylineDegenerate(t *testing.T) {
	if RoutePolyline(nil, 10) != nil {
		t.Error("nil stations should yield nil polyline")
	}
	if RoutePolyline([]geo.LngLat{testOrigin}, 10) != nil {
		t.Error("single station should yield nil polyline")
	}
}
