package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/geo"
	"github.com/cioddi/metromesh-sub000/internal/metrics"
	"github.com/cioddi/metromesh-sub000/internal/routegeom"
)

// lineColors is the palette cycled through as routes are created.
var lineColors = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#9a6324",
}

// Engine is the owning controller for one running game. Every mutation
// goes through its methods under one mutex; there is no package-level
// state. The two geometry snapshots are published through atomic
// pointers so the render/feed side reads them without taking the
// simulation lock.
type Engine struct {
	mu  sync.Mutex
	cfg *config.Config
	rng *rand.Rand

	city   string
	center geo.LngLat

	stations    []*Station
	routes      []*Route
	trains      []*Train
	stationByID map[string]*Station

	tick      int64
	score     int
	gameSpeed float64
	gameOver  bool
	result    *Result
	delivered int

	// per-train tick of the previous arrival, for leg duration stats
	lastArrivalTick map[string]int64
	stats           metrics.RunStats

	movement atomic.Pointer[routegeom.MovementNetwork]
	visual   atomic.Pointer[routegeom.VisualNetwork]
}

// New creates an engine for a city centered at the given coordinate.
func New(cfg *config.Config, city string, center geo.LngLat, seed int64) *Engine {
	e := &Engine{
		cfg:             cfg,
		rng:             rand.New(rand.NewSource(seed)),
		city:            city,
		center:          center,
		stationByID:     make(map[string]*Station),
		gameSpeed:       cfg.GameSpeed,
		lastArrivalTick: make(map[string]int64),
	}
	e.rebuildNetworksLocked()
	return e
}

func (e *Engine) geomParams() routegeom.Params {
	return routegeom.Params{
		AlignmentTolerance: e.cfg.AlignmentTolerance,
		SampleDistance:     e.cfg.SampleDistance,
		FineCellSize:       e.cfg.FineCellSize,
		CoarseCellSize:     e.cfg.CoarseCellSize,
		StraightSpacing:    e.cfg.StraightSpacing,
		DiagonalSpacing:    e.cfg.DiagonalSpacing,
		AttachmentRadii:    e.cfg.AttachmentRadii,
		Tiers:              routegeom.DefaultTiers(),
	}
}

// rebuildNetworksLocked recomputes both geometry snapshots wholesale
// and swaps them in. Called whenever stations or routes change; the
// caller holds e.mu.
func (e *Engine) rebuildNetworksLocked() {
	attachStations := make([]routegeom.AttachmentStation, len(e.stations))
	for i, st := range e.stations {
		attachStations[i] = routegeom.AttachmentStation{ID: st.ID, Position: st.Position}
	}
	paths := make([]routegeom.RoutePath, 0, len(e.routes))
	for _, r := range e.routes {
		rp := routegeom.RoutePath{RouteID: r.ID}
		ok := true
		for _, sid := range r.StationIDs {
			st, found := e.stationByID[sid]
			if !found {
				// Route references a removed station: leave it out of
				// this rebuild rather than failing the whole network.
				ok = false
				break
			}
			rp.StationIDs = append(rp.StationIDs, sid)
			rp.Stations = append(rp.Stations, st.Position)
		}
		if ok {
			paths = append(paths, rp)
		}
	}

	p := e.geomParams()
	e.movement.Store(routegeom.BuildMovementNetwork(paths, p))
	e.visual.Store(routegeom.BuildVisualNetwork(attachStations, paths, p))
}

// MovementNetwork returns the current physics geometry snapshot.
func (e *Engine) MovementNetwork() *routegeom.MovementNetwork {
	return e.movement.Load()
}

// VisualNetwork returns the current render geometry snapshot.
func (e *Engine) VisualNetwork() *routegeom.VisualNetwork {
	return e.visual.Load()
}

// AddStation places a station at an explicit position.
func (e *Engine) AddStation(pos geo.LngLat) *Station {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addStationLocked(pos)
}

// AddRandomStation places a station at a spawned position obeying the
// distance constraints. It fails loudly if no valid position exists
// within the attempt budget, since that means the spawn bounds are
// misconfigured.
func (e *Engine) AddRandomStation() (*Station, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing := make([]geo.LngLat, len(e.stations))
	for i, st := range e.stations {
		existing[i] = st.Position
	}
	pos, err := RandomStationPosition(e.rng, e.center, existing, e.cfg)
	if err != nil {
		return nil, err
	}
	return e.addStationLocked(pos), nil
}

func (e *Engine) addStationLocked(pos geo.LngLat) *Station {
	st := &Station{
		ID:              uuid.New().String(),
		Position:        pos,
		Color:           lineColors[len(e.stations)%len(lineColors)],
		BuildingDensity: e.rng.Float64(),
	}
	e.stations = append(e.stations, st)
	e.stationByID[st.ID] = st
	e.rebuildNetworksLocked()
	return st
}

// CreateRoute connects an ordered list of stations and spawns the
// route's train at position 0.
func (e *Engine) CreateRoute(stationIDs []string) (*Route, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(stationIDs) < 2 {
		return nil, fmt.Errorf("route needs at least 2 stations, got %d", len(stationIDs))
	}
	for i, sid := range stationIDs {
		if _, ok := e.stationByID[sid]; !ok {
			return nil, fmt.Errorf("unknown station %s", sid)
		}
		if i > 0 && sid == stationIDs[i-1] {
			return nil, fmt.Errorf("station %s connected to itself", sid)
		}
	}

	r := &Route{
		ID:         uuid.New().String(),
		Color:      lineColors[len(e.routes)%len(lineColors)],
		StationIDs: append([]string(nil), stationIDs...),
	}
	e.routes = append(e.routes, r)
	e.trains = append(e.trains, &Train{
		ID:                 uuid.New().String(),
		RouteID:            r.ID,
		Position:           0,
		Direction:          1,
		Capacity:           e.cfg.TrainCapacity,
		SpeedKmh:           e.cfg.TrainSpeedKmh,
		LastStationVisited: noStation,
	})
	e.rebuildNetworksLocked()
	return r, nil
}

// ExtendRoute adds a station at one end of an existing route. Adding
// the edge that already terminates that end is rejected; closing the
// loop back onto the first station turns the route circular.
func (e *Engine) ExtendRoute(routeID, stationID string, atStart bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.routeByIDLocked(routeID)
	if r == nil {
		return fmt.Errorf("unknown route %s", routeID)
	}
	if r.IsCircular() {
		return fmt.Errorf("route %s is circular and cannot be extended", routeID)
	}
	if _, ok := e.stationByID[stationID]; !ok {
		return fmt.Errorf("unknown station %s", stationID)
	}

	n := len(r.StationIDs)
	if atStart {
		if stationID == r.StationIDs[0] {
			return fmt.Errorf("station %s is already the route start", stationID)
		}
		if stationID == r.StationIDs[1] {
			return fmt.Errorf("edge %s-%s already exists at the route start", stationID, r.StationIDs[0])
		}
		r.StationIDs = append([]string{stationID}, r.StationIDs...)
		// The train's position is indexed from the route start; keep
		// it on the same physical station.
		for _, t := range e.trains {
			if t.RouteID == r.ID {
				t.Position++
				if t.LastStationVisited != noStation {
					t.LastStationVisited++
				}
			}
		}
	} else {
		if stationID == r.StationIDs[n-1] {
			return fmt.Errorf("station %s is already the route end", stationID)
		}
		if stationID == r.StationIDs[n-2] {
			return fmt.Errorf("edge %s-%s already exists at the route end", r.StationIDs[n-1], stationID)
		}
		r.StationIDs = append(r.StationIDs, stationID)
	}
	e.rebuildNetworksLocked()
	return nil
}

func (e *Engine) routeByIDLocked(id string) *Route {
	for _, r := range e.routes {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// SetGameSpeed changes the simulation speed multiplier.
func (e *Engine) SetGameSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if speed > 0 {
		e.gameSpeed = speed
	}
}

// Run drives the fixed-interval tick loop until the context is done.
// Game over does not stop the loop, only the processing inside Step;
// an explicit Reset starts a fresh game on the same loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Step()
		case <-ctx.Done():
			log.Println("Simulation loop stopped")
			return
		}
	}
}

// Reset drops all game state and both network snapshots and starts a
// fresh clock. Dropping the snapshot references is the whole cache
// reset; nothing is cleared field by field.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stations = nil
	e.routes = nil
	e.trains = nil
	e.stationByID = make(map[string]*Station)
	e.tick = 0
	e.score = 0
	e.delivered = 0
	e.gameOver = false
	e.result = nil
	e.lastArrivalTick = make(map[string]int64)
	e.stats.Reset()
	e.rebuildNetworksLocked()
	log.Printf("Game reset (city=%s)", e.city)
}

// Result returns the captured end-of-game result, or nil while the
// game is running.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Snapshot copies the current state for broadcast.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Tick:           e.tick,
		Score:          e.score,
		ElapsedSeconds: float64(e.tick) * e.cfg.TickInterval.Seconds(),
		GameOver:       e.gameOver,
		Result:         e.result,
	}
	for _, st := range e.stations {
		s.Stations = append(s.Stations, *st)
	}
	for _, r := range e.routes {
		cp := *r
		cp.StationIDs = append([]string(nil), r.StationIDs...)
		s.Routes = append(s.Routes, cp)
	}
	s.Trains = e.trainViewsLocked()
	return s
}

// TrainViews resolves every train to a world coordinate via the
// movement network.
func (e *Engine) TrainViews() []TrainView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trainViewsLocked()
}

func (e *Engine) trainViewsLocked() []TrainView {
	net := e.movement.Load()
	views := make([]TrainView, 0, len(e.trains))
	for _, t := range e.trains {
		v := TrainView{Train: *t, Dwelling: t.WaitTime > 0}
		if mr, ok := net.Routes[t.RouteID]; ok {
			v.Coordinate = mr.PositionAt(t.Position)
			if next, bearing, ok := nextStop(mr, t); ok {
				v.NextStopID = next
				v.Bearing = bearing
			}
		}
		views = append(views, v)
	}
	return views
}

// nextStop returns the id of the station the train is heading for and
// the train's current bearing in degrees clockwise from north.
func nextStop(mr *routegeom.MovementRoute, t *Train) (string, float64, bool) {
	n := len(mr.StationIDs)
	if n < 2 {
		return "", 0, false
	}
	var idx int
	if t.Direction >= 0 {
		idx = int(math.Floor(t.Position)) + 1
	} else {
		idx = int(math.Ceil(t.Position)) - 1
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	here := mr.PositionAt(t.Position)
	dir := geo.Direction(here, mr.StationPositions[idx])
	return mr.StationIDs[idx], bearingDegrees(dir), true
}

// bearingDegrees converts a plane direction vector to compass degrees
// (0 = north, clockwise), the convention GTFS-realtime uses.
func bearingDegrees(d geo.Point) float64 {
	deg := 90 - math.Atan2(d.Y, d.X)*180/math.Pi
	return math.Mod(deg+360, 360)
}
