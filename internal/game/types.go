// Package game owns the simulation state: stations, routes, trains,
// passenger flow, scoring, and the game-over detector. All mutation
// happens inside the Engine's tick, serialized by one mutex; the
// geometry snapshots it publishes are immutable and swapped whole.
package game

import (
	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// Station is a placed stop. PassengerCount never goes negative; the
// overload tick is set the moment the count crosses the threshold from
// below and cleared when it drops back under.
type Station struct {
	ID                  string     `json:"id"`
	Position            geo.LngLat `json:"position"`
	Color               string     `json:"color"`
	PassengerCount      int        `json:"passengerCount"`
	OverloadedSinceTick *int64     `json:"overloadedSince,omitempty"`
	BuildingDensity     float64    `json:"buildingDensity"`

	// spawn tick per waiting passenger, oldest first; drives the
	// wait-time statistics and nothing else
	waitingSince []int64
}

// Route is an ordered station sequence. It only ever changes by
// extension at an end; a route whose first and last ids match is
// circular.
type Route struct {
	ID         string   `json:"id"`
	Color      string   `json:"color"`
	StationIDs []string `json:"stations"`
}

// IsCircular reports whether the route loops back onto its first
// station.
func (r *Route) IsCircular() bool {
	return len(r.StationIDs) > 2 && r.StationIDs[0] == r.StationIDs[len(r.StationIDs)-1]
}

// noStation is the LastStationVisited value once a train has moved
// clear of every station.
const noStation = -1

// Train runs along one route. Position is a scalar in station-index
// units: integer values are exact station locations, fractions are
// progress along the current leg. For a non-circular route it stays in
// [0, stationCount-1]; for a circular one it wraps.
type Train struct {
	ID                 string  `json:"id"`
	RouteID            string  `json:"routeId"`
	Position           float64 `json:"position"`
	Direction          int     `json:"direction"` // +1 or -1
	PassengerCount     int     `json:"passengerCount"`
	Capacity           int     `json:"capacity"`
	SpeedKmh           float64 `json:"speedKmh"`
	WaitTime           int     `json:"waitTime"` // dwell ticks remaining
	LastStationVisited int     `json:"lastStationVisited"`
}

// Result captures the terminal state of a finished game.
type Result struct {
	City                string  `json:"city"`
	Score               int     `json:"score"`
	DurationSeconds     float64 `json:"durationSeconds"`
	Stations            int     `json:"stations"`
	Routes              int     `json:"routes"`
	PassengersDelivered int     `json:"passengersDelivered"`
	AvgWaitSeconds      float64 `json:"avgWaitSeconds"`
	AvgLegSeconds       float64 `json:"avgLegSeconds"`
}

// TrainView is a train plus its resolved world coordinate, for
// broadcast and the realtime feed.
type TrainView struct {
	Train
	Coordinate geo.LngLat `json:"coordinate"`
	Bearing    float64    `json:"bearing"`
	Dwelling   bool       `json:"dwelling"`
	NextStopID string     `json:"nextStopId,omitempty"`
}

// Snapshot is the tick summary broadcast to clients.
type Snapshot struct {
	Tick           int64       `json:"tick"`
	Score          int         `json:"score"`
	ElapsedSeconds float64     `json:"elapsedSeconds"`
	GameOver       bool        `json:"gameOver"`
	Result         *Result     `json:"result,omitempty"`
	Stations       []Station   `json:"stations"`
	Routes         []Route     `json:"routes"`
	Trains         []TrainView `json:"trains"`
}
