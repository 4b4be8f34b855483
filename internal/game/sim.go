package game

import (
	"log"
	"math"
)

// Step advances the simulation by one fixed tick: passenger spawning,
// train movement and exchange, then the overload check. After game
// over, ticks are no-ops until Reset.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gameOver {
		return
	}
	e.tick++
	e.spawnPassengersLocked()
	for _, t := range e.trains {
		e.advanceTrainLocked(t)
	}
	e.checkOverloadsLocked()
}

// advanceTrainLocked runs one tick of a single train's state machine:
// dwell countdown, positional advance from real leg distance, boundary
// handling, then arrival detection and passenger exchange.
func (e *Engine) advanceTrainLocked(t *Train) {
	r := e.routeByIDLocked(t.RouteID)
	if r == nil || len(r.StationIDs) < 2 {
		return // degenerate route: no-op, never an error mid-tick
	}
	net := e.movement.Load()
	mr, ok := net.Routes[t.RouteID]
	if !ok || len(mr.LegMeters) == 0 {
		return // geometry not built yet
	}

	if t.WaitTime > 0 {
		t.WaitTime--
		return
	}

	n := len(r.StationIDs)
	span := float64(n - 1)

	// Positional increment from the real ground distance of the leg
	// the train is on, so equal speeds cover far-apart stations in
	// proportionally more ticks. The offset visual geometry plays no
	// part here.
	leg := currentLeg(t, n)
	legMeters := mr.LegMeters[leg]
	if legMeters <= 0 {
		return
	}
	metersPerTick := t.SpeedKmh / 3.6 * e.cfg.TickInterval.Seconds()
	t.Position += metersPerTick / legMeters * float64(t.Direction) * e.gameSpeed

	if r.IsCircular() {
		// A circular route wraps instead of reversing; position stays
		// in [0, span).
		t.Position = math.Mod(t.Position, span)
		if t.Position < 0 {
			t.Position += span
		}
	} else {
		if t.Position <= 0 {
			t.Position = 0
			t.Direction = 1
		} else if t.Position >= span {
			t.Position = span
			t.Direction = -1
		}
	}

	// Once the train is clearly between stations, forget the last
	// visit so jitter around the arrival threshold cannot trigger a
	// second exchange at the same stop.
	if t.LastStationVisited != noStation &&
		math.Abs(t.Position-float64(t.LastStationVisited)) > e.cfg.StationResetDist {
		t.LastStationVisited = noStation
	}

	nearest := int(math.Round(t.Position))
	if math.Abs(t.Position-float64(nearest)) < e.cfg.ArrivalEpsilon {
		if r.IsCircular() && nearest == n-1 {
			// The closing joint is the same physical station as
			// index 0; land there once, not once per index.
			nearest = 0
		}
		if nearest != t.LastStationVisited {
			e.arriveLocked(t, r, nearest)
		}
	}
}

// currentLeg maps a scalar position and travel direction to the leg
// index whose distance governs this tick's increment.
func currentLeg(t *Train, stationCount int) int {
	var leg int
	if t.Direction >= 0 {
		leg = int(math.Floor(t.Position))
	} else {
		leg = int(math.Ceil(t.Position)) - 1
	}
	if leg < 0 {
		leg = 0
	}
	if leg > stationCount-2 {
		leg = stationCount - 2
	}
	return leg
}

// arriveLocked handles the station-arrival transition: snap to the
// station, score and drop every onboard passenger, board up to
// capacity from the platform, and start the dwell.
func (e *Engine) arriveLocked(t *Train, r *Route, idx int) {
	t.Position = float64(idx)

	if last, ok := e.lastArrivalTick[t.ID]; ok {
		legTicks := e.tick - last
		e.stats.TrainLegSeconds.Observe(float64(legTicks) * e.cfg.TickInterval.Seconds())
	}
	e.lastArrivalTick[t.ID] = e.tick

	delivered := t.PassengerCount
	e.score += delivered * 10
	e.delivered += delivered
	t.PassengerCount = 0

	if st := e.stationByID[r.StationIDs[idx]]; st != nil {
		boarding := t.Capacity
		if st.PassengerCount < boarding {
			boarding = st.PassengerCount
		}
		if boarding > 0 {
			st.PassengerCount -= boarding
			t.PassengerCount = boarding
			for _, spawnTick := range st.waitingSince[:boarding] {
				wait := float64(e.tick-spawnTick) * e.cfg.TickInterval.Seconds()
				e.stats.PassengerWaitSeconds.Observe(wait)
			}
			st.waitingSince = st.waitingSince[boarding:]
		}
	}

	t.WaitTime = e.cfg.DwellTicks
	t.LastStationVisited = idx
}

// spawnPassengersLocked adds waiting passengers to stations, biased by
// building density.
func (e *Engine) spawnPassengersLocked() {
	for _, st := range e.stations {
		p := e.cfg.PassengerBaseRate * (0.5 + st.BuildingDensity) * e.gameSpeed
		if e.rng.Float64() < p {
			st.PassengerCount++
			st.waitingSince = append(st.waitingSince, e.tick)
		}
	}
}

// checkOverloadsLocked maintains each station's overload window and
// fires game over once any station has been continuously overloaded
// for the full grace period.
func (e *Engine) checkOverloadsLocked() {
	graceTicks := int64(e.cfg.OverloadGrace / e.cfg.TickInterval)
	for _, st := range e.stations {
		if st.PassengerCount >= e.cfg.OverloadThreshold {
			if st.OverloadedSinceTick == nil {
				since := e.tick
				st.OverloadedSinceTick = &since
			}
			if e.tick-*st.OverloadedSinceTick >= graceTicks {
				e.finishGameLocked(st)
				return
			}
		} else {
			st.OverloadedSinceTick = nil
		}
	}
}

// finishGameLocked transitions to the terminal state exactly once,
// capturing the final result.
func (e *Engine) finishGameLocked(overloaded *Station) {
	e.gameOver = true
	e.result = &Result{
		City:                e.city,
		Score:               e.score,
		DurationSeconds:     float64(e.tick) * e.cfg.TickInterval.Seconds(),
		Stations:            len(e.stations),
		Routes:              len(e.routes),
		PassengersDelivered: e.delivered,
		AvgWaitSeconds:      e.stats.PassengerWaitSeconds.Mean(),
		AvgLegSeconds:       e.stats.TrainLegSeconds.Mean(),
	}
	log.Printf("Game over: station %s overloaded for %v (score=%d, delivered=%d)",
		overloaded.ID, e.cfg.OverloadGrace, e.score, e.delivered)
}
