// Package metrics provides the run statistics reported alongside the
// score: online mean/spread of passenger wait times and train leg
// durations, accumulated without storing the observations.
package metrics

import "math"

// Running tracks mean and standard deviation with Welford's online
// algorithm: O(1) per observation, numerically stable, no stored
// samples.
type Running struct {
	count int
	mean  float64
	m2    float64 // sum of squared differences from the mean
}

// Observe folds one value into the running statistics.
func (r *Running) Observe(v float64) {
	r.count++
	delta := v - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (v - r.mean)
}

// Mean returns the running mean, 0 with no observations.
func (r *Running) Mean() float64 {
	return r.mean
}

// StdDev returns the population standard deviation, 0 with fewer than
// two observations.
func (r *Running) StdDev() float64 {
	if r.count < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.count))
}

// Count returns the number of observations.
func (r *Running) Count() int {
	return r.count
}

// Reset discards all accumulated state.
func (r *Running) Reset() {
	*r = Running{}
}

// RunStats bundles the per-game accumulators.
type RunStats struct {
	PassengerWaitSeconds Running
	TrainLegSeconds      Running
}

// Reset clears both accumulators for a new game.
func (s *RunStats) Reset() {
	s.PassengerWaitSeconds.Reset()
	s.TrainLegSeconds.Reset()
}
