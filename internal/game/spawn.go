package game

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// RandomStationPosition picks a plausible position for a new station:
// a random bearing and radius from a randomly chosen anchor (the map
// center or an existing station), rejected if it lands too close to
// any existing station. Fails loudly after the configured number of
// attempts rather than silently placing an overlapping station.
func RandomStationPosition(rng *rand.Rand, center geo.LngLat, existing []geo.LngLat, cfg *config.Config) (geo.LngLat, error) {
	for attempt := 0; attempt < cfg.SpawnAttempts; attempt++ {
		anchor := center
		if len(existing) > 0 && rng.Float64() < 0.7 {
			anchor = existing[rng.Intn(len(existing))]
		}
		bearing := rng.Float64() * 2 * math.Pi
		radius := cfg.SpawnMinDistance + rng.Float64()*(cfg.SpawnMaxDistance-cfg.SpawnMinDistance)
		dir := geo.Point{X: math.Cos(bearing), Y: math.Sin(bearing)}
		candidate := geo.OffsetBy(anchor, dir, radius)

		tooClose := false
		for _, pos := range existing {
			if geo.DistanceMeters(candidate, pos) < cfg.SpawnMinDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			return candidate, nil
		}
	}
	return geo.LngLat{}, fmt.Errorf("no free station position found after %d attempts (min spacing %.0fm, %d existing stations)",
		cfg.SpawnAttempts, cfg.SpawnMinDistance, len(existing))
}
