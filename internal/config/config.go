package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunables for the simulation server. Every constant
// the engine depends on lives here so scenarios and tests can override
// them without touching the geometry or simulation code.
type Config struct {
	// Server
	ListenAddr     string
	AllowedOrigins []string

	// Database
	DatabasePath string

	// Simulation loop
	TickInterval time.Duration
	GameSpeed    float64

	// Trains
	TrainSpeedKmh    float64
	TrainCapacity    int
	DwellTicks       int
	ArrivalEpsilon   float64 // position units
	StationResetDist float64 // position units before lastStationVisited clears

	// Stations / passengers
	OverloadThreshold int
	OverloadGrace     time.Duration
	PassengerBaseRate float64 // per-station spawn probability per tick
	SpawnMinDistance  float64 // meters between stations
	SpawnMaxDistance  float64 // meters from an existing station
	SpawnAttempts     int

	// Route geometry
	AlignmentTolerance float64 // meters, schematic path snap threshold
	SampleDistance     float64 // meters between micro-segments
	FineCellSize       float64 // meters, fine spatial grid
	CoarseCellSize     float64 // meters, coarse spatial grid
	StraightSpacing    float64 // lateral band spacing, non-diagonal corridors
	DiagonalSpacing    float64 // lateral band spacing, diagonal corridors
	AttachmentRadii    []float64
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "http://localhost:5173")},

		DatabasePath: getEnv("SQLITE_DATABASE", "/data/metromesh.db"),

		TickInterval: time.Duration(getEnvInt("TICK_INTERVAL_MS", 100)) * time.Millisecond,
		GameSpeed:    getEnvFloat("GAME_SPEED", 1.0),

		TrainSpeedKmh:    getEnvFloat("TRAIN_SPEED_KMH", 700),
		TrainCapacity:    getEnvInt("TRAIN_CAPACITY", 6),
		DwellTicks:       getEnvInt("DWELL_TICKS", 10),
		ArrivalEpsilon:   0.02,
		StationResetDist: 0.1,

		OverloadThreshold: getEnvInt("OVERLOAD_THRESHOLD", 20),
		OverloadGrace:     time.Duration(getEnvInt("OVERLOAD_GRACE_MS", 5000)) * time.Millisecond,
		PassengerBaseRate: getEnvFloat("PASSENGER_BASE_RATE", 0.05),
		SpawnMinDistance:  getEnvFloat("SPAWN_MIN_DISTANCE_M", 400),
		SpawnMaxDistance:  getEnvFloat("SPAWN_MAX_DISTANCE_M", 2500),
		SpawnAttempts:     50,

		AlignmentTolerance: 10,
		SampleDistance:     10,
		FineCellSize:       50,
		CoarseCellSize:     200,
		StraightSpacing:    25,
		DiagonalSpacing:    50,
		AttachmentRadii:    []float64{30, 60},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
