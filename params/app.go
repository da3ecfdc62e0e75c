package params

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"
)

var (
	CacheLastWaypointTTL = 1 * 24 * time.Hour
	CacheRecentWaypoints = 1_000
	DedupeFixesSize      = 10_000

	// StateMaxWaypoints bounds the waypoints kept in the state database.
	// Older ones are pruned; the gz archive keeps everything.
	StateMaxWaypoints = 50_000
)

// DatadirRoot is where catride keeps its state database and waypoint archive.
var DatadirRoot = func() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".catride")
}()

const (
	StateDBName         = "state.db"
	WaypointsGZFileName = "waypoints.geojson.gz"
	DefaultConfigName   = ".catride"
	EnvPrefix           = "CATRIDE"
	DefaultManufacturer = "unknown"
)

var (
	StateBucketStats     = []byte("stats")
	StateBucketWaypoints = []byte("waypoints")
	StateBucketDevice    = []byte("device")

	StateKeyStats    = []byte("stats")
	StateKeyDeviceID = []byte("device_id")
)

var DefaultGZipCompressionLevel = gzip.BestCompression

// MetricsTickInterval is how often the observer logs its meters.
var MetricsTickInterval = 1 * time.Minute
