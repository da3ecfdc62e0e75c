package params

import (
	"os"
	"time"
)

// InfluxDB export is enabled when INFLUXDB_URL is set.
var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

type InfluxConfig struct {
	URL, Token, Org, Bucket string
	Measurement             string
}

func DefaultInfluxConfig() *InfluxConfig {
	return &InfluxConfig{
		URL:         INFLUXDB_URL,
		Token:       INFLUXDB_TOKEN,
		Org:         INFLUXDB_ORG,
		Bucket:      INFLUXDB_BUCKET,
		Measurement: "waypoint",
	}
}

func (c *InfluxConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

func DefaultMongoConfig() *MongoConfig {
	db := os.Getenv("MONGODB_DATABASE")
	if db == "" {
		db = "catride"
	}
	return &MongoConfig{
		URI:            os.Getenv("MONGODB_URI"),
		Database:       db,
		Collection:     "geo_points",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

func (c *MongoConfig) Enabled() bool {
	return c != nil && c.URI != ""
}
