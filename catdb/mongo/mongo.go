// Package mongo stores waypoints as GeoJSON documents in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/waypoint"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDisabled = errors.New("mongodb export not configured")

// queueSize bounds the waypoints waiting to be inserted.
const queueSize = 1024

// GeoPoint is a GeoJSON point, as MongoDB's 2dsphere index expects.
type GeoPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

// Document is the stored form of a waypoint.
type Document struct {
	DeviceID        string    `bson:"deviceId"`
	Manufacturer    string    `bson:"manufacturer"`
	Session         string    `bson:"session"`
	Seq             int64     `bson:"seq"`
	Location        GeoPoint  `bson:"location"`
	Timestamp       time.Time `bson:"timestamp"`
	Accuracy        *float64  `bson:"accuracy,omitempty"`
	Altitude        *float64  `bson:"altitude,omitempty"`
	Heading         *float64  `bson:"heading,omitempty"`
	Speed           *float64  `bson:"speed,omitempty"`
	DistanceMeters  float64   `bson:"distance"`
	DurationSeconds int64     `bson:"duration"`
	MotionCount     int       `bson:"motionCount"`
	MotionMean      float64   `bson:"motionMean"`
	MotionMax       float64   `bson:"motionMax"`
	S2              string    `bson:"s2"`
}

func NewDocument(w waypoint.Waypoint) Document {
	return Document{
		DeviceID:        w.DeviceID,
		Manufacturer:    w.Manufacturer,
		Session:         w.Session,
		Seq:             w.Seq,
		Location:        GeoPoint{Type: "Point", Coordinates: [2]float64{w.Longitude, w.Latitude}},
		Timestamp:       w.Time,
		Accuracy:        w.Accuracy,
		Altitude:        w.Altitude,
		Heading:         w.Heading,
		Speed:           w.Speed,
		DistanceMeters:  w.DistanceMeters,
		DurationSeconds: w.DurationSeconds,
		MotionCount:     w.MotionSummary.Count,
		MotionMean:      w.MotionSummary.Mean,
		MotionMax:       w.MotionSummary.Max,
		S2:              w.CellToken(),
	}
}

// Sink inserts waypoints from a background goroutine, so a slow
// database never holds up a session. When the queue is full, waypoints are dropped and logged.
type Sink struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     *slog.Logger

	queue   chan Document
	closing sync.Once
	done    chan struct{}
}

// Connect dials and pings MongoDB, then starts the insert worker.
func Connect(ctx context.Context, config *params.MongoConfig) (*Sink, error) {
	if !config.Enabled() {
		return nil, ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Sink{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
		timeout:    config.WriteTimeout,
		logger:     slog.With("d", "mongo", "collection", config.Collection),
		queue:      make(chan Document, queueSize),
		done:       make(chan struct{}),
	}
	s.logger.Info("Connected to MongoDB", "database", config.Database)
	go s.run()
	return s, nil
}

func (s *Sink) run() {
	defer close(s.done)
	for doc := range s.queue {
		if err := s.insert(doc); err != nil {
			s.logger.Error("Insert failed", "seq", doc.Seq, "error", err)
		}
	}
}

func (s *Sink) insert(doc Document) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

func (s *Sink) Submit(w waypoint.Waypoint) {
	select {
	case s.queue <- NewDocument(w):
	default:
		s.logger.Warn("Insert queue full, dropping waypoint", "seq", w.Seq)
	}
}

// Close drains the queue and disconnects.
func (s *Sink) Close(ctx context.Context) error {
	s.closing.Do(func() { close(s.queue) })
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.client.Disconnect(ctx)
}
