// Package state persists ride totals, recent waypoints and the device id
// in a bbolt database.
package state

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/types/waypoint"
	"go.etcd.io/bbolt"
)

var ErrReadOnly = errors.New("state is read-only")

type Store struct {
	DB *bbolt.DB

	// MaxWaypoints bounds the waypoints bucket. Zero is unbounded.
	MaxWaypoints int

	logger *slog.Logger
	rOnly  bool
}

// Open opens (creating if needed) the state database in dir.
// Opening a writable DB conn will block all other writers and readers
// with essentially a file lock/flock, so Open gives up after a second.
func Open(dir string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, params.StateDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	s := &Store{
		DB:           db,
		MaxWaypoints: params.StateMaxWaypoints,
		logger:       slog.With("d", "state"),
		rOnly:        readOnly,
	}
	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{params.StateBucketStats, params.StateBucketWaypoints, params.StateBucketDevice} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) storeKV(bucket, key, data []byte) error {
	if s.rOnly {
		return ErrReadOnly
	}
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// readKV returns nil, nil for a missing key or bucket.
func (s *Store) readKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		if got := b.Get(key); got != nil {
			out = bytes.Clone(got)
		}
		return nil
	})
	return out, err
}

func (s *Store) WriteStats(st stats.Stats) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.storeKV(params.StateBucketStats, params.StateKeyStats, b)
}

// ReadStats returns the persisted stats, and false if none were stored.
func (s *Store) ReadStats() (stats.Stats, bool, error) {
	got, err := s.readKV(params.StateBucketStats, params.StateKeyStats)
	if err != nil || got == nil {
		return stats.Stats{}, false, err
	}
	st := stats.Stats{}
	if err := json.Unmarshal(got, &st); err != nil {
		return stats.Stats{}, false, fmt.Errorf("%w: %q", err, string(got))
	}
	return st, true, nil
}

func (s *Store) ClearStats() error {
	if s.rOnly {
		return ErrReadOnly
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.StateBucketStats)
		if b == nil {
			return nil
		}
		return b.Delete(params.StateKeyStats)
	})
}

// DeviceID returns the stored device id, generating and storing one on first use.
func (s *Store) DeviceID() (string, error) {
	got, err := s.readKV(params.StateBucketDevice, params.StateKeyDeviceID)
	if err != nil {
		return "", err
	}
	if got != nil {
		return string(got), nil
	}
	id := uuid.NewString()
	if err := s.storeKV(params.StateBucketDevice, params.StateKeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	s.logger.Info("Generated device id", "id", id)
	return id, nil
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// StoreWaypoint appends w to the waypoints bucket, pruning the oldest
// beyond MaxWaypoints.
func (s *Store) StoreWaypoint(w waypoint.Waypoint) error {
	if s.rOnly {
		return ErrReadOnly
	}
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(params.StateBucketWaypoints)
		if err != nil {
			return err
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(n), data); err != nil {
			return err
		}
		if s.MaxWaypoints <= 0 || n <= uint64(s.MaxWaypoints) {
			return nil
		}
		// Keys are sequential, so everything at or below the cutoff goes.
		cutoff := seqKey(n - uint64(s.MaxWaypoints))
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) <= 0; k, _ = c.First() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Submit stores w, logging any failure. It makes Store a session.WaypointSink.
func (s *Store) Submit(w waypoint.Waypoint) {
	if err := s.StoreWaypoint(w); err != nil {
		s.logger.Error("Failed to store waypoint", "seq", w.Seq, "error", err)
	}
}

// ReadWaypoints returns up to limit of the most recent waypoints, oldest first.
// A limit of zero or less returns all of them.
func (s *Store) ReadWaypoints(limit int) ([]waypoint.Waypoint, error) {
	var out []waypoint.Waypoint
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.StateBucketWaypoints)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			w := waypoint.Waypoint{}
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("waypoint %x: %w", k, err)
			}
			out = append(out, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastWaypoint returns the most recently stored waypoint, or nil.
func (s *Store) LastWaypoint() (*waypoint.Waypoint, error) {
	got, err := s.ReadWaypoints(1)
	if err != nil || len(got) == 0 {
		return nil, err
	}
	return &got[0], nil
}
