package webd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catride/observe"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/session"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/stream"
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

const defaultWaypointsLimit = 100

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt    time.Time               `json:"started_at"`
	Uptime       string                  `json:"uptime"`
	Config       *params.WebDaemonConfig `json:"config"`
	Active       bool                    `json:"active"`
	DeviceID     string                  `json:"device_id"`
	Manufacturer string                  `json:"manufacturer"`
	Metrics      observe.Snapshot        `json:"metrics"`
	WSOpen       bool                    `json:"ws_open"`
	WSConns      int                     `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt:    s.started,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Config:       s.Config,
		Active:       s.tracker.Active(),
		DeviceID:     s.tracker.Identity.DeviceID(),
		Manufacturer: s.tracker.Identity.Manufacturer(),
		Metrics:      s.tracker.Observer.Snapshot(),
	}
	if s.melodyInstance != nil {
		st.WSOpen = !s.melodyInstance.IsClosed()
		st.WSConns = s.melodyInstance.Len()
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, status int, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(j); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// writeSessionError maps session misuse to 409 Conflict and anything else to 500.
func (s *WebDaemon) writeSessionError(w http.ResponseWriter, err error) {
	misuse := &session.MisuseError{}
	if errors.As(err, &misuse) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.logger.Error("Session operation failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type statsResponse struct {
	Active  bool          `json:"active"`
	Stats   stats.Stats   `json:"stats"`
	Display stats.Display `json:"display"`
}

func (s *WebDaemon) writeStats(w http.ResponseWriter, st stats.Stats) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		Active:  s.tracker.Active(),
		Stats:   st,
		Display: st.Display(),
	})
}

func (s *WebDaemon) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Start(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	st, err := s.tracker.Stats()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeStats(w, st)
}

func (s *WebDaemon) handleStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Stop()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeStats(w, st)
}

func (s *WebDaemon) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Stats()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeStats(w, st)
}

func (s *WebDaemon) handleClearStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.ClearStats()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeStats(w, st)
}

type pushResponse struct {
	Received  int `json:"received"`
	Delivered int `json:"delivered"`
}

// decodeBatch reads either a JSON array or newline delimited JSON values.
func decodeBatch[T any](ctx context.Context, body io.Reader) ([]T, error) {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	for err == nil && len(bytes.TrimSpace(peek)) == 0 {
		if _, err = buf.ReadByte(); err == nil {
			peek, err = buf.Peek(1)
		}
	}
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if peek[0] == '[' {
		var out []T
		if err := json.NewDecoder(buf).Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	errs := make(chan error, 1)
	out := stream.Collect(ctx, stream.NDJSON[T](ctx, buf, func(err error) {
		errs <- err
	}))
	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return out, ctx.Err()
}

func batchErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *WebDaemon) handleFixes(w http.ResponseWriter, r *http.Request) {
	fixes, err := decodeBatch[fix.LocationFix](r.Context(), http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes))
	if err != nil {
		s.logger.Warn("Failed to decode fixes", "error", err)
		http.Error(w, fmt.Sprintf("decode fixes: %v", err), batchErrorStatus(err))
		return
	}
	res := pushResponse{Received: len(fixes)}
	for _, f := range fixes {
		res.Delivered += s.tracker.PushFix(f)
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *WebDaemon) handleMotion(w http.ResponseWriter, r *http.Request) {
	samples, err := decodeBatch[fix.MotionSample](r.Context(), http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes))
	if err != nil {
		s.logger.Warn("Failed to decode motion samples", "error", err)
		http.Error(w, fmt.Sprintf("decode motion: %v", err), batchErrorStatus(err))
		return
	}
	res := pushResponse{Received: len(samples)}
	for _, m := range samples {
		res.Delivered += s.tracker.PushMotion(m)
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleLast returns the last waypoint as a GeoJSON Feature,
// from the cache or else from state. 204 if there is none.
func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	if last, ok := s.tracker.Cache.Last(); ok {
		s.writeJSON(w, http.StatusOK, last)
		return
	}
	last, err := s.tracker.State.LastWaypoint()
	if err != nil {
		s.logger.Error("Failed to read last waypoint", "error", err)
		http.Error(w, "Failed to read last waypoint", http.StatusInternalServerError)
		return
	}
	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}

// handleWaypoints returns the most recent waypoints as a FeatureCollection.
// They come from the cache when it holds enough of them, and from state otherwise.
func (s *WebDaemon) handleWaypoints(w http.ResponseWriter, r *http.Request) {
	limit := defaultWaypointsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	var wps []waypoint.Waypoint
	if s.tracker.Cache.Len() >= limit {
		wps = s.tracker.Cache.Recent(limit)
	} else {
		var err error
		wps, err = s.tracker.State.ReadWaypoints(limit)
		if err != nil {
			s.logger.Error("Failed to read waypoints", "error", err)
			http.Error(w, "Failed to read waypoints", http.StatusInternalServerError)
			return
		}
	}
	fc := geojson.NewFeatureCollection()
	for _, wp := range wps {
		fc.Append(wp.Feature())
	}
	s.writeJSON(w, http.StatusOK, fc)
}
