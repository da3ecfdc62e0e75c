package webd

import (
	"encoding/json"

	"github.com/olahol/melody"
	"github.com/rotblauer/catride/events"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/types/waypoint"
)

type websocketAction string

const (
	websocketActionWaypoint websocketAction = "waypoint"
	websocketActionStats    websocketAction = "stats"
)

type broadcast struct {
	Action   websocketAction    `json:"action"`
	Waypoint *waypoint.Waypoint `json:"waypoint,omitempty"`
	Stats    *stats.Stats       `json:"stats,omitempty"`
}

// initMelody sets up the websocket handler and starts relaying
// waypoint and stats events to every connected client.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// New clients get the last waypoint and current stats straight away.
	s.melodyInstance.HandleConnect(func(ms *melody.Session) {
		s.logger.Info("Websocket connected", "remote", ms.Request.RemoteAddr)
		if w, ok := s.tracker.Cache.Last(); ok {
			s.writeSession(ms, broadcast{Action: websocketActionWaypoint, Waypoint: &w})
		}
		if st, err := s.tracker.Stats(); err == nil {
			s.writeSession(ms, broadcast{Action: websocketActionStats, Stats: &st})
		}
	})

	// Clients have nothing to say yet. Log and drop.
	s.melodyInstance.HandleMessage(func(ms *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", ms.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(ms *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", ms.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(ms *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", ms.Request.RemoteAddr, "error", e)
	})

	// Waypoints are sent on the feed with the session lock held,
	// so this loop must never block on a slow client; melody queues per session.
	waypoints := make(chan waypoint.Waypoint, 64)
	statsUpdates := make(chan stats.Stats, 8)
	waypointSub := events.WaypointFeed.Subscribe(waypoints)
	statsSub := events.StatsFeed.Subscribe(statsUpdates)
	s.unsubscribe = func() {
		waypointSub.Unsubscribe()
		statsSub.Unsubscribe()
	}
	go func() {
		for {
			select {
			case w := <-waypoints:
				s.broadcast(broadcast{Action: websocketActionWaypoint, Waypoint: &w})
			case st := <-statsUpdates:
				s.broadcast(broadcast{Action: websocketActionStats, Stats: &st})
			case <-waypointSub.Err():
				return
			case <-statsSub.Err():
				return
			}
		}
	}()
}

func (s *WebDaemon) broadcast(b broadcast) {
	if s.melodyInstance.IsClosed() {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", "action", b.Action, "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(data); err != nil {
		s.logger.Warn("Failed to broadcast", "action", b.Action, "error", err)
	}
}

func (s *WebDaemon) writeSession(ms *melody.Session, b broadcast) {
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Error("Failed to marshal message", "action", b.Action, "error", err)
		return
	}
	if err := ms.Write(data); err != nil {
		s.logger.Warn("Failed to write websocket message", "error", err)
	}
}

// closeSocket stops relaying events and disconnects all clients.
func (s *WebDaemon) closeSocket() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.melodyInstance != nil && !s.melodyInstance.IsClosed() {
		_ = s.melodyInstance.Close()
	}
}
