package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/types/waypoint"
)

// WaypointFeed is emitted for every waypoint a session accepts,
// in emission order. Sends happen under the session lock, so
// subscribers must drain their channels promptly.
var WaypointFeed = event.FeedOf[waypoint.Waypoint]{}

// StatsFeed is emitted with the finalized stats when a ride stops,
// and with the zero totals when stats are cleared.
var StatsFeed = event.FeedOf[stats.Stats]{}
