package session

import (
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

// Subscription is a handle on a stream subscription.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// LocationStream delivers location fixes, and errors such as timeouts, to its subscribers.
type LocationStream interface {
	Subscribe(onFix func(fix.LocationFix), onError func(error)) (Subscription, error)
}

// MotionStream delivers accelerometer samples to its subscribers.
type MotionStream interface {
	Subscribe(onSample func(fix.MotionSample)) (Subscription, error)
}

type IdentityProvider interface {
	DeviceID() string
	Manufacturer() string
}

// WaypointSink receives every emitted waypoint, in order.
// It is called with the session lock held and must not call back into the session.
type WaypointSink interface {
	Submit(waypoint.Waypoint)
}

type ObservabilitySink interface {
	LogRejectedFix(f fix.LocationFix, reason string)
	LogStreamError(err error)
}
