package session

import (
	"log/slog"

	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

type staticIdentity struct {
	id, manufacturer string
}

func (s staticIdentity) DeviceID() string     { return s.id }
func (s staticIdentity) Manufacturer() string { return s.manufacturer }

// StaticIdentity returns an IdentityProvider with fixed answers.
func StaticIdentity(deviceID, manufacturer string) IdentityProvider {
	return staticIdentity{id: deviceID, manufacturer: manufacturer}
}

type discardSink struct{}

func (discardSink) Submit(waypoint.Waypoint) {}

type logObserver struct {
	log *slog.Logger
}

func (o logObserver) LogRejectedFix(f fix.LocationFix, reason string) {
	o.log.Debug("Rejected fix", "lat", f.Latitude, "lng", f.Longitude, "reason", reason)
}

func (o logObserver) LogStreamError(err error) {
	o.log.Warn("Stream error", "error", err)
}

func defaultIdentity() IdentityProvider {
	return StaticIdentity("", params.DefaultManufacturer)
}
