package conceptual

// DeviceID identifies the phone (or other tracker) that produced a waypoint.
type DeviceID string

func (d DeviceID) String() string {
	return string(d)
}
