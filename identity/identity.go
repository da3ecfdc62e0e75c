// Package identity answers who recorded a waypoint.
package identity

import (
	"github.com/rotblauer/catride/conceptual"
	"github.com/rotblauer/catride/params"
)

// DeviceIDSource yields a stable device id, such as state.Store.
type DeviceIDSource interface {
	DeviceID() (string, error)
}

// Provider is a session.IdentityProvider with answers resolved once, up front.
type Provider struct {
	id           conceptual.DeviceID
	manufacturer string
}

// New resolves the device id from src. An empty manufacturer
// becomes params.DefaultManufacturer.
func New(src DeviceIDSource, manufacturer string) (*Provider, error) {
	id, err := src.DeviceID()
	if err != nil {
		return nil, err
	}
	return Static(conceptual.DeviceID(id), manufacturer), nil
}

func Static(id conceptual.DeviceID, manufacturer string) *Provider {
	if manufacturer == "" {
		manufacturer = params.DefaultManufacturer
	}
	return &Provider{id: id, manufacturer: manufacturer}
}

func (p *Provider) DeviceID() string {
	return p.id.String()
}

func (p *Provider) Manufacturer() string {
	return p.manufacturer
}
