package webd

import (
	"context"
	"testing"

	"github.com/rotblauer/catride/app"
	"github.com/rotblauer/catride/params"
)

// newTestWebDaemon creates a WebDaemon over a fresh Tracker in a temp dir.
// Everything is closed when the test ends.
func newTestWebDaemon(t *testing.T, token string) *WebDaemon {
	t.Helper()
	config := app.DefaultConfig()
	config.DataDir = t.TempDir()
	config.Influx = nil
	config.Mongo = nil
	config.Archive = false
	config.Tracking.Location.Timeout = 0
	tracker, err := app.New(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	daemonConfig := params.DefaultTestWebDaemonConfig()
	daemonConfig.DataDir = config.DataDir
	daemonConfig.Token = token
	d := NewWebDaemon(daemonConfig, tracker)
	t.Cleanup(func() {
		d.closeSocket()
		_ = tracker.Close()
	})
	return d
}
