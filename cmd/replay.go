/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/rotblauer/catride/app"
	"github.com/rotblauer/catride/catz"
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/session"
	"github.com/rotblauer/catride/sinks"
	"github.com/rotblauer/catride/streams"
	"github.com/spf13/cobra"
)

var optReplaySpeedup float64
var optReplayPersist bool
var optReplayGeoJSON bool

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Replay a recorded ride",
	Long: `Replays NDJSON records through a tracking session and prints the ride stats.

Each line is one record:

  {"type":"fix","latitude":46.87,"longitude":-113.99,"accuracy":5,"timestamp":"2024-05-01T10:00:00Z"}
  {"type":"motion","x":0.01,"y":0.02,"z":0.98,"timestamp":1714557600400}

The file may be gzipped (.gz). With no file, or "-", records are read from stdin.
Durations are measured with the fix timestamps, not the wall clock.

Flags:

  --speedup   Pace records by their timestamps, this many times faster. 0 replays at full speed.
  --persist   Record the ride in the data dir, as a live ride would be. Otherwise a temporary dir is used.
  --geojson   Write each waypoint to stdout as a GeoJSON line.

Examples:

  catride replay ride.ndjson.gz --geojson > waypoints.geojson
  zcat ride.ndjson.gz | catride replay --speedup 10
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		in, err := catz.Open(path)
		if err != nil {
			log.Fatalln(err)
		}
		defer in.Close()

		config := trackerConfig()
		config.Tracking.UseFixTime = true
		// Recorded fixes are all old, and a paused replay is not a lost signal.
		config.Tracking.Location.MaximumAge = 0
		config.Tracking.Location.Timeout = 0
		config.Influx = nil
		config.Mongo = nil
		if !optReplayPersist {
			tmp, err := os.MkdirTemp("", "catride-replay")
			if err != nil {
				log.Fatalln(err)
			}
			defer os.RemoveAll(tmp)
			config.DataDir = tmp
			config.Archive = false
		}
		if optReplayGeoJSON {
			config.Sinks = []session.WaypointSink{sinks.NewJSONWriter(os.Stdout)}
		}

		tracker, err := app.New(ctx, config)
		if err != nil {
			log.Fatalln(err)
		}
		defer tracker.Close()

		if err := tracker.Start(); err != nil {
			log.Fatalln(err)
		}
		replayer := &streams.Replayer{
			Locations: tracker.Locations,
			Motions:   tracker.Motions,
			Speedup:   optReplaySpeedup,
		}
		res, err := replayer.Run(ctx, in)
		if err != nil {
			slog.Error("Replay stopped early", "error", err)
		}
		st, err := tracker.Stop()
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Replay done", "fixes", res.Fixes, "samples", res.Samples, "skipped", res.Skipped,
			"observed", tracker.Observer.Snapshot())
		fmt.Fprintln(os.Stderr, st.String())
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	pFlags := replayCmd.PersistentFlags()
	pFlags.Float64Var(&optReplaySpeedup, "speedup", 0, "Pace records by timestamp, this many times faster (0 is unpaced)")
	pFlags.BoolVar(&optReplayPersist, "persist", false, "Record the ride in the data dir")
	pFlags.BoolVar(&optReplayGeoJSON, "geojson", false, "Write waypoints to stdout as GeoJSON lines")
}
