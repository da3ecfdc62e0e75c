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
	"log"
	"log/slog"

	"github.com/rotblauer/catride/app"
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/daemon/webd"
	"github.com/rotblauer/catride/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the session control and ingest API.

Start and stop rides with POST /session/start and /session/stop,
post fixes and motion samples to /fixes and /motion (JSON arrays or NDJSON),
and watch waypoints live on the /socket websocket.

Set CATRIDE_TOKEN to require a token on the mutating routes.
Set INFLUXDB_URL or MONGODB_URI to export waypoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		tracker, err := app.New(ctx, trackerConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer func() {
			if err := tracker.Close(); err != nil {
				slog.Error("Failed to close tracker", "error", err)
			}
		}()
		go tracker.Observer.Run(ctx, params.MetricsTickInterval)

		config := params.DefaultWebDaemonConfig()
		config.DataDir = tracker.Config.DataDir
		config.Network = viper.GetString("network")
		config.Address = viper.GetString("address")
		config.MaxBodyBytes = viper.GetInt64("max-body-bytes")
		if token := viper.GetString("token"); token != "" {
			config.Token = token
		}
		if config.Token == "" {
			slog.Warn("No CATRIDE_TOKEN set, allowing all requests")
		}

		server := webd.NewWebDaemon(config, tracker)
		if err := server.Run(ctx); err != nil {
			slog.Error("Web daemon failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebListenerConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.String("network", defaults.Network, "Network to listen on: tcp, tcp4, tcp6 or unix")
	pFlags.String("address", defaults.Address, "HTTP address to listen on")
	pFlags.String("token", "", "API token for mutating routes (default is $CATRIDE_TOKEN)")
	pFlags.Int64("max-body-bytes", params.DefaultMaxBodyBytes, "Largest accepted fix or motion upload")
	if err := viper.BindPFlags(pFlags); err != nil {
		panic(err)
	}
}
