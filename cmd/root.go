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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/catride/app"
	"github.com/rotblauer/catride/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catride",
	Short: "Track rides from location and motion streams",
	Long: `catride turns a stream of location fixes and accelerometer samples
into waypoints and ride statistics.

Run the web daemon to drive sessions and post fixes over HTTP,
or replay a recorded ride from NDJSON.

Every flag can also be set in $HOME/.catride.yaml or as a CATRIDE_ env var,
e.g. CATRIDE_DATADIR or CATRIDE_MAX_ACCURACY.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.catride.yaml)")
	pFlags.String("datadir", params.DatadirRoot, "Directory for state and the waypoint archive")
	pFlags.Int("verbosity", int(slog.LevelInfo), "Log level: -4 debug, 0 info, 4 warn, 8 error")
	pFlags.AddFlagSet(trackingFlags())
	if err := viper.BindPFlags(pFlags); err != nil {
		panic(err)
	}
}

// trackingFlags configure the session, and are shared by every command that runs one.
func trackingFlags() *pflag.FlagSet {
	defaults := params.DefaultTrackingConfig()
	fs := pflag.NewFlagSet("tracking", pflag.ContinueOnError)
	fs.String("manufacturer", "", "Device manufacturer stamped on waypoints")
	fs.String("unit", string(params.SpeedUnitKMH), "Speed unit: km/h, mph or m/s")
	fs.Float64("max-accuracy", defaults.Cleaning.AccuracyThreshold, "Reject fixes with accuracy at or above this many meters")
	fs.Int("motion-buffer", defaults.MotionBufferCapacity, "Motion samples kept per waypoint")
	fs.Duration("fix-timeout", defaults.Location.Timeout, "Report an error when no fix arrives for this long (0 disables)")
	fs.Duration("fix-max-age", defaults.Location.MaximumAge, "Reject fixes older than this (0 disables)")
	return fs
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(params.DefaultConfigName)
	}

	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaultSlog installs a text handler on stderr at the --verbosity level.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.Level(viper.GetInt("verbosity"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("Command", "name", cmd.Name(), "args", args)
}

// trackerConfig builds an app.Config from flags, config file and env.
func trackerConfig() *app.Config {
	config := app.DefaultConfig()
	config.DataDir = viper.GetString("datadir")
	config.Manufacturer = viper.GetString("manufacturer")
	config.Stats = &params.StatsConfig{SpeedUnit: params.SpeedUnit(viper.GetString("unit"))}
	config.Tracking.Cleaning = &params.FixCleaningConfig{
		AccuracyThreshold: viper.GetFloat64("max-accuracy"),
	}
	config.Tracking.MotionBufferCapacity = viper.GetInt("motion-buffer")
	config.Tracking.Location.Timeout = viper.GetDuration("fix-timeout")
	config.Tracking.Location.MaximumAge = viper.GetDuration("fix-max-age")
	return config
}
