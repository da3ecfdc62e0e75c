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
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/state"
	"github.com/rotblauer/catride/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optStatsJSON bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect or clear persisted ride totals",
}

var statsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print persisted ride totals",
	Long: `Prints the totals persisted in the data dir.
The state database is opened read-only, so this fails while webd holds it.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		store, err := state.Open(viper.GetString("datadir"), true)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		st, ok, err := store.ReadStats()
		if err != nil {
			log.Fatalln(err)
		}
		if !ok {
			st = stats.Stats{Unit: params.SpeedUnitKMH}
		}
		st = st.In(params.SpeedUnit(viper.GetString("unit")))
		if optStatsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				Stats   stats.Stats   `json:"stats"`
				Display stats.Display `json:"display"`
			}{st, st.Display()}); err != nil {
				log.Fatalln(err)
			}
			return
		}
		fmt.Println(st.String())
	},
}

var statsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear persisted ride totals",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		store, err := state.Open(viper.GetString("datadir"), false)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()
		if err := store.ClearStats(); err != nil {
			log.Fatalln(err)
		}
		fmt.Println("Cleared.")
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsShowCmd, statsClearCmd)

	statsShowCmd.Flags().BoolVar(&optStatsJSON, "json", false, "Print JSON")
}
