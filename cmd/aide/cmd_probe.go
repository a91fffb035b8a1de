package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/aide/internal/calendar"
	"github.com/user/aide/internal/google"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the configured calendar sources and report which respond",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := google.NewCalendarClient(cfg.Google.AccessToken)
		reg := calendar.Probe(ctx, client, cfg.Calendars)

		if reg.Empty() {
			fmt.Fprintln(os.Stdout, "No calendar sources reachable.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%d of %d sources reachable:\n", len(reg.Sources()), len(cfg.Calendars))
		for _, src := range reg.Sources() {
			fmt.Fprintf(os.Stdout, "  %s (%s) id=%s\n", src.Name, src.Kind, src.SourceID)
		}
		return nil
	},
}
