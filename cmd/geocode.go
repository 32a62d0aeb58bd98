package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locale-cli/pkg/nominatim"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Look up addresses with Nominatim",
}

var geocodeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find coordinates for an address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		places, err := initGeocoder().Search(cmd.Context(), query)
		if err != nil {
			return eris.Wrap(err, "geocode search")
		}
		if len(places) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No matches.")
			return nil
		}
		formatPlaces(cmd.OutOrStdout(), places)
		return nil
	},
}

var geocodeReverseCmd = &cobra.Command{
	Use:   "reverse <lat> <lng>",
	Short: "Find the address nearest to a point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "geocode reverse: latitude %q", args[0])
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "geocode reverse: longitude %q", args[1])
		}
		place, err := initGeocoder().Reverse(cmd.Context(), lat, lng)
		if err != nil {
			return eris.Wrap(err, "geocode reverse")
		}
		formatPlaces(cmd.OutOrStdout(), []nominatim.Place{*place})
		return nil
	},
}

func formatPlaces(w io.Writer, places []nominatim.Place) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAT\tLNG\tADDRESS")
	for _, p := range places {
		fmt.Fprintf(tw, "%.6f\t%.6f\t%s\n", p.Lat, p.Lng, p.DisplayName)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	geocodeCmd.AddCommand(geocodeSearchCmd, geocodeReverseCmd)
	rootCmd.AddCommand(geocodeCmd)
}
