package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/model"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage review profiles",
	Long:  "Commands for creating profiles, listing them, and setting the home location and search radius.",
}

// -- profile create --

var profileCreatePIN string

var profileCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		u, err := env.Ledger.CreateProfile(ctx, args[0], profileCreatePIN)
		if err != nil {
			return eris.Wrap(err, "profile create")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s (id %d)\n", u.Username, u.ID)
		return nil
	},
}

// -- profile list --

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		users, err := env.Ledger.List(ctx)
		if err != nil {
			return eris.Wrap(err, "profile list")
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No profiles found.")
			return nil
		}
		formatProfileList(cmd.OutOrStdout(), users)
		return nil
	},
}

// -- profile show --

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		u, err := env.activeProfile(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	},
}

// -- profile locate --

var (
	locateLat         float64
	locateLng         float64
	locateAddress     string
	locateRadiusMiles float64
)

var profileLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Set the active profile's home location and radius",
	Long:  "Sets home from --lat/--lng, or from the first geocoding match for --address. --radius-miles is clamped to 0.25-2.0; omit it to keep the current radius.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		flags := cmd.Flags()
		hasCoords := flags.Changed("lat") && flags.Changed("lng")
		if !hasCoords && locateAddress == "" {
			return eris.New("profile locate: provide --lat and --lng, or --address")
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		u, err := env.activeProfile(ctx)
		if err != nil {
			return err
		}

		lat, lng := locateLat, locateLng
		if !hasCoords {
			places, err := initGeocoder().Search(ctx, locateAddress)
			if err != nil {
				return eris.Wrap(err, "profile locate: geocode")
			}
			if len(places) == 0 {
				return eris.Errorf("profile locate: no match for %q", locateAddress)
			}
			lat, lng = places[0].Lat, places[0].Lng
			zap.L().Info("geocoded address",
				zap.String("address", locateAddress),
				zap.String("match", places[0].DisplayName),
			)
		}

		radius := u.RadiusMeters
		if locateRadiusMiles > 0 {
			radius = int(math.Round(geo.MilesToMeters(locateRadiusMiles)))
		}

		u, err = env.Ledger.SetLocation(ctx, u.ID, lat, lng, radius)
		if err != nil {
			return eris.Wrap(err, "profile locate")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Home set to %.6f, %.6f within %s\n",
			*u.HomeLat, *u.HomeLng, geo.FormatDistance(float64(u.RadiusMeters)))
		return nil
	},
}

func formatProfileList(w io.Writer, users []model.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tHOME\tRADIUS\tPIN")
	for _, u := range users {
		home := "-"
		if u.HasHome() {
			home = fmt.Sprintf("%.5f, %.5f", *u.HomeLat, *u.HomeLng)
		}
		pin := "no"
		if u.HasPIN() {
			pin = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, home, geo.FormatDistance(float64(u.RadiusMeters)), pin)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileCreatePIN, "set-pin", "", "optional 4-digit PIN protecting the profile")

	profileLocateCmd.Flags().Float64Var(&locateLat, "lat", 0, "home latitude")
	profileLocateCmd.Flags().Float64Var(&locateLng, "lng", 0, "home longitude")
	profileLocateCmd.Flags().StringVar(&locateAddress, "address", "", "address to geocode instead of --lat/--lng")
	profileLocateCmd.Flags().Float64Var(&locateRadiusMiles, "radius-miles", 0, "search radius in miles (default keeps current)")

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileLocateCmd)
	rootCmd.AddCommand(profileCmd)
}
