package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/ingest"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch businesses around the active profile's home",
	Long:  "Queries Overpass for allow-listed POIs within the profile radius and merges them into the store. Existing rows are refreshed in place; visits are never touched.",
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
		if !u.HasHome() {
			return eris.Errorf("profile %q has no home location (run profile locate first)", u.Username)
		}

		engine := newEngine(env.Store)
		session, err := ingest.NewTracker().Run(ctx, u.ID, func(ctx context.Context) (*ingest.Result, error) {
			return engine.FetchAndMerge(ctx, *u.HomeLat, *u.HomeLng, u.RadiusMeters)
		})
		if err != nil {
			zap.L().Error("fetch failed",
				zap.String("profile", u.Username),
				zap.String("kind", string(session.ErrorKind)),
				zap.Error(err),
			)
			return eris.Wrapf(err, "fetch (%s)", session.ErrorKind)
		}

		res := session.Result
		took := session.CompletedAt.Sub(session.StartedAt).Round(time.Millisecond)
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d elements: %d new, %d updated, %d dropped (%s)\n",
			res.Elements, res.Inserted, res.Updated, res.Dropped, took)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
