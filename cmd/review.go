package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locale-cli/internal/category"
	"github.com/sells-group/locale-cli/internal/filter"
	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/stats"
	"github.com/sells-group/locale-cli/internal/store"
	"github.com/sells-group/locale-cli/internal/view"
)

// -- visit --

var visitCmd = &cobra.Command{
	Use:   "visit <business> <status>",
	Short: "Record a review outcome",
	Long:  "Records status for a business, identified by OSM ID (node/123) or numeric ID. Status is one of visited, not_visited, closed, skipped, duplicate, not_a_business.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, err := model.ParseVisitStatus(args[1])
		if err != nil {
			return err
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
		b, err := lookupBusiness(ctx, env.Store, args[0])
		if err != nil {
			return err
		}
		if _, err := env.Ledger.RecordVisit(ctx, u.ID, b.ID, status); err != nil {
			return eris.Wrap(err, "visit")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", category.DisplayName(b.Name, b.Subcategory), status)
		return nil
	},
}

func lookupBusiness(ctx context.Context, st store.Store, ref string) (*model.Business, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		b, err := st.GetBusiness(ctx, id)
		return b, eris.Wrapf(err, "business %s", ref)
	}
	b, err := st.GetBusinessByOSMID(ctx, ref)
	return b, eris.Wrapf(err, "business %s", ref)
}

// -- list --

var (
	listStatus   string
	listCategory string
	listSearch   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List businesses within the active profile's radius",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		groups, err := filter.ParseStatusGroups(listStatus)
		if err != nil {
			return err
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
		v, err := view.Load(ctx, env.Store, u)
		if err != nil {
			return err
		}

		matched := filter.Apply(v.Businesses, v.Visits, filter.Criteria{
			Statuses:    groups,
			Categories:  filter.ParseCategories(listCategory),
			SearchQuery: listSearch,
		})
		if len(matched) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No businesses found.")
			return nil
		}
		formatBusinessList(cmd.OutOrStdout(), u, matched, v.Visits)
		return nil
	},
}

func formatBusinessList(w io.Writer, u *model.User, businesses []model.Business, visits map[int64]model.VisitStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOSM ID\tNAME\tCATEGORY\tSTATUS\tDISTANCE")
	for _, b := range businesses {
		status := model.Unreviewed
		if s, ok := visits[b.ID]; ok {
			status = string(s)
		}
		dist := "-"
		if d, ok := view.Distance(u, b); ok {
			dist = geo.FormatDistance(d)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s / %s\t%s\t%s\n",
			b.ID, b.OSMID, category.DisplayName(b.Name, b.Subcategory), b.Category, b.Subcategory, status, dist)
	}
	tw.Flush() //nolint:errcheck
}

// -- stats --

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review coverage for the active profile",
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
		v, err := view.Load(ctx, env.Store, u)
		if err != nil {
			return err
		}

		sum := stats.Aggregate(v.Businesses, v.Visits)
		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		formatStats(cmd.OutOrStdout(), sum)
		return nil
	},
}

func formatStats(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "Explored %d%% of %d businesses\n", s.Percentage, s.Total)
	fmt.Fprintf(w, "  Visited:      %d\n", s.Visited)
	fmt.Fprintf(w, "  Not visited:  %d\n", s.NotVisited)
	fmt.Fprintf(w, "  Unreviewed:   %d\n", s.Unreviewed)
	fmt.Fprintf(w, "  Flagged:      %d\n", s.Flagged)
	if len(s.Categories) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTOTAL\tVISITED\tNOT VISITED\tUNREVIEWED\tEXPLORED")
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d%%\n", c.Category, c.Total, c.Visited, c.NotVisited, c.Unreviewed, c.Percentage)
	}
	tw.Flush() //nolint:errcheck
}

// -- categories --

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the tag classification rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Rule table version %d\n", category.Version())
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TAG\tCATEGORY\tSUBCATEGORY")
		for _, r := range category.Rules() {
			fmt.Fprintf(tw, "%s=%s\t%s\t%s\n", r.Key, r.Value, r.Info.Category, r.Info.Subcategory)
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "comma-separated status groups: visited, not_visited, unreviewed, flagged")
	listCmd.Flags().StringVar(&listCategory, "category", "", "comma-separated categories")
	listCmd.Flags().StringVar(&listSearch, "search", "", "case-insensitive match on name, subcategory, or address")

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the summary as JSON")

	rootCmd.AddCommand(visitCmd, listCmd, statsCmd, categoriesCmd)
}
