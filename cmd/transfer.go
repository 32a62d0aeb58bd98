package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/transcode"
)

// -- export --

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export businesses and the active profile's statuses",
	Long:  "Writes every stored business with the profile's status as CSV or XLSX, or the businesses within the profile radius as GeoJSON. Output goes to stdout unless --out is set; XLSX requires --out.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format := strings.ToLower(exportFormat)
		switch format {
		case "csv", "geojson":
		case "xlsx":
			if exportOut == "" {
				return eris.New("export: --out is required for xlsx")
			}
		default:
			return eris.Errorf("export: unknown format %q (valid: csv, xlsx, geojson)", exportFormat)
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

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrap(err, "export: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		switch format {
		case "csv":
			err = env.Transcoder.ExportCSV(ctx, w, u.ID)
		case "xlsx":
			err = env.Transcoder.ExportXLSX(ctx, w, u.ID)
		case "geojson":
			err = env.Transcoder.ExportGeoJSON(ctx, w, u.ID)
		}
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if exportOut != "" {
			zap.L().Info("export complete",
				zap.String("profile", u.Username),
				zap.String("format", format),
				zap.String("path", exportOut),
			)
		}
		return nil
	},
}

// -- import --

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply statuses from an exported CSV or XLSX file to the active profile",
	Long:  "Reads the osmId and status columns. Unknown businesses and invalid statuses are skipped; rows marked unreviewed leave existing statuses alone.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		u, err := env.activeProfile(ctx)
		if err != nil {
			return err
		}

		var res *transcode.ImportResult
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			res, err = env.Transcoder.ImportXLSX(ctx, path, u.ID)
		} else {
			f, openErr := os.Open(path)
			if openErr != nil {
				return eris.Wrap(openErr, "import: open file")
			}
			defer f.Close() //nolint:errcheck
			res, err = env.Transcoder.ImportCSV(ctx, f, u.ID)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d, skipped %d\n", res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx, or geojson")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd, importCmd)
}
