// Package transcode moves a profile's review ledger in and out of CSV, XLSX,
// and GeoJSON files.
package transcode

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/ledger"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/observability"
	"github.com/sells-group/locale-cli/internal/store"
)

// Header is the fixed export column order.
var Header = []string{
	"profile", "homeLat", "homeLng", "radiusMeters",
	"osmId", "name", "category", "subcategory", "lat", "lng", "address", "status",
}

// FormatError reports a file that cannot be imported at all.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "transcode: invalid file: " + e.Reason
}

// ImportResult counts rows applied to and rows rejected from the ledger.
// Rows carrying the unreviewed sentinel are in neither count.
type ImportResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Transcoder reads businesses from the store and writes visits through the ledger.
type Transcoder struct {
	store  store.Store
	ledger *ledger.Ledger
}

// New creates a Transcoder.
func New(st store.Store, l *ledger.Ledger) *Transcoder {
	return &Transcoder{store: st, ledger: l}
}

// Records builds the header plus one row per business. Export is not
// filtered: every business is written, unreviewed ones with the sentinel.
func Records(u *model.User, businesses []model.Business, visits map[int64]model.VisitStatus) [][]string {
	var homeLat, homeLng string
	if u.HasHome() {
		homeLat = formatFloat(*u.HomeLat)
		homeLng = formatFloat(*u.HomeLng)
	}
	radius := strconv.Itoa(u.RadiusMeters)

	records := make([][]string, 0, len(businesses)+1)
	records = append(records, slices.Clone(Header))
	for _, b := range businesses {
		status := model.Unreviewed
		if s, ok := visits[b.ID]; ok {
			status = string(s)
		}
		records = append(records, []string{
			u.Username, homeLat, homeLng, radius,
			b.OSMID, b.NameOrEmpty(), b.Category, b.Subcategory,
			formatFloat(b.Lat), formatFloat(b.Lng), b.AddressOrEmpty(), status,
		})
	}
	return records
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// load gathers the profile, every stored business, and the profile's visits.
func (t *Transcoder) load(ctx context.Context, userID int64) ([][]string, error) {
	u, err := t.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	businesses, err := t.store.ListBusinesses(ctx, store.BusinessQuery{})
	if err != nil {
		return nil, eris.Wrap(err, "transcode: list businesses")
	}
	visits, err := t.ledger.VisitMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Records(u, businesses, visits), nil
}

// ExportCSV writes the profile's ledger as CSV.
func (t *Transcoder) ExportCSV(ctx context.Context, w io.Writer, userID int64) error {
	records, err := t.load(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, FormatCSV(records)); err != nil {
		return eris.Wrap(err, "transcode: write csv")
	}
	zap.L().Info("transcode: csv exported", zap.Int64("user_id", userID), zap.Int("rows", len(records)-1))
	return nil
}

// ImportCSV applies the statuses in a CSV file to the profile's ledger.
func (t *Transcoder) ImportCSV(ctx context.Context, r io.Reader, userID int64) (*ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "transcode: read csv")
	}
	return t.apply(ctx, ParseCSV(string(raw)), userID)
}

// apply validates the header, then applies each data row. Bad rows are
// counted as skipped; only store failures abort.
func (t *Transcoder) apply(ctx context.Context, records [][]string, userID int64) (*ImportResult, error) {
	if len(records) < 2 {
		return nil, &FormatError{Reason: "file is empty or has no data rows"}
	}
	osmIdx := slices.Index(records[0], "osmId")
	statusIdx := slices.Index(records[0], "status")
	if osmIdx == -1 || statusIdx == -1 {
		return nil, &FormatError{Reason: `header must include "osmId" and "status" columns`}
	}
	if _, err := t.ledger.Get(ctx, userID); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for _, rec := range records[1:] {
		osmID := cell(rec, osmIdx)
		raw := cell(rec, statusIdx)
		if osmID == "" || raw == "" {
			res.Skipped++
			continue
		}
		if raw == model.Unreviewed {
			continue
		}
		status, err := model.ParseVisitStatus(raw)
		if err != nil {
			res.Skipped++
			continue
		}
		b, err := t.store.GetBusinessByOSMID(ctx, osmID)
		if errors.Is(err, store.ErrNotFound) {
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "transcode: lookup %s", osmID)
		}
		if _, err := t.ledger.RecordVisit(ctx, userID, b.ID, status); err != nil {
			return nil, err
		}
		res.Updated++
	}

	observability.RecordImport(res.Updated, res.Skipped)
	zap.L().Info("transcode: import applied",
		zap.Int64("user_id", userID),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func cell(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
