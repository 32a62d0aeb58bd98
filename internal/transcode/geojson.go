package transcode

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/locale-cli/internal/category"
	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/view"
)

// FeatureCollection renders businesses as GeoJSON points carrying their
// display name, category, and review status.
func FeatureCollection(businesses []model.Business, visits map[int64]model.VisitStatus) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(businesses))}
	for _, b := range businesses {
		status := model.Unreviewed
		if s, ok := visits[b.ID]; ok {
			status = string(s)
		}
		props := map[string]any{
			"id":          b.ID,
			"name":        category.DisplayName(b.Name, b.Subcategory),
			"category":    b.Category,
			"subcategory": b.Subcategory,
			"status":      status,
		}
		if b.Address != nil {
			props["address"] = *b.Address
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         b.OSMID,
			Geometry:   geo.Point(b.Lat, b.Lng),
			Properties: props,
		})
	}
	return fc
}

// ExportGeoJSON writes the businesses inside the profile's radius.
func (t *Transcoder) ExportGeoJSON(ctx context.Context, w io.Writer, userID int64) error {
	u, err := t.ledger.Get(ctx, userID)
	if err != nil {
		return err
	}
	v, err := view.Load(ctx, t.store, u)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(FeatureCollection(v.Businesses, v.Visits))
	if err != nil {
		return eris.Wrap(err, "geojson: marshal")
	}
	if _, err := w.Write(raw); err != nil {
		return eris.Wrap(err, "geojson: write")
	}
	return nil
}
