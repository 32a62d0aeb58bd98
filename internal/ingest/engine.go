// Package ingest fetches points of interest from Overpass and merges them
// into the business store.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/category"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/observability"
	"github.com/sells-group/locale-cli/internal/store"
	"github.com/sells-group/locale-cli/pkg/overpass"
)

// Result summarizes one fetch-and-merge run.
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Dropped  int `json:"dropped"`
	Elements int `json:"elements"`
}

// Engine merges Overpass results into the store. Visits are never touched.
type Engine struct {
	client overpass.Client
	store  store.Store
	now    func() time.Time
}

// NewEngine creates an ingestion engine.
func NewEngine(client overpass.Client, st store.Store) *Engine {
	return &Engine{
		client: client,
		store:  st,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FetchAndMerge queries Overpass around (lat, lng) and upserts every usable
// element keyed by OSM id. Rows upserted before a failure stay in place.
func (e *Engine) FetchAndMerge(ctx context.Context, lat, lng float64, radiusMeters int) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest.engine"))
	start := time.Now()

	log.Info("fetching businesses",
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.Int("radius_meters", radiusMeters),
	)

	elements, err := e.client.Fetch(ctx, lat, lng, radiusMeters)
	if err != nil {
		observability.RecordFetchFailure(string(Classify(err)))
		return nil, eris.Wrap(err, "ingest: fetch")
	}

	businesses, dropped := Normalize(elements, e.now())
	res := &Result{Elements: len(elements), Dropped: dropped}

	for i := range businesses {
		if err := ctx.Err(); err != nil {
			observability.RecordFetchFailure(string(KindCanceled))
			return res, eris.Wrap(err, "ingest: merge canceled")
		}
		b := &businesses[i]
		inserted, err := e.store.UpsertBusiness(ctx, b)
		if err != nil {
			observability.RecordFetchFailure(string(KindStore))
			log.Error("upsert failed", zap.String("osm_id", b.OSMID), zap.Error(err))
			return res, eris.Wrapf(err, "ingest: upsert %s", b.OSMID)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	elapsed := time.Since(start)
	observability.RecordIngest(res.Inserted, res.Updated, res.Dropped, elapsed)
	log.Info("fetch complete",
		zap.Int("elements", res.Elements),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("dropped", res.Dropped),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// Normalize converts raw elements into businesses stamped with fetchedAt.
// Elements without tags or coordinates are dropped and counted.
func Normalize(elements []overpass.Element, fetchedAt time.Time) ([]model.Business, int) {
	out := make([]model.Business, 0, len(elements))
	dropped := 0
	for _, el := range elements {
		if len(el.Tags) == 0 {
			dropped++
			continue
		}
		lat, lng, ok := el.Coordinates()
		if !ok {
			dropped++
			continue
		}
		info := category.Categorize(el.Tags)
		out = append(out, model.Business{
			OSMID:       el.OSMID(),
			Name:        nonEmpty(el.Tags["name"]),
			Category:    info.Category,
			Subcategory: info.Subcategory,
			Lat:         lat,
			Lng:         lng,
			Address:     address(el.Tags),
			Tags:        el.Tags,
			FetchedAt:   fetchedAt,
		})
	}
	return out, dropped
}

// address joins house number and street, whichever are present.
func address(tags map[string]string) *string {
	var parts []string
	if v := tags["addr:housenumber"]; v != "" {
		parts = append(parts, v)
	}
	if v := tags["addr:street"]; v != "" {
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return nil
	}
	return nonEmpty(strings.Join(parts, " "))
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
