package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/category"
	"github.com/sells-group/locale-cli/internal/filter"
	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/ingest"
	"github.com/sells-group/locale-cli/internal/ledger"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/stats"
	"github.com/sells-group/locale-cli/internal/view"
)

const (
	maxImportBytes = 10 << 20
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Ledger.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]profileResponse, 0, len(users))
	for i := range users {
		out = append(out, newProfileResponse(&users[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.deps.Ledger.CreateProfile(r.Context(), req.Username, req.PIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newProfileResponse(u))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newProfileResponse(profileFrom(r)))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u := profileFrom(r)
	if !ledger.VerifyPIN(u, req.PIN) {
		respondError(w, http.StatusUnauthorized, "invalid PIN")
		return
	}
	respondJSON(w, http.StatusOK, newProfileResponse(u))
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat          *float64 `json:"lat"`
		Lng          *float64 `json:"lng"`
		RadiusMeters int      `json:"radius_meters"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Lat == nil || req.Lng == nil {
		respondError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	if req.RadiusMeters == 0 {
		req.RadiusMeters = profileFrom(r).RadiusMeters
	}
	u, err := s.deps.Ledger.SetLocation(r.Context(), profileFrom(r).ID, *req.Lat, *req.Lng, req.RadiusMeters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newProfileResponse(u))
}

type businessItem struct {
	model.Business
	DisplayName    string   `json:"display_name"`
	Status         string   `json:"status"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Distance       string   `json:"distance,omitempty"`
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	groups, err := filter.ParseStatusGroups(q.Get("status"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	criteria := filter.Criteria{
		Statuses:    groups,
		Categories:  filter.ParseCategories(q.Get("category")),
		SearchQuery: q.Get("q"),
	}

	u := profileFrom(r)
	v, err := view.Load(r.Context(), s.deps.Store, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	matched := filter.Apply(v.Businesses, v.Visits, criteria)
	items := make([]businessItem, 0, len(matched))
	for _, b := range matched {
		item := businessItem{
			Business:    b,
			DisplayName: category.DisplayName(b.Name, b.Subcategory),
			Status:      model.Unreviewed,
		}
		if st, ok := v.Visits[b.ID]; ok {
			item.Status = string(st)
		}
		if d, ok := view.Distance(u, b); ok {
			item.DistanceMeters = &d
			item.Distance = geo.FormatDistance(d)
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":      len(v.Businesses),
		"matched":    len(items),
		"businesses": items,
	})
}

func (s *Server) handleRecordVisit(w http.ResponseWriter, r *http.Request) {
	businessID, ok := pathID(r, "businessID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid business id")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := model.ParseVisitStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.deps.Store.GetBusiness(r.Context(), businessID); err != nil {
		s.writeError(w, r, err)
		return
	}
	visit, err := s.deps.Ledger.RecordVisit(r.Context(), profileFrom(r).ID, businessID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, visit)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, err := view.Load(r.Context(), s.deps.Store, profileFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats.Aggregate(v.Businesses, v.Visits))
}

func (s *Server) handleStartFetch(w http.ResponseWriter, r *http.Request) {
	u := profileFrom(r)
	if !u.HasHome() {
		respondError(w, http.StatusBadRequest, "profile has no home location")
		return
	}

	session, err := s.deps.Tracker.Begin(u.ID)
	if errors.Is(err, ingest.ErrAlreadyFetching) {
		respondJSON(w, http.StatusConflict, fetchConflict{Error: err.Error(), Session: session})
		return
	}

	lat, lng, radius := *u.HomeLat, *u.HomeLng, u.RadiusMeters
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.deps.Fetcher.FetchAndMerge(s.baseCtx, lat, lng, radius)
		done := s.deps.Tracker.Finish(u.ID, session.ID, res, err)
		if err != nil {
			s.log.Warn("fetch failed",
				zap.Int64("profile_id", u.ID),
				zap.String("session_id", session.ID),
				zap.String("kind", string(done.ErrorKind)),
				zap.Error(err),
			)
		}
	}()

	respondJSON(w, http.StatusAccepted, session)
}

func (s *Server) handleFetchStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.deps.Tracker.Get(profileFrom(r).ID)
	if !ok {
		respondError(w, http.StatusNotFound, "no fetch for this profile")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	u := profileFrom(r)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(u, "csv"))
	if err := s.deps.Transcoder.ExportCSV(r.Context(), w, u.ID); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	u := profileFrom(r)
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", attachment(u, "xlsx"))
	if err := s.deps.Transcoder.ExportXLSX(r.Context(), w, u.ID); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	u := profileFrom(r)
	w.Header().Set("Content-Type", "application/geo+json")
	if err := s.deps.Transcoder.ExportGeoJSON(r.Context(), w, u.ID); err != nil {
		s.writeError(w, r, err)
	}
}

func attachment(u *model.User, ext string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": u.Username + "-businesses." + ext})
}

// handleImport accepts a CSV body, or an XLSX workbook when the request
// Content-Type says so.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	u := profileFrom(r)
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), xlsxMediaType) {
		tmp, err := os.CreateTemp("", "locale-import-*.xlsx")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, body); err != nil {
			tmp.Close() //nolint:errcheck
			if errors.As(err, new(*http.MaxBytesError)) {
				s.writeError(w, r, err)
				return
			}
			respondError(w, http.StatusBadRequest, "could not read upload")
			return
		}
		if err := tmp.Close(); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.deps.Transcoder.ImportXLSX(r.Context(), tmp.Name(), u.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.deps.Transcoder.ImportCSV(r.Context(), body, u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Geocoder == nil {
		respondError(w, http.StatusServiceUnavailable, "geocoding disabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	places, err := s.deps.Geocoder.Search(r.Context(), q)
	if err != nil {
		s.log.Warn("geocode search failed", zap.String("query", q), zap.Error(err))
		respondError(w, http.StatusBadGateway, "geocoder unavailable")
		return
	}
	respondJSON(w, http.StatusOK, places)
}

func (s *Server) handleGeocodeReverse(w http.ResponseWriter, r *http.Request) {
	if s.deps.Geocoder == nil {
		respondError(w, http.StatusServiceUnavailable, "geocoding disabled")
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		respondError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	place, err := s.deps.Geocoder.Reverse(r.Context(), lat, lng)
	if err != nil {
		s.log.Warn("geocode reverse failed", zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
		respondError(w, http.StatusBadGateway, "geocoder unavailable")
		return
	}
	respondJSON(w, http.StatusOK, place)
}
