package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/ingest"
	"github.com/sells-group/locale-cli/internal/ledger"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/store"
	"github.com/sells-group/locale-cli/internal/transcode"
)

// PINHeader carries the PIN for protected profiles.
const PINHeader = "X-Profile-PIN"

type ctxKey struct{}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	// Export handlers set this before writing; an error body is not a download.
	w.Header().Del("Content-Disposition")

	var (
		fe       *transcode.FormatError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, ledger.ErrProfileNotFound), errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, ledger.ErrEmptyUsername),
		errors.Is(err, ledger.ErrInvalidPIN),
		errors.Is(err, ledger.ErrInvalidLocation),
		errors.Is(err, ledger.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fe):
		respondError(w, http.StatusBadRequest, fe.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) withProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "profileID")
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid profile id")
			return
		}
		u, err := s.deps.Ledger.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func (s *Server) requirePIN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ledger.VerifyPIN(profileFrom(r), r.Header.Get(PINHeader)) {
			respondError(w, http.StatusUnauthorized, "invalid PIN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func profileFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(ctxKey{}).(*model.User)
	return u
}

type profileResponse struct {
	*model.User
	HasPIN bool `json:"has_pin"`
}

func newProfileResponse(u *model.User) profileResponse {
	return profileResponse{User: u, HasPIN: u.HasPIN()}
}

type fetchConflict struct {
	Error   string         `json:"error"`
	Session ingest.Session `json:"session"`
}
