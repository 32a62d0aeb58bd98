// Package ledger records per-user review outcomes and manages the profiles
// they belong to.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/observability"
	"github.com/sells-group/locale-cli/internal/store"
)

// ErrInvalidStatus is returned when a visit status is not one of model.VisitStatuses.
var ErrInvalidStatus = errors.New("ledger: invalid visit status")

// Ledger is the single writer of visit rows.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New creates a Ledger over st.
func New(st store.Store) *Ledger {
	return &Ledger{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordVisit stores status for (userID, businessID), replacing any earlier
// status and refreshing the timestamp. The business is not required to exist.
func (l *Ledger) RecordVisit(ctx context.Context, userID, businessID int64, status model.VisitStatus) (*model.Visit, error) {
	if !status.Valid() {
		return nil, eris.Wrapf(ErrInvalidStatus, "ledger: invalid visit status %q", status)
	}
	v := &model.Visit{
		UserID:     userID,
		BusinessID: businessID,
		Status:     status,
		Timestamp:  l.now(),
	}
	inserted, err := l.store.UpsertVisit(ctx, v)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: record visit user=%d business=%d", userID, businessID)
	}
	observability.RecordVisit(string(status))
	zap.L().Debug("ledger: visit recorded",
		zap.Int64("user_id", userID),
		zap.Int64("business_id", businessID),
		zap.String("status", string(status)),
		zap.Bool("inserted", inserted),
	)
	return v, nil
}

// VisitMap returns businessID -> status for every business userID reviewed.
func (l *Ledger) VisitMap(ctx context.Context, userID int64) (map[int64]model.VisitStatus, error) {
	visits, err := l.store.ListVisits(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: visit map user=%d", userID)
	}
	m := make(map[int64]model.VisitStatus, len(visits))
	for _, v := range visits {
		m[v.BusinessID] = v.Status
	}
	return m, nil
}
