package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/locale-cli/pkg/overpass"
)

// ErrAlreadyFetching is returned when a profile already has a run in progress.
var ErrAlreadyFetching = errors.New("ingest: fetch already in progress")

// State is the lifecycle state of a fetch session.
type State string

const (
	StateInProgress State = "in_progress"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// ErrorKind classifies why a session failed.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindParse    ErrorKind = "parse"
	KindStore    ErrorKind = "store"
	KindCanceled ErrorKind = "canceled"
)

// Classify maps a FetchAndMerge error to its kind. Anything that is not
// cancellation or an Overpass error happened while writing to the store.
func Classify(err error) ErrorKind {
	var ne *overpass.NetworkError
	var pe *overpass.ParseError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &ne):
		return KindNetwork
	default:
		return KindStore
	}
}

// Session is the observable record of one fetch for one profile.
type Session struct {
	ID          string     `json:"id"`
	ProfileID   int64      `json:"profile_id"`
	State       State      `json:"state"`
	Result      *Result    `json:"result,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Tracker keeps the latest session per profile. The in-progress guard is
// advisory: it stops overlapping fetches started through the same Tracker.
type Tracker struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[int64]*Session)}
}

// Begin opens a new in-progress session for profileID.
func (t *Tracker) Begin(profileID int64) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[profileID]; ok && s.State == StateInProgress {
		return *s, ErrAlreadyFetching
	}
	s := &Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		State:     StateInProgress,
		StartedAt: time.Now().UTC(),
	}
	t.sessions[profileID] = s
	return *s, nil
}

// Finish closes the session identified by sessionID with the run outcome.
// A stale sessionID is ignored.
func (t *Tracker) Finish(profileID int64, sessionID string, res *Result, err error) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[profileID]
	if !ok || s.ID != sessionID {
		return Session{}
	}
	now := time.Now().UTC()
	s.CompletedAt = &now
	s.Result = res
	if err != nil {
		s.State = StateFailed
		s.ErrorKind = Classify(err)
		s.Error = err.Error()
	} else {
		s.State = StateSucceeded
	}
	return *s
}

// Run executes fn inside a session for profileID and returns the closed session.
func (t *Tracker) Run(ctx context.Context, profileID int64, fn func(context.Context) (*Result, error)) (Session, error) {
	s, err := t.Begin(profileID)
	if err != nil {
		return s, err
	}
	res, runErr := fn(ctx)
	return t.Finish(profileID, s.ID, res, runErr), runErr
}

// Get returns a copy of the latest session for profileID.
func (t *Tracker) Get(profileID int64) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[profileID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}
