package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// VisitStatus is the review state a user assigned to a business.
type VisitStatus string

const (
	StatusVisited      VisitStatus = "visited"
	StatusNotVisited   VisitStatus = "not_visited"
	StatusSkipped      VisitStatus = "skipped"
	StatusNotABusiness VisitStatus = "not_a_business"
	StatusClosed       VisitStatus = "closed"
	StatusDuplicate    VisitStatus = "duplicate"
)

// Unreviewed is the export/import sentinel for a business with no visit row.
// It is not a VisitStatus and is never stored.
const Unreviewed = "unreviewed"

// VisitStatuses lists every status in declaration order.
var VisitStatuses = []VisitStatus{
	StatusVisited,
	StatusNotVisited,
	StatusSkipped,
	StatusNotABusiness,
	StatusClosed,
	StatusDuplicate,
}

// IsFlagged reports whether the status marks the record as not a valid
// reviewable business. Flagged records are accounted separately.
func (s VisitStatus) IsFlagged() bool {
	switch s {
	case StatusNotABusiness, StatusClosed, StatusDuplicate:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s VisitStatus) Valid() bool {
	switch s {
	case StatusVisited, StatusNotVisited, StatusSkipped,
		StatusNotABusiness, StatusClosed, StatusDuplicate:
		return true
	default:
		return false
	}
}

// ParseVisitStatus converts a string into a VisitStatus.
func ParseVisitStatus(s string) (VisitStatus, error) {
	st := VisitStatus(s)
	if !st.Valid() {
		return "", eris.Errorf("unknown visit status: %q", s)
	}
	return st, nil
}

// Visit records one user's review of one business. (UserID, BusinessID) is unique.
type Visit struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"user_id"`
	BusinessID int64       `json:"business_id"`
	Status     VisitStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
}

// StatusGroup buckets statuses for filtering.
type StatusGroup string

const (
	GroupVisited    StatusGroup = "visited"
	GroupNotVisited StatusGroup = "not_visited"
	GroupUnreviewed StatusGroup = "unreviewed"
	GroupFlagged    StatusGroup = "flagged"
)

// ParseStatusGroup converts a string into a StatusGroup.
func ParseStatusGroup(s string) (StatusGroup, error) {
	switch g := StatusGroup(s); g {
	case GroupVisited, GroupNotVisited, GroupUnreviewed, GroupFlagged:
		return g, nil
	default:
		return "", eris.Errorf("unknown status group: %q (valid: visited, not_visited, unreviewed, flagged)", s)
	}
}

// GroupOf derives the status group of a business. reviewed is false when the
// user has no visit row for it. Skipped belongs to no group, so ok is false.
func GroupOf(status VisitStatus, reviewed bool) (group StatusGroup, ok bool) {
	if !reviewed {
		return GroupUnreviewed, true
	}
	switch {
	case status == StatusVisited:
		return GroupVisited, true
	case status == StatusNotVisited:
		return GroupNotVisited, true
	case status.IsFlagged():
		return GroupFlagged, true
	default:
		return "", false
	}
}
