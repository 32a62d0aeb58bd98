package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitStatus_IsFlagged(t *testing.T) {
	tests := []struct {
		status  VisitStatus
		flagged bool
	}{
		{StatusVisited, false},
		{StatusNotVisited, false},
		{StatusSkipped, false},
		{StatusNotABusiness, true},
		{StatusClosed, true},
		{StatusDuplicate, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.flagged, tt.status.IsFlagged())
		})
	}
}

func TestParseVisitStatus(t *testing.T) {
	for _, s := range VisitStatuses {
		got, err := ParseVisitStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseVisitStatus("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown visit status")

	_, err = ParseVisitStatus(Unreviewed)
	require.Error(t, err, "unreviewed is a sentinel, not a stored status")
}

func TestParseStatusGroup(t *testing.T) {
	g, err := ParseStatusGroup("flagged")
	require.NoError(t, err)
	assert.Equal(t, GroupFlagged, g)

	_, err = ParseStatusGroup("closed")
	assert.Error(t, err)
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		name     string
		status   VisitStatus
		reviewed bool
		group    StatusGroup
		ok       bool
	}{
		{"no visit row", "", false, GroupUnreviewed, true},
		{"visited", StatusVisited, true, GroupVisited, true},
		{"not visited", StatusNotVisited, true, GroupNotVisited, true},
		{"closed", StatusClosed, true, GroupFlagged, true},
		{"duplicate", StatusDuplicate, true, GroupFlagged, true},
		{"not a business", StatusNotABusiness, true, GroupFlagged, true},
		{"skipped has no group", StatusSkipped, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := GroupOf(tt.status, tt.reviewed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.group, g)
		})
	}
}

func TestUser_HasHome(t *testing.T) {
	lat, lng := 40.0, -75.0
	assert.False(t, User{}.HasHome())
	assert.False(t, User{HomeLat: &lat}.HasHome())
	assert.True(t, User{HomeLat: &lat, HomeLng: &lng}.HasHome())
}

func TestBusiness_OptionalFields(t *testing.T) {
	b := Business{}
	assert.Equal(t, "", b.NameOrEmpty())
	assert.Equal(t, "", b.AddressOrEmpty())

	name, addr := "Joe's", "12 Main St"
	b = Business{Name: &name, Address: &addr}
	assert.Equal(t, "Joe's", b.NameOrEmpty())
	assert.Equal(t, "12 Main St", b.AddressOrEmpty())
}
