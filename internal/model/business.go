package model

import "time"

// Business is a point of interest sourced from OpenStreetMap.
type Business struct {
	ID          int64             `json:"id"`
	OSMID       string            `json:"osm_id"` // "<type>/<id>", unique across ingestions
	Name        *string           `json:"name,omitempty"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	Address     *string           `json:"address,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// NameOrEmpty returns the business name, or "" when it has none.
func (b Business) NameOrEmpty() string {
	if b.Name == nil {
		return ""
	}
	return *b.Name
}

// AddressOrEmpty returns the structured address, or "" when it has none.
func (b Business) AddressOrEmpty() string {
	if b.Address == nil {
		return ""
	}
	return *b.Address
}
