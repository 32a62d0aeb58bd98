package overpass

// Element is a raw OSM node, way, or relation from an Overpass JSON response.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is the centroid Overpass attaches to ways and relations with "out center".
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates returns the element position, preferring direct lat/lon over
// the centroid. ok is false when neither is present.
func (e Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// OSMID returns the globally unique "<type>/<id>" identifier.
func (e Element) OSMID() string {
	return e.Type + "/" + itoa(e.ID)
}

type response struct {
	Version   float64    `json:"version"`
	Generator string     `json:"generator"`
	Remark    string     `json:"remark,omitempty"`
	Elements  *[]Element `json:"elements"`
}
