package overpass

import (
	"strconv"
	"strings"
)

// Selector restricts one top-level OSM key. A nil Values list accepts any value.
type Selector struct {
	Key    string
	Values []string
}

// AllowList decides which real-world entities become trackable businesses.
// Editing it changes what every future fetch returns.
var AllowList = []Selector{
	{Key: "amenity", Values: []string{
		"restaurant", "cafe", "bar", "pub", "fast_food", "ice_cream", "food_court",
		"pharmacy", "bank", "atm", "clinic", "dentist", "doctors", "hospital",
		"veterinary", "post_office", "library", "cinema", "theatre", "nightclub",
		"arts_centre", "community_centre", "gym", "studio", "marketplace",
	}},
	{Key: "shop"},
	{Key: "tourism", Values: []string{
		"hotel", "motel", "hostel", "guest_house", "museum", "gallery",
		"attraction", "viewpoint", "information",
	}},
	{Key: "leisure", Values: []string{
		"fitness_centre", "sports_centre", "swimming_pool", "bowling_alley",
		"dance", "escape_game", "miniature_golf",
	}},
	{Key: "craft"},
}

// BuildQuery renders an Overpass QL query selecting allow-listed nodes, ways,
// and relations within radiusMeters of (lat, lng), with centroids and tags.
func BuildQuery(lat, lng float64, radiusMeters, timeoutSecs int) string {
	around := "(around:" + strconv.Itoa(radiusMeters) + "," + ftoa(lat) + "," + ftoa(lng) + ")"

	var b strings.Builder
	b.WriteString("[out:json][timeout:" + strconv.Itoa(timeoutSecs) + "];\n(\n")
	for _, sel := range AllowList {
		b.WriteString(`  nwr["` + sel.Key + `"`)
		if len(sel.Values) > 0 {
			b.WriteString(`~"^(` + strings.Join(sel.Values, "|") + `)$"`)
		}
		b.WriteString("]" + around + ";\n")
	}
	b.WriteString(");\nout center tags;")
	return b.String()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}
