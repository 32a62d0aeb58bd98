package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		tags     map[string]string
		expected Info
	}{
		{
			name:     "bakery rule",
			tags:     map[string]string{"shop": "bakery"},
			expected: Info{Category: "Food & Drink", Subcategory: "Bakery"},
		},
		{
			name:     "restaurant rule",
			tags:     map[string]string{"amenity": "restaurant", "name": "Luigi's"},
			expected: Info{Category: "Food & Drink", Subcategory: "Restaurant"},
		},
		{
			name:     "amenity rule wins over shop rule by table order",
			tags:     map[string]string{"shop": "bakery", "amenity": "cafe"},
			expected: Info{Category: "Food & Drink", Subcategory: "Cafe"},
		},
		{
			name:     "exact rule beats fallback on an earlier key",
			tags:     map[string]string{"shop": "kiosk", "tourism": "hotel"},
			expected: Info{Category: "Tourism", Subcategory: "Hotel"},
		},
		{
			name:     "shop fallback",
			tags:     map[string]string{"shop": "second_hand"},
			expected: Info{Category: "Shopping", Subcategory: "Second Hand"},
		},
		{
			name:     "shop fallback before amenity fallback",
			tags:     map[string]string{"amenity": "car_wash", "shop": "car_repair"},
			expected: Info{Category: "Shopping", Subcategory: "Car Repair"},
		},
		{
			name:     "amenity fallback",
			tags:     map[string]string{"amenity": "car_wash"},
			expected: Info{Category: "Services", Subcategory: "Car Wash"},
		},
		{
			name:     "tourism fallback",
			tags:     map[string]string{"tourism": "guest_house"},
			expected: Info{Category: "Tourism", Subcategory: "Guest House"},
		},
		{
			name:     "leisure fallback",
			tags:     map[string]string{"leisure": "escape_game"},
			expected: Info{Category: "Leisure", Subcategory: "Escape Game"},
		},
		{
			name:     "craft fallback",
			tags:     map[string]string{"craft": "brewery"},
			expected: Info{Category: "Crafts", Subcategory: "Brewery"},
		},
		{
			name:     "empty fallback value is ignored",
			tags:     map[string]string{"shop": "", "craft": "tailor"},
			expected: Info{Category: "Crafts", Subcategory: "Tailor"},
		},
		{
			name:     "no known keys",
			tags:     map[string]string{"building": "yes"},
			expected: Info{Category: "Other", Subcategory: "Business"},
		},
		{
			name:     "empty map",
			tags:     map[string]string{},
			expected: Info{Category: "Other", Subcategory: "Business"},
		},
		{
			name:     "nil map",
			tags:     nil,
			expected: Info{Category: "Other", Subcategory: "Business"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.tags))
		})
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	tags := map[string]string{"amenity": "pharmacy", "shop": "chemist", "craft": "x"}
	first := Categorize(tags)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Categorize(tags))
	}
}

func TestDefaultTable_Pinned(t *testing.T) {
	tbl := Default()
	assert.Equal(t, 1, Version())
	require.Len(t, tbl.Rules, 53)
	assert.Equal(t, tbl.Rules, Rules())
	assert.Equal(t, Rule{Key: "amenity", Value: "restaurant", Info: Info{"Food & Drink", "Restaurant"}}, tbl.Rules[0])
	assert.Equal(t, Rule{Key: "leisure", Value: "dance", Info: Info{"Entertainment", "Dance"}}, tbl.Rules[len(tbl.Rules)-1])

	var keys []string
	for _, fb := range tbl.Fallback {
		keys = append(keys, fb.Key)
	}
	assert.Equal(t, []string{"shop", "amenity", "tourism", "leisure", "craft"}, keys)
	assert.Equal(t, Info{"Other", "Business"}, tbl.Default)
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable([]byte("version: 0\ndefault: {category: A, subcategory: B}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version must be positive")

	_, err = ParseTable([]byte("version: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default classification")

	_, err = ParseTable([]byte("version: 1\nrules:\n  - {tag: shop, category: A, subcategory: B}\ndefault: {category: A, subcategory: B}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not key=value")

	_, err = ParseTable([]byte("version: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rules")
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Fast Food", TitleCase("fast_food"))
	assert.Equal(t, "Bicycle", TitleCase("bicycle"))
	assert.Equal(t, "DIY Store", TitleCase("DIY_store"))
	assert.Equal(t, "", TitleCase(""))
	assert.Equal(t, "E-cigarette", TitleCase("e-cigarette"))
	assert.Equal(t, "Cafe;bar", TitleCase("cafe;bar"))
	assert.Equal(t, "2nd Hand", TitleCase("2nd_hand"))
	assert.Equal(t, "Ice Cream", TitleCase("ice_cream"))
	assert.Equal(t, "Écurie", TitleCase("écurie"))
}

func TestCategorize_FallbackKeepsTagCasing(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"e-cigarette", "E-cigarette"},
		{"cafe;bar", "Cafe;bar"},
		{"second_hand", "Second Hand"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := Categorize(map[string]string{"shop": tt.value})
			assert.Equal(t, tt.want, got.Subcategory)
		})
	}
}

func TestDisplayName(t *testing.T) {
	name := "Corner Deli"
	empty := ""
	assert.Equal(t, "Corner Deli", DisplayName(&name, "Deli"))
	assert.Equal(t, "Unnamed Deli", DisplayName(nil, "Deli"))
	assert.Equal(t, "Unnamed Deli", DisplayName(&empty, "Deli"))
}
