// Package staging derives the furnishing breakdown and the provider prompt
// for a staging request. Everything in this package is pure.
package staging

import "strings"

// RoomType is the closed set of room types with a furnishing table.
type RoomType int

const (
	// RoomOther is the fallback for any unrecognized label.
	RoomOther RoomType = iota
	RoomLivingRoom
	RoomBedroom
	RoomKitchen
	RoomDiningRoom
	RoomOffice
)

var roomLabels = map[RoomType]string{
	RoomLivingRoom: "living room",
	RoomBedroom:    "bedroom",
	RoomKitchen:    "kitchen",
	RoomDiningRoom: "dining room",
	RoomOffice:     "office",
}

// RoomTypes lists the recognized room types in display order.
func RoomTypes() []RoomType {
	return []RoomType{RoomLivingRoom, RoomBedroom, RoomKitchen, RoomDiningRoom, RoomOffice}
}

// String returns the canonical lowercase label.
func (r RoomType) String() string {
	if label, ok := roomLabels[r]; ok {
		return label
	}
	return "other"
}

// ParseRoomType matches label case-insensitively against the known room
// types. Unknown labels, including empty ones, yield RoomOther.
func ParseRoomType(label string) RoomType {
	lower := strings.ToLower(label)
	for _, r := range RoomTypes() {
		if roomLabels[r] == lower {
			return r
		}
	}
	return RoomOther
}

// Style is the closed set of decorating styles with a palette table.
type Style int

const (
	// StyleOther is the fallback for any unrecognized label.
	StyleOther Style = iota
	StyleModern
	StyleTraditional
	StyleMinimalist
	StyleIndustrial
	StyleScandinavian
)

var styleLabels = map[Style]string{
	StyleModern:       "modern",
	StyleTraditional:  "traditional",
	StyleMinimalist:   "minimalist",
	StyleIndustrial:   "industrial",
	StyleScandinavian: "scandinavian",
}

// Styles lists the recognized styles in display order.
func Styles() []Style {
	return []Style{StyleModern, StyleTraditional, StyleMinimalist, StyleIndustrial, StyleScandinavian}
}

// String returns the canonical lowercase label.
func (s Style) String() string {
	if label, ok := styleLabels[s]; ok {
		return label
	}
	return "other"
}

// ParseStyle matches label case-insensitively against the known styles.
// Unknown labels, including empty ones, yield StyleOther.
func ParseStyle(label string) Style {
	lower := strings.ToLower(label)
	for _, s := range Styles() {
		if styleLabels[s] == lower {
			return s
		}
	}
	return StyleOther
}

// roomEntry is the per-room furnishing table row.
type roomEntry struct {
	furniture   []string
	accessories []string
}

func roomTable(r RoomType) roomEntry {
	switch r {
	case RoomLivingRoom:
		return roomEntry{
			furniture:   []string{"Sofa", "Coffee table", "Side tables", "TV stand", "Armchairs"},
			accessories: []string{"Throw pillows", "Blankets", "Remote organizer"},
		}
	case RoomBedroom:
		return roomEntry{
			furniture:   []string{"Bed frame", "Nightstands", "Dresser", "Reading chair"},
			accessories: []string{"Bedding set", "Decorative pillows", "Table lamps"},
		}
	case RoomKitchen:
		return roomEntry{
			furniture:   []string{"Bar stools", "Kitchen island", "Dining chairs"},
			accessories: []string{"Fruit bowl", "Kitchen towels", "Decorative containers"},
		}
	case RoomDiningRoom:
		return roomEntry{
			furniture:   []string{"Dining table", "Dining chairs", "Buffet", "Bar cart"},
			accessories: []string{"Table runner", "Centerpiece", "Dinnerware"},
		}
	case RoomOffice:
		return roomEntry{
			furniture:   []string{"Desk", "Office chair", "Bookshelf", "Filing cabinet"},
			accessories: []string{"Desk organizer", "Books", "Desk lamp"},
		}
	default:
		return roomEntry{
			furniture: []string{"Accent furniture", "Storage solutions"},
		}
	}
}

// styleEntry is the per-style palette table row.
type styleEntry struct {
	colors    []string
	materials []string
	lighting  []string
	decor     []string
}

func styleTable(s Style) styleEntry {
	switch s {
	case StyleModern:
		return styleEntry{
			colors:    []string{"White", "Gray", "Black", "Bold accent colors"},
			materials: []string{"Glass", "Metal", "Leather", "Concrete"},
			lighting:  []string{"Recessed lighting", "Pendant lights", "Floor lamps"},
			decor:     []string{"Abstract art", "Geometric patterns", "Minimalist sculptures"},
		}
	case StyleTraditional:
		return styleEntry{
			colors:    []string{"Warm neutrals", "Rich blues", "Deep reds", "Gold accents"},
			materials: []string{"Wood", "Fabric", "Brass", "Natural stone"},
			lighting:  []string{"Chandeliers", "Table lamps", "Sconces"},
			decor:     []string{"Classic paintings", "Ornate mirrors", "Traditional patterns"},
		}
	case StyleMinimalist:
		return styleEntry{
			colors:    []string{"White", "Beige", "Light gray", "Natural tones"},
			materials: []string{"Natural wood", "Linen", "Cotton", "Stone"},
			lighting:  []string{"Natural light", "Simple pendant lights", "Floor lamps"},
			decor:     []string{"Single statement piece", "Plants", "Clean lines"},
		}
	case StyleIndustrial:
		return styleEntry{
			colors:    []string{"Gray", "Black", "Brown", "Rust accents"},
			materials: []string{"Metal", "Raw wood", "Brick", "Concrete"},
			lighting:  []string{"Exposed bulbs", "Metal fixtures", "Track lighting"},
			decor:     []string{"Industrial art", "Metal sculptures", "Vintage posters"},
		}
	case StyleScandinavian:
		return styleEntry{
			colors:    []string{"White", "Light gray", "Soft pastels", "Natural wood tones"},
			materials: []string{"Light wood", "Wool", "Linen", "Ceramic"},
			lighting:  []string{"Pendant lights", "String lights", "Natural light"},
			decor:     []string{"Nordic art", "Hygge elements", "Cozy textiles"},
		}
	default:
		return styleEntry{}
	}
}

// category names a breakdown set a prompt trigger appends to.
type category int

const (
	categoryAccessories category = iota
	categoryDecor
)

// trigger appends labels when its keyword appears in the free-text prompt.
type trigger struct {
	keyword  string
	category category
	labels   []string
}

// triggers are evaluated in order; each one fires independently.
var triggers = []trigger{
	{keyword: "plant", category: categoryAccessories, labels: []string{"Indoor plants", "Planters"}},
	{keyword: "book", category: categoryAccessories, labels: []string{"Books", "Bookends"}},
	{keyword: "candle", category: categoryAccessories, labels: []string{"Candles", "Candle holders"}},
	{keyword: "mirror", category: categoryDecor, labels: []string{"Wall mirrors", "Decorative mirrors"}},
	{keyword: "rug", category: categoryAccessories, labels: []string{"Area rug", "Floor coverings"}},
}
