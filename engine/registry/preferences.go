package registry

import (
	"sort"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// maxLastLookups caps the recent-lookup history.
const maxLastLookups = 50

// Preferences is the persisted user state: display language, pinned
// favourite route stops, and the recent-lookup history. It lives in
// the catalog store next to the cached catalog documents.
type Preferences struct {
	Language    string                             `json:"language"`
	Favourites  map[int]*object.FavouriteRouteStop `json:"favouriteRouteStops"`
	LastLookups []object.LastLookupRoute           `json:"lastLookupRoutes"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		Language:   "zh",
		Favourites: map[int]*object.FavouriteRouteStop{},
	}
}

// favouriteIDs returns the pinned favourite IDs in ascending order.
func (p *Preferences) favouriteIDs() []int {
	ids := make([]int, 0, len(p.Favourites))
	for id := range p.Favourites {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// recordLookup moves key to the front of the history, deduplicating
// and trimming to the cap.
func (p *Preferences) recordLookup(key string) {
	entries := make([]object.LastLookupRoute, 0, len(p.LastLookups)+1)
	entries = append(entries, object.LastLookupRoute{RouteKey: key})
	for _, e := range p.LastLookups {
		if e.RouteKey != key {
			entries = append(entries, e)
		}
	}
	if len(entries) > maxLastLookups {
		entries = entries[:maxLastLookups]
	}
	p.LastLookups = entries
}
