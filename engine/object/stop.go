package object

import "github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/geo"

// Stop is a physical stop or station as published in the catalog.
type Stop struct {
	Location geo.Coordinates `json:"location"`
	Name     BilingualText   `json:"name"`
}

// StopInfo records where along a route a particular stop sits, and how
// far it is from a search origin.
type StopInfo struct {
	StopID   string    `json:"stopId"`
	Distance float64   `json:"distance"`
	Data     *Stop     `json:"data,omitempty"`
	Co       *Operator `json:"-"`
}

// RouteSearchResultEntry pairs a resolved route with the operator it
// was matched under, and optionally the nearby stop that produced it.
type RouteSearchResultEntry struct {
	RouteKey            string           `json:"routeKey"`
	Route               *Route           `json:"route"`
	Co                  *Operator        `json:"-"`
	StopInfo            *StopInfo        `json:"stopInfo,omitempty"`
	Origin              *geo.Coordinates `json:"origin,omitempty"`
	IsInterchangeSearch bool             `json:"isInterchangeSearch,omitempty"`
}

// StopData is one entry of a branch-merged stop sequence: the stop, its
// ID, the service type of the branch that won it, and the set of branch
// serial numbers that serve it.
type StopData struct {
	StopID      string       `json:"stopId"`
	ServiceType int          `json:"serviceType"`
	Stop        *Stop        `json:"stop"`
	Route       *Route       `json:"route"`
	BranchIDs   map[int]bool `json:"-"`
}

// FavouriteRouteStop is a persisted pin of one stop on one route. The
// route and stop are stored by value so the favourite survives catalog
// refreshes; a refresh re-anchors it via fuzzy key resolution.
type FavouriteRouteStop struct {
	FavouriteID int    `json:"favouriteId"`
	RouteKey    string `json:"routeKey"`
	StopID      string `json:"stopId"`
	Co          string `json:"co"`
	Index       int    `json:"index"`
	Stop        Stop   `json:"stop"`
	Route       Route  `json:"route"`
}

// LastLookupRoute is one entry of the recent-lookup list, keyed the
// same way FindRouteByKey expects.
type LastLookupRoute struct {
	RouteKey string `json:"routeKey"`
}
