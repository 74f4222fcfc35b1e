// Package nearby finds the routes serving stops around a point and
// ranks them the way a rider scanning a street corner would expect.
package nearby

import (
	"sort"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/catalog"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/geo"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// Stops further than this are not "nearby".
const searchRadiusKm = 0.3

// Search runs nearby lookups against one catalog snapshot. Now is
// overridable so ranking that depends on the clock (night routes,
// holidays) stays testable.
type Search struct {
	Data *catalog.DataSheet
	Now  func() time.Time
}

func New(data *catalog.DataSheet) *Search {
	return &Search{Data: data, Now: time.Now}
}

// Result of a nearby search. ClosestStop is always populated from the
// full stop list, even when nothing is inside the search radius, so
// callers can tell the user how far away the nearest stop is.
type Result struct {
	Routes          []*object.RouteSearchResultEntry
	ClosestStop     *object.Stop
	ClosestDistance float64
	Lat             float64
	Lng             float64
}

// FindRoutes collects every route serving a stop within 0.3 km of the
// given point, deduplicates branches and variants, and ranks them.
// Route numbers in excluded are skipped.
func (s *Search) FindRoutes(lat, lng float64, excluded map[string]bool, isInterchangeSearch bool) *Result {
	origin := geo.Coordinates{Lat: lat, Lng: lng}

	var closestStop *object.Stop
	closestDistance := -1.0
	var nearbyStops []*object.StopInfo

	for stopID, stop := range s.Data.StopList {
		distance := origin.Distance(stop.Location)
		if closestDistance < 0 || distance < closestDistance {
			closestStop = stop
			closestDistance = distance
		}
		if distance > searchRadiusKm {
			continue
		}
		co := object.IdentifyStopOperator(stopID)
		if co == nil {
			continue
		}
		nearbyStops = append(nearbyStops, &object.StopInfo{
			StopID:   stopID,
			Distance: distance,
			Data:     stop,
			Co:       co,
		})
	}

	candidates := make(map[string]*object.RouteSearchResultEntry)
	for _, stopInfo := range nearbyStops {
		s.collectRoutesAt(stopInfo, origin, excluded, isInterchangeSearch, candidates)
	}

	result := &Result{
		ClosestStop:     closestStop,
		ClosestDistance: closestDistance,
		Lat:             lat,
		Lng:             lng,
	}
	if len(candidates) == 0 {
		return result
	}

	routes := make([]*object.RouteSearchResultEntry, 0, len(candidates))
	for _, entry := range candidates {
		routes = append(routes, entry)
	}
	s.rank(routes, isInterchangeSearch)

	// A route may be reachable from several nearby stops; keep the
	// best-ranked occurrence only.
	addedKeys := make(map[string]bool)
	for _, entry := range routes {
		if !addedKeys[entry.RouteKey] {
			addedKeys[entry.RouteKey] = true
			result.Routes = append(result.Routes, entry)
		}
	}
	return result
}

// collectRoutesAt scans the route list for routes calling at one
// nearby stop, deduplicating by business key. When a business key is
// seen from two stops, the closer stop wins; at equal distance the
// lower service type, then the lower GTFS ID.
func (s *Search) collectRoutesAt(stopInfo *object.StopInfo, origin geo.Coordinates, excluded map[string]bool, isInterchangeSearch bool, candidates map[string]*object.RouteSearchResultEntry) {
	keys := make([]string, 0, len(s.Data.RouteList))
	for key := range s.Data.RouteList {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		route := s.Data.RouteList[key]
		if excluded[route.RouteNumber] || route.CtbIsCircular {
			continue
		}
		co := servingOperator(route, stopInfo.StopID)
		if co == nil {
			continue
		}

		businessKey := route.BusinessKey(co)
		existing, ok := candidates[businessKey]
		if !ok {
			candidates[businessKey] = &object.RouteSearchResultEntry{
				RouteKey:            key,
				Route:               route,
				Co:                  co,
				StopInfo:            stopInfo,
				Origin:              &origin,
				IsInterchangeSearch: isInterchangeSearch,
			}
			continue
		}
		if existing.StopInfo.Distance < stopInfo.Distance {
			continue
		}
		preferred := route.ServiceTypeValue() < existing.Route.ServiceTypeValue() ||
			(route.ServiceTypeValue() == existing.Route.ServiceTypeValue() &&
				route.GtfsIDValue() < existing.Route.GtfsIDValue())
		if preferred {
			existing.RouteKey = key
			existing.Route = route
			existing.Co = co
			existing.StopInfo = stopInfo
		}
	}
}

// servingOperator returns the highest-priority operator under which
// the route calls at stopID.
func servingOperator(route *object.Route, stopID string) *object.Operator {
	for _, op := range []*object.Operator{
		object.OperatorKMB, object.OperatorCTB, object.OperatorNLB, object.OperatorMTRBus,
		object.OperatorGMB, object.OperatorLightRail, object.OperatorMTR,
	} {
		if _, ok := route.Bound[op.Name]; !ok {
			continue
		}
		for _, id := range route.Stops[op.Name] {
			if id == stopID {
				return op
			}
		}
	}
	return nil
}

// Overnight routes that do not carry the "N" prefix.
var nightRouteNumbers = map[string]bool{
	"270S": true, "271S": true, "293S": true, "701S": true, "796S": true,
}

// Suffix-"S" special departures that are genuinely all-day services.
var allDaySSuffix = map[string]bool{
	"89S": true, "796S": true,
}

// rank orders candidates by a composite heuristic built around the
// numeric part of the route number, with additive offsets pushing the
// right groups up or down: minibuses and rail sort after buses (rail
// sorts first when searching for interchanges instead), night routes
// float to the top during the 01:00-05:00 window and sink otherwise,
// special departures sink, and recreation routes sink hard on working
// days.
func (s *Search) rank(routes []*object.RouteSearchResultEntry, isInterchangeSearch bool) {
	now := s.Now()
	isNight := util.IsNightServiceHours(now)
	isHoliday := s.Data.IsHolidayOrWeekend(now)

	weight := func(entry *object.RouteSearchResultEntry) int {
		route := entry.Route
		number := route.RouteNumber
		prefix := number[:1]
		suffix := number[len(number)-1:]
		n := numericPart(number)

		if _, ok := route.Bound[object.OperatorGMB.Name]; ok {
			n += 1000
		} else if _, ok := route.Bound[object.OperatorMTR.Name]; ok {
			if isInterchangeSearch {
				n -= 2000
			} else {
				n += 2000
			}
		}
		if prefix == "N" || nightRouteNumbers[number] {
			if isNight {
				n -= 10000
			} else {
				n += 10000
			}
		}
		if suffix == "S" && !allDaySSuffix[number] {
			n += 3000
		}
		if !isHoliday && (prefix == "R" || suffix == "R") {
			n += 100000
		}
		if (prefix[0] < '0' || prefix[0] > '9') && prefix != "K" {
			n += 400
		}
		return n
	}

	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if wa, wb := weight(a), weight(b); wa != wb {
			return wa < wb
		}
		if a.Route.RouteNumber != b.Route.RouteNumber {
			return a.Route.RouteNumber < b.Route.RouteNumber
		}
		if ta, tb := a.Route.ServiceTypeValue(), b.Route.ServiceTypeValue(); ta != tb {
			return ta < tb
		}
		if a.Co.Ordinal() != b.Co.Ordinal() {
			return a.Co.Ordinal() < b.Co.Ordinal()
		}
		return mtrLineRank(a.Route) > mtrLineRank(b.Route)
	})
}

func mtrLineRank(route *object.Route) int {
	if _, ok := route.Bound[object.OperatorMTR.Name]; ok {
		return object.MtrLineSortingIndex(route.RouteNumber)
	}
	return 10
}

func numericPart(number string) int {
	var digits strings.Builder
	for _, c := range number {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n := 0
	for _, c := range digits.String() {
		n = n*10 + int(c-'0')
	}
	return n
}

