// Package resolver answers route lookups against a loaded catalog:
// route-number search, fuzzy key resolution and branch-merged stop
// sequences.
package resolver

import (
	"sort"
	"strings"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/branchedlist"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/catalog"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// Resolver queries one published catalog snapshot. It holds no state
// of its own, so a catalog refresh just means building a new Resolver.
type Resolver struct {
	Data *catalog.DataSheet
}

func New(data *catalog.DataSheet) *Resolver {
	return &Resolver{Data: data}
}

// searchOperators is the priority order used both to attribute a route
// to its primary operator and to sort search results.
var searchOperators = []*object.Operator{
	object.OperatorKMB, object.OperatorCTB, object.OperatorNLB, object.OperatorMTRBus,
	object.OperatorGMB, object.OperatorLightRail, object.OperatorMTR,
}

// primaryOperator picks the highest-priority operator present in the
// route's bound map.
func primaryOperator(r *object.Route) *object.Operator {
	for _, op := range searchOperators {
		if _, ok := r.Bound[op.Name]; ok {
			return op
		}
	}
	return nil
}

// FindRoutes searches the catalog by route number. With exact set the
// number must match exactly, otherwise a prefix match is used. Both
// predicates may be nil. Returns RouteNotFoundError when nothing in
// the catalog matches at all; an empty result after deduplication is
// returned as an empty slice.
func (r *Resolver) FindRoutes(input string, exact bool, predicate func(*object.Route) bool, coPredicate func(*object.Route, *object.Operator) bool) ([]*object.RouteSearchResultEntry, error) {
	matches := func(number string) bool {
		if exact {
			return number == input
		}
		return strings.HasPrefix(number, input)
	}

	matched := make(map[string]*object.RouteSearchResultEntry)
	for key, route := range r.Data.RouteList {
		// The return half of a circular CTB route is a duplicate
		if route.CtbIsCircular {
			continue
		}
		if !matches(route.RouteNumber) {
			continue
		}
		if predicate != nil && !predicate(route) {
			continue
		}
		co := primaryOperator(route)
		if co == nil {
			continue
		}
		if coPredicate != nil && !coPredicate(route, co) {
			continue
		}

		businessKey := route.BusinessKey(co)
		existing, ok := matched[businessKey]
		if !ok {
			matched[businessKey] = &object.RouteSearchResultEntry{RouteKey: key, Route: route, Co: co}
			continue
		}
		if preferOverExisting(route, existing.Route) {
			existing.RouteKey = key
			existing.Route = route
			existing.Co = co
		}
	}

	if len(matched) == 0 {
		return nil, util.RouteNotFoundError{Key: input}
	}

	routes := make([]*object.RouteSearchResultEntry, 0, len(matched))
	for _, entry := range matched {
		routes = append(routes, entry)
	}
	sortSearchResults(routes)
	return routes, nil
}

// preferOverExisting applies the service-type dedupe rule: the lower
// numeric service type wins, ties go to the lower numeric GTFS ID, and
// unparseable values keep the existing entry.
func preferOverExisting(candidate, existing *object.Route) bool {
	ct, et := candidate.ServiceTypeValue(), existing.ServiceTypeValue()
	if ct != et {
		return ct < et
	}
	return candidate.GtfsIDValue() < existing.GtfsIDValue()
}

func sortSearchResults(routes []*object.RouteSearchResultEntry) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		coA := primaryOperator(a.Route)
		coB := primaryOperator(b.Route)
		if coA.Ordinal() != coB.Ordinal() {
			return coA.Ordinal() < coB.Ordinal()
		}

		if coA == object.OperatorMTR || coA == object.OperatorLightRail {
			la := object.MtrLineSortingIndex(a.Route.RouteNumber)
			lb := object.MtrLineSortingIndex(b.Route.RouteNumber)
			if la != lb {
				return la < lb
			}
			ba, bb := a.Route.Bound[coA.Name], b.Route.Bound[coB.Name]
			if ba != bb {
				return ba > bb
			}
			return a.Route.RouteNumber < b.Route.RouteNumber
		}

		// Buses group by route number first, so a prefix search does
		// not interleave different numbers by variant.
		if a.Route.RouteNumber != b.Route.RouteNumber {
			return a.Route.RouteNumber < b.Route.RouteNumber
		}

		switch coA {
		case object.OperatorNLB:
			na, nb := parseOrZero(a.Route.NlbID), parseOrZero(b.Route.NlbID)
			if na != nb {
				return na < nb
			}
		case object.OperatorGMB:
			ga, gb := parseOrZero(a.Route.GtfsID), parseOrZero(b.Route.GtfsID)
			if ga != gb {
				return ga < gb
			}
			fallthrough
		default:
			ta, tb := parseOrZero(a.Route.ServiceType), parseOrZero(b.Route.ServiceType)
			if ta != tb {
				return ta < tb
			}
			if coA == object.OperatorCTB {
				// CTB bound codes are not comparable across variants;
				// plain variants rank ahead of flagged special ones.
				sa, sb := len(a.Route.CtbSpecial) > 0, len(b.Route.CtbSpecial) > 0
				if sa != sb {
					return !sa
				}
			} else {
				ba, bb := a.Route.Bound[coA.Name], b.Route.Bound[coB.Name]
				if ba != bb {
					return ba > bb
				}
			}
		}
		return false
	})
}

func parseOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// FindRouteByKey resolves a catalog route key, falling back to the
// closest key by edit distance when the exact key is gone, optionally
// restricted to one route number. Used to re-anchor persisted
// favourites after a catalog refresh.
func (r *Resolver) FindRouteByKey(inputKey, routeNumber string) (string, *object.Route) {
	if route, ok := r.Data.RouteList[inputKey]; ok {
		return inputKey, route
	}

	lowered := strings.ToLower(inputKey)
	bestKey := ""
	var bestRoute *object.Route
	bestDistance := int(^uint(0) >> 1)
	for key, route := range r.Data.RouteList {
		if routeNumber != "" && !strings.EqualFold(route.RouteNumber, routeNumber) {
			continue
		}
		d := util.EditDistance(strings.ToLower(key), lowered)
		if d < bestDistance || (d == bestDistance && key < bestKey) {
			bestKey = key
			bestRoute = route
			bestDistance = d
		}
	}
	return bestKey, bestRoute
}

// StopByID returns a catalog stop, or nil.
func (r *Resolver) StopByID(stopID string) *object.Stop {
	return r.Data.StopList[stopID]
}

// PossibleNextCharResult is the input-panel hint for route-number
// entry.
type PossibleNextCharResult struct {
	Characters    []rune
	HasExactMatch bool
}

// PossibleNextChar returns the set of characters that extend input to
// at least one known route number, and whether input itself is one.
func (r *Resolver) PossibleNextChar(input string) PossibleNextCharResult {
	seen := make(map[rune]bool)
	var chars []rune
	exact := false
	for _, route := range r.Data.RouteList {
		number := route.RouteNumber
		if !strings.HasPrefix(number, input) {
			continue
		}
		if len(number) > len(input) {
			c := []rune(number[len(input):])[0]
			if !seen[c] {
				seen[c] = true
				chars = append(chars, c)
			}
		} else {
			exact = true
		}
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return PossibleNextCharResult{Characters: chars, HasExactMatch: exact}
}

// AllStops builds the branch-merged stop sequence of one route and
// direction: every service-type branch becomes its own ordered list,
// branches merge lowest service type first, and conflicts resolve in
// favour of the lower service type (then lower GTFS ID). Each returned
// stop carries the set of branch serial numbers serving it.
func (r *Resolver) AllStops(routeNumber, bound string, co *object.Operator, gtfsID string) []*object.StopData {
	type branch struct {
		list        *branchedlist.BranchedList[string, *object.StopData]
		serviceType int
	}

	var branches []branch
	resolve := func(a, b *object.StopData) *object.StopData {
		if a.ServiceType != b.ServiceType {
			if a.ServiceType < b.ServiceType {
				return a
			}
			return b
		}
		if a.Route.GtfsIDValue() <= b.Route.GtfsIDValue() {
			return a
		}
		return b
	}

	serial := 0
	for _, route := range r.branchRoutes(routeNumber, bound, co, gtfsID) {
		list := branchedlist.New[string, *object.StopData](serial, resolve)
		serviceType := parseOr(route.ServiceType, 1)
		for _, stopID := range route.Stops[co.Name] {
			list.Add(stopID, &object.StopData{
				StopID:      stopID,
				ServiceType: serviceType,
				Stop:        r.Data.StopList[stopID],
				Route:       route,
			})
		}
		branches = append(branches, branch{list: list, serviceType: serviceType})
		serial++
	}

	sort.SliceStable(branches, func(i, j int) bool {
		return branches[i].serviceType < branches[j].serviceType
	})

	merged := branchedlist.New[string, *object.StopData](-1, resolve)
	for _, b := range branches {
		merged.Merge(b.list)
	}

	values := merged.ValuesWithBranchIDs()
	out := make([]*object.StopData, 0, len(values))
	for _, v := range values {
		data := *v.Value
		data.BranchIDs = v.BranchIDs
		out = append(out, &data)
	}
	return out
}

// branchRoutes lists the service-type branches of one route direction,
// in catalog key order.
func (r *Resolver) branchRoutes(routeNumber, bound string, co *object.Operator, gtfsID string) []*object.Route {
	var out []*object.Route
	for _, route := range sortedRoutes(r.Data) {
		if route.RouteNumber != routeNumber || !route.HasOperator(co) {
			continue
		}
		if co == object.OperatorNLB {
			if bound != route.NlbID {
				continue
			}
		} else {
			if bound != route.Bound[co.Name] {
				continue
			}
			if co == object.OperatorGMB && gtfsPrefix(gtfsID) != gtfsPrefix(route.GtfsID) {
				continue
			}
		}
		out = append(out, route)
	}
	return out
}

// OriginsAndDestinations lists the distinct origins and destinations
// across every branch of a route direction. Entries sharing a Chinese
// name are deduplicated keeping the lowest service type's wording, and
// the result is ordered by service type.
func (r *Resolver) OriginsAndDestinations(routeNumber, bound string, co *object.Operator, gtfsID string) (origs, dests []object.BilingualText) {
	branches := r.branchRoutes(routeNumber, bound, co, gtfsID)
	sort.SliceStable(branches, func(i, j int) bool {
		return parseOr(branches[i].ServiceType, 1) < parseOr(branches[j].ServiceType, 1)
	})
	for _, route := range branches {
		origs = appendDistinctText(origs, route.Orig)
		dests = appendDistinctText(dests, route.Dest)
	}
	return
}

func appendDistinctText(list []object.BilingualText, text object.BilingualText) []object.BilingualText {
	for _, t := range list {
		if t.Zh == text.Zh {
			return list
		}
	}
	return append(list, text)
}

func gtfsPrefix(id string) string {
	if len(id) >= 4 {
		return id[:4]
	}
	return id
}

func parseOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// sortedRoutes iterates the route list in key order so branch serial
// numbers are stable across calls.
func sortedRoutes(d *catalog.DataSheet) []*object.Route {
	keys := make([]string, 0, len(d.RouteList))
	for k := range d.RouteList {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	routes := make([]*object.Route, 0, len(keys))
	for _, k := range keys {
		routes = append(routes, d.RouteList[k])
	}
	return routes
}
