package catalog

import (
	"strings"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// Normalize applies the one-time ingestion pass over a freshly fetched
// catalog: joint-operation tagging, circular CTB cleanup, heavy-rail
// bound normalization and MTR bus stop aliasing. It mutates the sheet
// in place and must run before the sheet is published or persisted.
func Normalize(d *DataSheet, mtrBusAliases map[string][]string) {
	for _, route := range d.RouteList {
		tagKmbCtbJoint(route)
		normalizeCtbCircular(route)
		normalizeMtrBound(route)
		normalizeLrtCircular(route)
		rewriteMtrBusStops(route, mtrBusAliases)
	}
	markCtbSpecialVariants(d)
}

// markCtbSpecialVariants records, per CTB variant, the stops it serves
// that the longest variant of the same number and direction does not.
// Variants carrying the marker rank after plain ones in search results.
func markCtbSpecialVariants(d *DataSheet) {
	groups := make(map[string][]*object.Route)
	for _, r := range d.RouteList {
		bound, ok := r.Bound[object.OperatorCTB.Name]
		if !ok || r.CtbIsCircular {
			continue
		}
		key := r.RouteNumber + "+" + bound
		groups[key] = append(groups[key], r)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		var longest *object.Route
		for _, r := range group {
			if longest == nil {
				longest = r
				continue
			}
			la := len(r.Stops[object.OperatorCTB.Name])
			lb := len(longest.Stops[object.OperatorCTB.Name])
			if la > lb || (la == lb && r.ServiceType < longest.ServiceType) {
				longest = r
			}
		}
		trunk := make(map[string]bool)
		for _, s := range longest.Stops[object.OperatorCTB.Name] {
			trunk[s] = true
		}
		for _, r := range group {
			if r == longest {
				continue
			}
			for _, s := range r.Stops[object.OperatorCTB.Name] {
				if trunk[s] {
					continue
				}
				if stop := d.StopList[s]; stop != nil {
					r.CtbSpecial = append(r.CtbSpecial, stop.Name)
				}
			}
		}
	}
}

// tagKmbCtbJoint marks routes listing both road operators.
func tagKmbCtbJoint(r *object.Route) {
	if r.HasOperator(object.OperatorKMB) && r.HasOperator(object.OperatorCTB) {
		r.KmbCtbJoint = true
	}
}

// normalizeCtbCircular handles CTB's encoding of circular services.
// The outward half is published with the combined bound code "OI" (or
// "IO"); it keeps the combined code, gets a circular marker appended to
// its destination, and stays visible. The return half arrives
// pre-flagged with ctbIsCircular and is filtered out of search results
// downstream.
func normalizeCtbCircular(r *object.Route) {
	bound, ok := r.Bound[object.OperatorCTB.Name]
	if !ok || len(bound) <= 1 {
		return
	}
	if r.CtbIsCircular {
		return
	}
	if !strings.HasSuffix(r.Dest.Zh, "(循環線)") {
		r.Dest = r.Dest.Append(" (循環線)", " (Circular)")
	}
}

// normalizeMtrBound strips branch prefixes from heavy-rail bound codes
// ("LMC-DT" style), demoting the branch to service type 2. Lok Ma Chau
// branches run to the racecourse-side platform at Fo Tan, hence the
// stop swap.
func normalizeMtrBound(r *object.Route) {
	bound, ok := r.Bound[object.OperatorMTR.Name]
	if !ok || !strings.Contains(bound, "-") {
		return
	}
	parts := strings.SplitN(bound, "-", 2)
	r.Bound[object.OperatorMTR.Name] = parts[1]
	r.ServiceType = "2"

	if parts[0] == "LMC" {
		stops := r.Stops[object.OperatorMTR.Name]
		for i, s := range stops {
			if s == "FOT" {
				stops[i] = "RAC"
			}
		}
	}
}

// normalizeLrtCircular closes the loop of the Tin Shui Wai circular
// light-rail routes, which the feed publishes as an open stop list.
func normalizeLrtCircular(r *object.Route) {
	if r.RouteNumber != "705" && r.RouteNumber != "706" {
		return
	}
	if !r.HasOperator(object.OperatorLightRail) {
		return
	}
	stops := r.Stops[object.OperatorLightRail.Name]
	if len(stops) > 1 && stops[0] != stops[len(stops)-1] {
		r.Stops[object.OperatorLightRail.Name] = append(stops, stops[0])
	}
	r.Dest = object.BilingualText{Zh: "天水圍循環線", En: "TSW Circular"}
}

// rewriteMtrBusStops maps MTR bus stop IDs that only exist in the
// upstream schedule feed back to their catalog stop ID, so stops
// renamed between feed revisions keep matching the stop list.
func rewriteMtrBusStops(r *object.Route, aliases map[string][]string) {
	if len(aliases) == 0 || !r.HasOperator(object.OperatorMTRBus) {
		return
	}
	reverse := make(map[string]string)
	for canonical, upstream := range aliases {
		for _, id := range upstream {
			reverse[id] = canonical
		}
	}
	stops := r.Stops[object.OperatorMTRBus.Name]
	for i, s := range stops {
		if canonical, ok := reverse[s]; ok {
			stops[i] = canonical
		}
	}
}
