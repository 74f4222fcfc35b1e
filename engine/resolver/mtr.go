package resolver

import (
	"sort"
	"strings"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// IsMtrStopOnOrAfter reports whether stopID sits at or past relativeTo
// on any branch of the given heavy-rail line and direction.
func (r *Resolver) IsMtrStopOnOrAfter(stopID, relativeTo, lineName, bound string) bool {
	for _, route := range r.Data.RouteList {
		if route.RouteNumber != lineName || !strings.HasSuffix(route.Bound[object.OperatorMTR.Name], bound) {
			continue
		}
		stops := route.Stops[object.OperatorMTR.Name]
		index := indexOf(stops, stopID)
		indexRef := indexOf(stops, relativeTo)
		if indexRef >= 0 && index >= indexRef {
			return true
		}
	}
	return false
}

// IsMtrStopEndOfLine reports whether no branch of the line continues
// past stopID in the given direction.
func (r *Resolver) IsMtrStopEndOfLine(stopID, lineName, bound string) bool {
	for _, route := range r.Data.RouteList {
		if route.RouteNumber != lineName || !strings.HasSuffix(route.Bound[object.OperatorMTR.Name], bound) {
			continue
		}
		stops := route.Stops[object.OperatorMTR.Name]
		if index := indexOf(stops, stopID); index >= 0 && index+1 < len(stops) {
			return false
		}
	}
	return true
}

func indexOf(list []string, x string) int {
	for i, v := range list {
		if v == x {
			return i
		}
	}
	return -1
}

// MtrInterchange describes the transfer options at a heavy-rail
// station: other lines calling at a station of the same name, and
// out-of-station transfers reachable on foot.
type MtrInterchange struct {
	Lines              []string
	OutOfStationLines  []string
	IsOutOfStationPaid bool
	HasLightRail       bool
}

// outOfStationPairs maps stations to the differently-named station
// they connect to outside the gates.
var outOfStationPairs = map[string]string{
	"ETS": "尖沙咀",
	"TST": "尖東",
	"HOK": "中環",
	"CEN": "香港",
}

// MtrStationInterchange computes the interchange data for one station
// of one line. Same-name detection goes through the Chinese stop name,
// which is identical across a station's per-line stop records.
func (r *Resolver) MtrStationInterchange(stopID, lineName string) MtrInterchange {
	interchange := MtrInterchange{
		// Transfers at Tsim Sha Tsui and across the high-speed rail
		// terminus leave the paid area
		IsOutOfStationPaid: stopID != "ETS" && stopID != "TST" && stopID != "KOW" && stopID != "AUS",
	}
	if stopID == "KOW" || stopID == "AUS" {
		interchange.OutOfStationLines = append(interchange.OutOfStationLines, "HighSpeed")
	}
	outOfStationName := outOfStationPairs[stopID]

	stop := r.Data.StopList[stopID]
	if stop == nil {
		return interchange
	}
	stopName := stop.Name.Zh

	for _, route := range r.Data.RouteList {
		if route.RouteNumber == lineName {
			continue
		}
		if _, isMtr := route.Bound[object.OperatorMTR.Name]; isMtr {
			names := r.stopNames(route.Stops[object.OperatorMTR.Name])
			if names[stopName] {
				interchange.Lines = appendUnique(interchange.Lines, route.RouteNumber)
			} else if outOfStationName != "" && names[outOfStationName] {
				interchange.OutOfStationLines = appendUnique(interchange.OutOfStationLines, route.RouteNumber)
			}
		} else if _, isLrt := route.Bound[object.OperatorLightRail.Name]; isLrt && !interchange.HasLightRail {
			if r.stopNames(route.Stops[object.OperatorLightRail.Name])[stopName] {
				interchange.HasLightRail = true
			}
		}
	}

	byLineIndex := func(lines []string) {
		sort.SliceStable(lines, func(i, j int) bool {
			return object.MtrLineSortingIndex(lines[i]) < object.MtrLineSortingIndex(lines[j])
		})
	}
	byLineIndex(interchange.Lines)
	byLineIndex(interchange.OutOfStationLines)
	return interchange
}

func (r *Resolver) stopNames(stopIDs []string) map[string]bool {
	names := make(map[string]bool, len(stopIDs))
	for _, id := range stopIDs {
		if stop := r.Data.StopList[id]; stop != nil {
			names[stop.Name.Zh] = true
		}
	}
	return names
}

func appendUnique(list []string, x string) []string {
	for _, v := range list {
		if v == x {
			return list
		}
	}
	return append(list, x)
}

// StopSpecialDestinations substitutes the destination shown at branch
// stations where the plain terminus would mislead: the Tseung Kwan O
// line splits to Po Lam and LOHAS Park, and the Airport Express shows
// only the remaining terminus once past the airport.
func (r *Resolver) StopSpecialDestinations(stopID string, co *object.Operator, route *object.Route) object.BilingualText {
	bound := route.Bound[co.Name]
	switch stopID {
	case "LHP":
		if strings.Contains(bound, "UT") {
			return object.BilingualText{Zh: "康城", En: "LOHAS Park"}
		}
		return object.BilingualText{Zh: "北角/寶琳", En: "North Point/Po Lam"}
	case "HAH", "POA":
		if strings.Contains(bound, "UT") {
			return object.BilingualText{Zh: "寶琳", En: "Po Lam"}
		}
		return object.BilingualText{Zh: "北角/康城", En: "North Point/LOHAS Park"}
	case "AIR", "AWE":
		if strings.Contains(bound, "UT") {
			return object.BilingualText{Zh: "博覽館", En: "AsiaWorld-Expo"}
		}
	}
	return route.Dest
}
