package catalog

import (
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// DataSheet is the in-memory route and stop catalog. It is built once
// per ingestion and treated as read-only afterwards; a catalog refresh
// swaps in a whole new DataSheet.
//
// RouteList is keyed by the catalog's opaque route key, StopList by
// stop ID. StopMap cross-references a stop to the equivalent stops of
// other operators (pairs of operator name and foreign stop ID), which
// joint-route ETA interleaving depends on.
type DataSheet struct {
	Holidays  []string                 `json:"holidays"`
	RouteList map[string]*object.Route `json:"routeList"`
	StopList  map[string]*object.Stop  `json:"stopList"`
	StopMap   map[string][][]string    `json:"stopMap"`
}

// IsHoliday reports whether t (in Hong Kong time) is a listed public
// holiday.
func (d *DataSheet) IsHoliday(t time.Time) bool {
	day := t.In(util.HongKongTime).Format("20060102")
	for _, h := range d.Holidays {
		if h == day {
			return true
		}
	}
	return false
}

// IsHolidayOrWeekend is the day class used by recreation-route ranking.
func (d *DataSheet) IsHolidayOrWeekend(t time.Time) bool {
	wd := t.In(util.HongKongTime).Weekday()
	return wd == time.Saturday || wd == time.Sunday || d.IsHoliday(t)
}

// ForeignStops returns the other-operator stops mapped to stopID,
// optionally filtered to one operator.
func (d *DataSheet) ForeignStops(stopID string, co *object.Operator) []string {
	var out []string
	for _, pair := range d.StopMap[stopID] {
		if len(pair) != 2 {
			continue
		}
		if co == nil || object.ValueOf(pair[0]) == co {
			out = append(out, pair[1])
		}
	}
	return out
}
