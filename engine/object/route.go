package object

import (
	"strconv"
	"strings"
)

// Route describes one direction (and one service-type branch) of a
// route as published in the catalog. The same physical service may
// appear once per service-type variant; variants share a business key
// and differ in ServiceType and stop lists.
//
// Bound, Co and Stops are keyed by operator name. Joint KMB/CTB routes
// list both operators in Co and carry both operators' stop IDs.
type Route struct {
	RouteNumber   string              `json:"route"`
	Bound         map[string]string   `json:"bound"`
	Co            []string            `json:"co"`
	ServiceType   string              `json:"serviceType"`
	NlbID         string              `json:"nlbId"`
	GtfsID        string              `json:"gtfsId"`
	CtbIsCircular bool                `json:"ctbIsCircular,omitempty"`
	KmbCtbJoint   bool                `json:"kmbCtbJoint,omitempty"`
	Dest          BilingualText       `json:"dest"`
	Orig          BilingualText       `json:"orig"`
	Stops         map[string][]string `json:"stops"`
	CtbSpecial    []BilingualText     `json:"ctbSpecial,omitempty"`
}

// Operators returns the route's serving operators as interned values,
// in catalog order.
func (r *Route) Operators() []*Operator {
	ops := make([]*Operator, 0, len(r.Co))
	for _, name := range r.Co {
		ops = append(ops, ValueOf(name))
	}
	return ops
}

// HasOperator reports whether co serves this route.
func (r *Route) HasOperator(co *Operator) bool {
	for _, name := range r.Co {
		if name == co.Name {
			return true
		}
	}
	return false
}

// BusinessKey identifies one logical route and direction across all
// service-type branches: route number, operator, and the bound code
// (the NLB route ID for NLB, plus the GTFS ID prefix for GMB, whose
// bound codes alone do not distinguish districts).
func (r *Route) BusinessKey(co *Operator) string {
	var b strings.Builder
	b.WriteString(r.RouteNumber)
	b.WriteByte(',')
	b.WriteString(co.Name)
	b.WriteByte(',')
	if co == OperatorNLB {
		b.WriteString(r.NlbID)
	} else {
		b.WriteString(r.Bound[co.Name])
	}
	if co == OperatorGMB {
		b.WriteByte(',')
		if len(r.GtfsID) >= 4 {
			b.WriteString(r.GtfsID[:4])
		} else {
			b.WriteString(r.GtfsID)
		}
	}
	return b.String()
}

// ServiceTypeValue returns the numeric service type, or a large
// sentinel when it does not parse, so unparseable types always lose a
// lowest-wins comparison.
func (r *Route) ServiceTypeValue() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.ServiceType))
	if err != nil {
		return 1 << 30
	}
	return n
}

// GtfsIDValue returns the numeric GTFS route ID, or a large sentinel
// when it does not parse.
func (r *Route) GtfsIDValue() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.GtfsID))
	if err != nil {
		return 1 << 30
	}
	return n
}

// Clone returns a deep copy, used when persisting a favourite so the
// record stays valid across catalog refreshes.
func (r *Route) Clone() *Route {
	c := *r
	c.Bound = make(map[string]string, len(r.Bound))
	for k, v := range r.Bound {
		c.Bound[k] = v
	}
	c.Co = append([]string(nil), r.Co...)
	c.Stops = make(map[string][]string, len(r.Stops))
	for k, v := range r.Stops {
		c.Stops[k] = append([]string(nil), v...)
	}
	c.CtbSpecial = append([]BilingualText(nil), r.CtbSpecial...)
	return &c
}
