package object

import (
	"regexp"
	"strings"
	"sync"
)

// Operator is an interned transit operator. Instances are process-wide
// singletons: two Operators are the same operator iff they are the same
// pointer. Built-in operators carry a pattern describing the shape of
// their stop IDs, which lets stop IDs found in the wild be attributed
// to an operator without any extra lookup table.
type Operator struct {
	Name string

	ordinal     int
	stopIDShape *regexp.Regexp
}

var (
	operatorLock  sync.Mutex
	operatorTable = make(map[string]*Operator)
	operatorCount int
)

func internOperator(name string, stopIDShape *regexp.Regexp) *Operator {
	operatorLock.Lock()
	defer operatorLock.Unlock()

	// Lookup is case-insensitive, but the first interning fixes the
	// canonical spelling ("lightRail" stays "lightRail").
	key := strings.ToLower(name)
	if op, ok := operatorTable[key]; ok {
		return op
	}
	op := &Operator{Name: name, ordinal: operatorCount, stopIDShape: stopIDShape}
	operatorTable[key] = op
	operatorCount++
	return op
}

// Built-in operators, interned at init in priority order, so that
// Ordinal doubles as the cross-operator sort priority.
var (
	OperatorKMB       = internOperator("kmb", regexp.MustCompile(`^[0-9A-Z]{16}$`))
	OperatorCTB       = internOperator("ctb", regexp.MustCompile(`^[0-9]{6}$`))
	OperatorNLB       = internOperator("nlb", regexp.MustCompile(`^[0-9]{1,4}$`))
	OperatorMTRBus    = internOperator("mtr-bus", regexp.MustCompile(`^[A-Z]?[0-9]{1,3}[A-Z]?-[A-Z][0-9]{3}$`))
	OperatorGMB       = internOperator("gmb", regexp.MustCompile(`^[0-9]{8}$`))
	OperatorLightRail = internOperator("lightRail", regexp.MustCompile(`^LR[0-9]+$`))
	OperatorMTR       = internOperator("mtr", regexp.MustCompile(`^[A-Z]{3}$`))
)

var builtinOperators = []*Operator{
	OperatorKMB, OperatorCTB, OperatorNLB, OperatorMTRBus,
	OperatorGMB, OperatorLightRail, OperatorMTR,
}

// ValueOf returns the interned Operator for the given name, interning a
// new one (without a stop-ID shape) on first use. Safe for concurrent
// use; repeated calls with the same name return the same instance.
func ValueOf(name string) *Operator {
	return internOperator(name, nil)
}

// Ordinal returns the interning order of the operator. Built-ins are
// interned first, so for them the ordinal is also the display priority.
func (o *Operator) Ordinal() int {
	return o.ordinal
}

// MatchesStopID reports whether id has the shape of this operator's
// stop IDs. Operators interned by name only never match.
func (o *Operator) MatchesStopID(id string) bool {
	return o.stopIDShape != nil && o.stopIDShape.MatchString(id)
}

func (o *Operator) String() string {
	return o.Name
}

var operatorDisplayNames = map[string]BilingualText{
	"kmb":       {Zh: "九巴", En: "KMB"},
	"ctb":       {Zh: "城巴", En: "CTB"},
	"nlb":       {Zh: "嶼巴", En: "NLB"},
	"mtr-bus":   {Zh: "港鐵巴士", En: "MTR Bus"},
	"gmb":       {Zh: "專線小巴", En: "GMB"},
	"lightRail": {Zh: "輕鐵", En: "Light Rail"},
	"mtr":       {Zh: "港鐵", En: "MTR"},
}

// DisplayName returns the operator's public-facing name. Operators
// interned at runtime fall back to their raw name in both languages.
func (o *Operator) DisplayName() BilingualText {
	if name, ok := operatorDisplayNames[o.Name]; ok {
		return name
	}
	return BilingualText{Zh: o.Name, En: o.Name}
}

// BuiltinOperators returns the built-in operators in priority order.
func BuiltinOperators() []*Operator {
	return builtinOperators
}

// IdentifyStopOperator attributes a bare stop ID to a built-in operator
// by its shape, checking operators in priority order. Returns nil when
// no operator's pattern matches.
func IdentifyStopOperator(stopID string) *Operator {
	for _, op := range builtinOperators {
		if op.MatchesStopID(stopID) {
			return op
		}
	}
	return nil
}
