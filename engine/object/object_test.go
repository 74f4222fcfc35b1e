package object

import (
	"sync"
	"testing"
)

func TestOperatorInterningIsIdempotent(t *testing.T) {
	if got := ValueOf("kmb"); got != OperatorKMB {
		t.Errorf("ValueOf(\"kmb\") = %p, expected the built-in instance %p", got, OperatorKMB)
	}
	if got := ValueOf("KMB"); got != OperatorKMB {
		t.Error("interning is not case-insensitive")
	}
	if got := ValueOf("LIGHTRAIL"); got != OperatorLightRail || got.Name != "lightRail" {
		t.Error("canonical spelling not kept for case-insensitive lookups")
	}
	a := ValueOf("sunferry")
	b := ValueOf("sunferry")
	if a != b {
		t.Error("interning the same custom name twice gave two instances")
	}
	if a.Ordinal() <= OperatorMTR.Ordinal() {
		t.Errorf("custom operator ordinal %d not after the built-ins", a.Ordinal())
	}
}

func TestOperatorInterningIsThreadSafe(t *testing.T) {
	const goroutines = 16
	results := make([]*Operator, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ValueOf("hkkf")
		}(i)
	}
	wg.Wait()
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent interning of the same name produced distinct instances")
		}
	}
}

func TestBuiltinOperatorPriorityOrder(t *testing.T) {
	ordered := []*Operator{
		OperatorKMB, OperatorCTB, OperatorNLB, OperatorMTRBus,
		OperatorGMB, OperatorLightRail, OperatorMTR,
	}
	for i, op := range ordered {
		if op.Ordinal() != i {
			t.Errorf("%s ordinal = %d, expected %d", op.Name, op.Ordinal(), i)
		}
	}
}

func TestIdentifyStopOperator(t *testing.T) {
	cases := []struct {
		stopID   string
		expected *Operator
	}{
		{"18492910339410B1", OperatorKMB},
		{"001145", OperatorCTB},
		{"41", OperatorNLB},
		{"K12-U010", OperatorMTRBus},
		{"20001447", OperatorGMB},
		{"LR140", OperatorLightRail},
		{"HOK", OperatorMTR},
		{"not-a-stop", nil},
	}
	for _, c := range cases {
		if got := IdentifyStopOperator(c.stopID); got != c.expected {
			t.Errorf("IdentifyStopOperator(%q) = %v, expected %v", c.stopID, got, c.expected)
		}
	}
}

func TestBilingualTextGet(t *testing.T) {
	text := BilingualText{Zh: "尖沙咀", En: "Tsim Sha Tsui"}
	if got := text.Get("en"); got != "Tsim Sha Tsui" {
		t.Errorf("Get(\"en\") = %q", got)
	}
	if got := text.Get("zh"); got != "尖沙咀" {
		t.Errorf("Get(\"zh\") = %q", got)
	}
	if got := text.Get("fr"); got != "尖沙咀" {
		t.Errorf("Get(\"fr\") = %q, expected the Chinese fallback", got)
	}
}

func TestRouteBusinessKey(t *testing.T) {
	cases := []struct {
		name     string
		route    Route
		co       *Operator
		expected string
	}{
		{
			name: "kmb uses bound code",
			route: Route{
				RouteNumber: "1A",
				Bound:       map[string]string{"kmb": "O"},
				Co:          []string{"kmb"},
			},
			co:       OperatorKMB,
			expected: "1A,kmb,O",
		},
		{
			name: "nlb uses route id instead of bound",
			route: Route{
				RouteNumber: "37",
				Bound:       map[string]string{"nlb": "O"},
				Co:          []string{"nlb"},
				NlbID:       "41",
			},
			co:       OperatorNLB,
			expected: "37,nlb,41",
		},
		{
			name: "gmb appends gtfs id prefix",
			route: Route{
				RouteNumber: "44A",
				Bound:       map[string]string{"gmb": "O"},
				Co:          []string{"gmb"},
				GtfsID:      "20012577",
			},
			co:       OperatorGMB,
			expected: "44A,gmb,O,2001",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.route.BusinessKey(c.co); got != c.expected {
				t.Errorf("BusinessKey = %q, expected %q", got, c.expected)
			}
		})
	}
}

func TestRouteCloneIsDeep(t *testing.T) {
	r := &Route{
		RouteNumber: "960",
		Bound:       map[string]string{"kmb": "O"},
		Co:          []string{"kmb", "ctb"},
		Stops:       map[string][]string{"kmb": {"A", "B"}},
	}
	c := r.Clone()
	c.Bound["kmb"] = "I"
	c.Co[0] = "ctb"
	c.Stops["kmb"][0] = "Z"

	if r.Bound["kmb"] != "O" || r.Co[0] != "kmb" || r.Stops["kmb"][0] != "A" {
		t.Error("mutating the clone leaked into the original")
	}
}

func TestMtrLineSortingIndex(t *testing.T) {
	if MtrLineSortingIndex("KTL") != 0 || MtrLineSortingIndex("AEL") != 8 {
		t.Error("known line indices wrong")
	}
	if MtrLineSortingIndex("XXX") != 10 {
		t.Error("unknown line should sort last")
	}
}

func TestMtrLineColor(t *testing.T) {
	if got := MtrLineColor("ISL"); got != "#0075C2" {
		t.Errorf("ISL color = %s", got)
	}
	if got := MtrLineColor("ZZZ"); got != "#FFFFFF" {
		t.Errorf("unknown line color = %s", got)
	}
}

func TestCircledNumber(t *testing.T) {
	if got := CircledNumber(1); got != "①" {
		t.Errorf("CircledNumber(1) = %q", got)
	}
	if got := CircledNumber(12); got != "⑫" {
		t.Errorf("CircledNumber(12) = %q", got)
	}
	if got := CircledNumber(21); got != "21" {
		t.Errorf("CircledNumber(21) = %q", got)
	}
}

func TestGetKMBSubsidiary(t *testing.T) {
	cases := []struct {
		route    string
		expected KMBSubsidiary
	}{
		{"1A", SubsidiaryKMB},
		{"A43", SubsidiaryLWB},
		{"NA43", SubsidiaryLWB},
		{"E36", SubsidiaryLWB},
		{"S1", SubsidiaryLWB},
		{"R8", SubsidiaryLWB},
		{"X47", SubsidiaryLWB},
		{"331", SubsidiarySunBus},
		{"917", SubsidiarySunBus},
		{"960", SubsidiaryKMB},
		{"N269", SubsidiaryKMB},
	}
	for _, c := range cases {
		if got := GetKMBSubsidiary(c.route); got != c.expected {
			t.Errorf("GetKMBSubsidiary(%q) = %d, expected %d", c.route, got, c.expected)
		}
	}
}
