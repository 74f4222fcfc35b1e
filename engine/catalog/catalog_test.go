package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/geo"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

func sampleSheet() *DataSheet {
	return &DataSheet{
		Holidays: []string{"20240501"},
		RouteList: map[string]*object.Route{
			"1A+1+A+B": {
				RouteNumber: "1A",
				Bound:       map[string]string{"kmb": "O"},
				Co:          []string{"kmb"},
				ServiceType: "1",
				Dest:        object.BilingualText{Zh: "中秀茂坪", En: "Sau Mau Ping (Central)"},
				Stops:       map[string][]string{"kmb": {"A", "B"}},
			},
		},
		StopList: map[string]*object.Stop{
			"A": {Location: geo.Coordinates{Lat: 22.3, Lng: 114.1}, Name: object.BilingualText{Zh: "甲", En: "A"}},
			"B": {Location: geo.Coordinates{Lat: 22.31, Lng: 114.11}, Name: object.BilingualText{Zh: "乙", En: "B"}},
		},
		StopMap: map[string][][]string{
			"A": {{"ctb", "001145"}},
		},
	}
}

// catalogServer publishes a gzipped snapshot plus a checksum file the
// way the production CDN does.
func catalogServer(t *testing.T, sheet *DataSheet, checksum string, hits *int) *httptest.Server {
	t.Helper()
	raw, err := json.Marshal(sheet)
	if err != nil {
		t.Fatal(err)
	}
	var gzipped bytes.Buffer
	gz := gzip.NewWriter(&gzipped)
	gz.Write(raw)
	gz.Close()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/checksum.md5":
			w.Write([]byte(checksum + "\n"))
		case "/data.json.gz":
			if hits != nil {
				*hits++
			}
			w.Write(gzipped.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestLoader(t *testing.T, server *httptest.Server, dir string) (*Loader, *Store) {
	t.Helper()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	remote := &Remote{
		Client:      server.Client(),
		DataURL:     server.URL + "/data.json.gz",
		ChecksumURL: server.URL + "/checksum.md5",
	}
	return NewLoader(Options{Store: store, Remote: remote}), store
}

func TestLoaderFreshIngestion(t *testing.T) {
	server := catalogServer(t, sampleSheet(), "abc123", nil)
	defer server.Close()
	loader, store := newTestLoader(t, server, t.TempDir())

	d, err := loader.EnsureData(context.Background())
	if err != nil {
		t.Fatalf("EnsureData: %v", err)
	}
	if loader.State() != StateReady {
		t.Errorf("state = %s, expected READY", loader.State())
	}
	if loader.Progress() != 1 {
		t.Errorf("progress = %f", loader.Progress())
	}
	if len(d.RouteList) != 1 {
		t.Errorf("route list size = %d", len(d.RouteList))
	}
	if got := store.ReadChecksum(); got != "abc123" {
		t.Errorf("persisted checksum = %q", got)
	}
	if !store.Has(docDataSheet) {
		t.Error("snapshot not persisted")
	}
}

func TestLoaderReusesCacheOnChecksumMatch(t *testing.T) {
	hits := 0
	server := catalogServer(t, sampleSheet(), "abc123", &hits)
	defer server.Close()
	dir := t.TempDir()

	first, _ := newTestLoader(t, server, dir)
	if _, err := first.EnsureData(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("expected one snapshot download, got %d", hits)
	}

	// A new process with the same data dir and an unchanged checksum
	// must not download the snapshot again.
	second, _ := newTestLoader(t, server, dir)
	if _, err := second.EnsureData(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("snapshot downloaded %d times, expected cache reuse", hits)
	}
}

func TestLoaderRefetchesOnChecksumMismatch(t *testing.T) {
	hits := 0
	server := catalogServer(t, sampleSheet(), "v1", &hits)
	dir := t.TempDir()
	first, _ := newTestLoader(t, server, dir)
	if _, err := first.EnsureData(context.Background()); err != nil {
		t.Fatal(err)
	}
	server.Close()

	server2 := catalogServer(t, sampleSheet(), "v2", &hits)
	defer server2.Close()
	second, store := newTestLoader(t, server2, dir)
	if _, err := second.EnsureData(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Errorf("snapshot downloaded %d times, expected a refetch", hits)
	}
	if got := store.ReadChecksum(); got != "v2" {
		t.Errorf("persisted checksum = %q", got)
	}
}

func TestLoaderServesStaleCacheWhenOffline(t *testing.T) {
	server := catalogServer(t, sampleSheet(), "v1", nil)
	dir := t.TempDir()
	first, _ := newTestLoader(t, server, dir)
	if _, err := first.EnsureData(context.Background()); err != nil {
		t.Fatal(err)
	}
	server.Close()

	// Same data dir, remote gone.
	offline, _ := newTestLoader(t, server, dir)
	d, err := offline.EnsureData(context.Background())
	if err != nil {
		t.Fatalf("expected the stale cache to be served, got %v", err)
	}
	if len(d.RouteList) != 1 {
		t.Errorf("stale cache route list size = %d", len(d.RouteList))
	}
	if offline.State() != StateReady {
		t.Errorf("state = %s", offline.State())
	}
}

func TestLoaderErrorsWithNoCacheAndNoRemote(t *testing.T) {
	server := catalogServer(t, sampleSheet(), "v1", nil)
	server.Close()

	loader, _ := newTestLoader(t, server, t.TempDir())
	_, err := loader.EnsureData(context.Background())
	if _, ok := err.(util.CatalogUnavailableError); !ok {
		t.Fatalf("expected CatalogUnavailableError, got %T (%v)", err, err)
	}
	if loader.State() != StateError {
		t.Errorf("state = %s, expected ERROR", loader.State())
	}
}

func TestDataSheetIsHoliday(t *testing.T) {
	d := sampleSheet()
	holiday := time.Date(2024, 5, 1, 12, 0, 0, 0, util.HongKongTime)
	if !d.IsHoliday(holiday) {
		t.Error("20240501 should be a holiday")
	}
	if d.IsHoliday(holiday.AddDate(0, 0, 1)) {
		t.Error("20240502 should not be a holiday")
	}
	saturday := time.Date(2024, 5, 4, 12, 0, 0, 0, util.HongKongTime)
	if !d.IsHolidayOrWeekend(saturday) {
		t.Error("Saturday should count as a non-working day")
	}
}

func TestNormalizeTagsJointRoutes(t *testing.T) {
	r := &object.Route{
		RouteNumber: "101",
		Co:          []string{"kmb", "ctb"},
		Bound:       map[string]string{"kmb": "O", "ctb": "O"},
		Stops:       map[string][]string{},
	}
	d := &DataSheet{RouteList: map[string]*object.Route{"k": r}, StopList: map[string]*object.Stop{}}
	Normalize(d, nil)
	if !r.KmbCtbJoint {
		t.Error("route served by both kmb and ctb not tagged joint")
	}
}

func TestNormalizeCtbCircular(t *testing.T) {
	outward := &object.Route{
		RouteNumber: "20",
		Co:          []string{"ctb"},
		Bound:       map[string]string{"ctb": "OI"},
		Dest:        object.BilingualText{Zh: "啟德", En: "Kai Tak"},
		Stops:       map[string][]string{},
	}
	returnHalf := &object.Route{
		RouteNumber:   "20",
		Co:            []string{"ctb"},
		Bound:         map[string]string{"ctb": "IO"},
		CtbIsCircular: true,
		Dest:          object.BilingualText{Zh: "大角咀", En: "Tai Kok Tsui"},
		Stops:         map[string][]string{},
	}
	d := &DataSheet{
		RouteList: map[string]*object.Route{"a": outward, "b": returnHalf},
		StopList:  map[string]*object.Stop{},
	}
	Normalize(d, nil)

	if outward.Dest.Zh != "啟德 (循環線)" || outward.Dest.En != "Kai Tak (Circular)" {
		t.Errorf("outward dest = %+v", outward.Dest)
	}
	if returnHalf.Dest.Zh != "大角咀" {
		t.Errorf("return half dest mutated: %+v", returnHalf.Dest)
	}
}

func TestNormalizeMarksCtbSpecialVariants(t *testing.T) {
	full := &object.Route{
		RouteNumber: "5",
		Co:          []string{"ctb"},
		Bound:       map[string]string{"ctb": "O"},
		ServiceType: "1",
		Stops:       map[string][]string{"ctb": {"A", "B", "C", "D"}},
	}
	detour := &object.Route{
		RouteNumber: "5",
		Co:          []string{"ctb"},
		Bound:       map[string]string{"ctb": "O"},
		ServiceType: "2",
		Stops:       map[string][]string{"ctb": {"A", "B", "X"}},
	}
	otherBound := &object.Route{
		RouteNumber: "5",
		Co:          []string{"ctb"},
		Bound:       map[string]string{"ctb": "I"},
		ServiceType: "1",
		Stops:       map[string][]string{"ctb": {"X", "B", "A"}},
	}
	d := &DataSheet{
		RouteList: map[string]*object.Route{"a": full, "b": detour, "c": otherBound},
		StopList: map[string]*object.Stop{
			"X": {Name: object.BilingualText{Zh: "替代站", En: "Diversion Stop"}},
		},
	}
	Normalize(d, nil)

	if len(full.CtbSpecial) != 0 {
		t.Errorf("longest variant flagged: %+v", full.CtbSpecial)
	}
	if len(detour.CtbSpecial) != 1 || detour.CtbSpecial[0].Zh != "替代站" {
		t.Errorf("detour marker = %+v, expected the off-trunk stop recorded", detour.CtbSpecial)
	}
	// The inbound half is its own group and has nothing to compare to.
	if len(otherBound.CtbSpecial) != 0 {
		t.Errorf("lone inbound variant flagged: %+v", otherBound.CtbSpecial)
	}
}

func TestNormalizeMtrBound(t *testing.T) {
	r := &object.Route{
		RouteNumber: "EAL",
		Co:          []string{"mtr"},
		Bound:       map[string]string{"mtr": "LMC-UT"},
		ServiceType: "1",
		Stops:       map[string][]string{"mtr": {"ADM", "FOT", "LMC"}},
	}
	d := &DataSheet{RouteList: map[string]*object.Route{"k": r}, StopList: map[string]*object.Stop{}}
	Normalize(d, nil)

	if r.Bound["mtr"] != "UT" {
		t.Errorf("bound = %q, expected the prefix stripped", r.Bound["mtr"])
	}
	if r.ServiceType != "2" {
		t.Errorf("serviceType = %q, expected branch demoted to 2", r.ServiceType)
	}
	if r.Stops["mtr"][1] != "RAC" {
		t.Errorf("stops = %v, expected FOT swapped for RAC", r.Stops["mtr"])
	}
}

func TestNormalizeLrtCircular(t *testing.T) {
	r := &object.Route{
		RouteNumber: "705",
		Co:          []string{"lightRail"},
		Bound:       map[string]string{"lightRail": "O"},
		Stops:       map[string][]string{"lightRail": {"LR430", "LR435", "LR445"}},
	}
	d := &DataSheet{RouteList: map[string]*object.Route{"k": r}, StopList: map[string]*object.Stop{}}
	Normalize(d, nil)

	stops := r.Stops["lightRail"]
	if stops[len(stops)-1] != "LR430" {
		t.Errorf("stops = %v, expected the loop closed", stops)
	}
	if r.Dest.En != "TSW Circular" {
		t.Errorf("dest = %+v", r.Dest)
	}
}

func TestNormalizeMtrBusAliases(t *testing.T) {
	r := &object.Route{
		RouteNumber: "K12",
		Co:          []string{"mtr-bus"},
		Bound:       map[string]string{"mtr-bus": "O"},
		Stops:       map[string][]string{"mtr-bus": {"K12-U010", "K12-U020"}},
	}
	d := &DataSheet{RouteList: map[string]*object.Route{"k": r}, StopList: map[string]*object.Stop{}}
	Normalize(d, map[string][]string{"K12-U025": {"K12-U020"}})

	if r.Stops["mtr-bus"][1] != "K12-U025" {
		t.Errorf("stops = %v, expected the alias rewritten", r.Stops["mtr-bus"])
	}
}

func TestForeignStops(t *testing.T) {
	d := sampleSheet()
	if got := d.ForeignStops("A", object.OperatorCTB); len(got) != 1 || got[0] != "001145" {
		t.Errorf("ForeignStops = %v", got)
	}
	if got := d.ForeignStops("A", object.OperatorNLB); len(got) != 0 {
		t.Errorf("ForeignStops for the wrong operator = %v", got)
	}
	if got := d.ForeignStops("B", nil); len(got) != 0 {
		t.Errorf("ForeignStops for an unmapped stop = %v", got)
	}
}
