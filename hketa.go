package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/catalog"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/config"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/registry"
)

/* ===============
   GLOBAL OBJECTS
   & CLI FLAGS
  ================ */

// Default http client
var client *http.Client = http.DefaultClient

// Default CLI flags
var (
	// Mode selection
	flagFind = flag.String(
		"find",
		"",
		"resolve a route number query against the catalog")

	flagNear = flag.String(
		"near",
		"",
		"list routes serving stops around \"lat,lng\"")

	flagEta = flag.String(
		"eta",
		"",
		"query live arrivals for a route key (requires -stop)")

	flagNotices = flag.String(
		"notices",
		"",
		"list the notice board for a route key")

	flagExport = flag.Bool(
		"export",
		false,
		"export GTFS-Realtime trip updates for the pinned favourite stops")

	// Input options
	flagConfig = flag.String(
		"config",
		"",
		"path to config.yml, if empty/omitted - use ./config.yml or defaults")

	flagExact = flag.Bool(
		"exact",
		false,
		"for -find: only match the whole route number, not prefixes")

	flagStop = flag.String(
		"stop",
		"",
		"for -eta: the stop ID to query")

	flagLanguage = flag.String(
		"lang",
		"",
		"display language (en or zh), overrides the persisted preference")

	// Output options
	flagTarget = flag.String(
		"target",
		"data_rt",
		"target folder where to put exported GTFS-Realtime files")

	flagJSON = flag.Bool(
		"json",
		false,
		"also save a JSON file alongside the GTFS-Realtime feed")

	flagReadable = flag.Bool(
		"readable",
		false,
		"use a human-readable format for the GTFS-Realtime target instead of a binary format")

	// Loop options
	flagLoop = flag.Duration(
		"loop",
		time.Duration(0),
		"export: instead of running once and exiting, "+
			"update the output file every given duration")
)

/* ================
   FLAG PROCESSING
  ================= */

// checkModes ensures exactly one mode flag is set
func checkModes() error {
	var modeCount uint8

	if *flagFind != "" {
		modeCount++
	}
	if *flagNear != "" {
		modeCount++
	}
	if *flagEta != "" {
		modeCount++
	}
	if *flagNotices != "" {
		modeCount++
	}
	if *flagExport {
		modeCount++
	}

	if modeCount != 1 {
		return errors.New("exactly one of the -find, -near, -eta, -notices or -export flags has to be provided")
	}
	return nil
}

/* =================
   DATA PREPARATION
  ================== */

// openRegistry builds a Registry from the configuration file plus any
// flag overrides, and makes sure a catalog is published.
func openRegistry(ctx context.Context) (*registry.Registry, *config.AppConfig, error) {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return nil, nil, err
	}

	remote := catalog.NewRemote(client)
	if cfg.Catalog.DataURL != "" {
		remote.DataURL = cfg.Catalog.DataURL
	}
	if cfg.Catalog.ChecksumURL != "" {
		remote.ChecksumURL = cfg.Catalog.ChecksumURL
	}

	reg, err := registry.New(registry.Options{
		Dir:        cfg.Catalog.Dir,
		Client:     client,
		Remote:     remote,
		EtaTimeout: cfg.EtaTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	language := cfg.Language
	if *flagLanguage != "" {
		language = *flagLanguage
	}
	if language != reg.Language() {
		if err := reg.SetLanguage(language); err != nil {
			return nil, nil, err
		}
	}

	log.Println("Loading the route catalog")
	if _, err := reg.EnsureData(ctx); err != nil {
		return nil, nil, err
	}
	return reg, cfg, nil
}

func pickText(reg *registry.Registry, text object.BilingualText) string {
	if reg.Language() == "en" {
		return text.En
	}
	return text.Zh
}

/* ============
   SINGLE-PASS
    OPERATION
  ============= */

// singleFind resolves a route number query and prints the matches
func singleFind(ctx context.Context) error {
	reg, _, err := openRegistry(ctx)
	if err != nil {
		return err
	}

	entries, err := reg.FindRoutes(*flagFind, *flagExact)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-24s %-5s %-9s %s -> %s\n",
			e.RouteKey, e.Route.RouteNumber, e.Co.Name,
			pickText(reg, e.Route.Orig), pickText(reg, e.Route.Dest))
	}
	return nil
}

// singleNear lists the routes serving stops around a point
func singleNear(ctx context.Context) error {
	reg, _, err := openRegistry(ctx)
	if err != nil {
		return err
	}

	parts := strings.SplitN(*flagNear, ",", 2)
	if len(parts) != 2 {
		return errors.New("-near expects \"lat,lng\"")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return err
	}

	result, err := reg.FindNearbyRoutes(lat, lng, nil, false)
	if err != nil {
		return err
	}
	if result.ClosestStop != nil {
		fmt.Printf("closest stop: %s (%.0f m)\n",
			pickText(reg, result.ClosestStop.Name), result.ClosestDistance*1000)
	}
	for _, e := range result.Routes {
		fmt.Printf("%-5s %-9s %s -> %s (%.0f m)\n",
			e.Route.RouteNumber, e.Co.Name,
			pickText(reg, e.Route.Orig), pickText(reg, e.Route.Dest),
			e.StopInfo.Distance*1000)
	}
	return nil
}

// singleEta queries live arrivals for one stop of a route
func singleEta(ctx context.Context) error {
	if *flagStop == "" {
		return errors.New("-eta requires -stop")
	}
	reg, _, err := openRegistry(ctx)
	if err != nil {
		return err
	}

	key, route, err := reg.FindRouteByKey(*flagEta, "")
	if err != nil {
		return err
	}
	if route == nil {
		return fmt.Errorf("no route matches key %q", *flagEta)
	}
	co := object.IdentifyStopOperator(*flagStop)
	if co == nil || !route.HasOperator(co) {
		co = route.Operators()[0]
	}

	res, err := reg.QueryEta(ctx, *flagStop, co, route)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s @ %s\n", route.RouteNumber, key, *flagStop)
	for seq := 1; seq <= 3; seq++ {
		fmt.Printf("  %d: %s\n", seq, res.Line(seq))
	}
	return nil
}

// singleNotices prints the notice board of a route
func singleNotices(ctx context.Context) error {
	reg, _, err := openRegistry(ctx)
	if err != nil {
		return err
	}

	_, route, err := reg.FindRouteByKey(*flagNotices, "")
	if err != nil {
		return err
	}
	if route == nil {
		return fmt.Errorf("no route matches key %q", *flagNotices)
	}

	list, err := reg.RouteNotices(ctx, route)
	if err != nil {
		return err
	}
	for _, n := range list {
		co := "-"
		if n.Co != nil {
			co = n.Co.Name
		}
		if n.IsExternal() {
			fmt.Printf("[%d] %-9s %s <%s>\n", n.Importance, co, n.Title, n.URL)
		} else {
			fmt.Printf("[%d] %-9s %s\n", n.Importance, co, n.Title)
		}
	}
	return nil
}

// exportOnce collects trip updates for the favourites and writes the
// target files. Flags take precedence over the config file's export
// section.
func exportOnce(ctx context.Context, reg *registry.Registry, cfg *config.AppConfig) error {
	tc, err := reg.CollectTripUpdates(ctx)
	if err != nil {
		return err
	}

	pbTarget := cfg.Export.Target
	if pbTarget == "" {
		pbTarget = path.Join(*flagTarget, "eta.pb")
	}
	jsonTarget := cfg.Export.JSONTarget
	if jsonTarget == "" && *flagJSON {
		jsonTarget = path.Join(*flagTarget, "eta.json")
	}

	if jsonTarget != "" {
		log.Println("Exporting to JSON")
		if err := tc.SaveJSON(jsonTarget); err != nil {
			return err
		}
	}
	log.Println("Exporting to GTFS-Realtime")
	return tc.SavePB(pbTarget, *flagReadable || cfg.Export.HumanReadable)
}

// singleExport runs one export round
func singleExport(ctx context.Context) error {
	reg, cfg, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	return exportOnce(ctx, reg, cfg)
}

/* ===============
   LOOP OPERATION
  ================ */

// loopExport updates the GTFS-RT file every sleepTime
func loopExport(ctx context.Context) (err error) {
	reg, cfg, err := openRegistry(ctx)
	if err != nil {
		return
	}

	// We don't use a ticker as there's no guarantee that a single pass
	// will be shorter than sleepTime, and the feed being refreshed a
	// few seconds late does not matter.
	sleepTime := *flagLoop
	backoff := &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Second,
		RandomizationFactor: 0.3,
		Multiplier:          2,
		MaxInterval:         48 * time.Hour,
		MaxElapsedTime:      48 * time.Hour,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}

	for {
		// Pick up catalog refreshes between rounds
		if _, err = reg.EnsureData(ctx); err != nil {
			return
		}

		// Try updating the GTFS-RT
		backoff.Reset()
		for sleep := time.Duration(0); sleep != backoff.Stop; sleep = backoff.NextBackOff() {
			if sleep != 0 {
				sleepUntil := time.Now().Add(sleep).Format("15:04:05")
				log.Printf(
					"Updating the GTFS-RT trip updates failed. Backoff until %s. Error: %q.\n",
					sleepUntil, err.Error(),
				)
				time.Sleep(sleep)
			}

			err = exportOnce(ctx, reg, cfg)
			if err == nil {
				log.Println("GTFS-RT trip updates written successfully.")
				break
			}
		}
		if err != nil {
			return
		}

		// Sleep until next try
		time.Sleep(sleepTime)
	}
}

/* ============
   ENTRY POINT
  ============= */

// Main functionality
func main() {
	var err error

	// Parse CL flags
	flag.Parse()

	// Check excluding flags
	loopMode := *flagLoop > 0
	err = checkModes()
	if err != nil {
		log.Fatalln(err.Error())
	}

	// Select the appropriate function to call
	var modeFunc func(context.Context) error
	switch {

	// loop mode enabled
	case *flagExport && loopMode:
		modeFunc = loopExport
	case loopMode:
		modeFunc = func(context.Context) error { return errors.New("loop mode is available only for -export") }

	// single pass
	case *flagFind != "":
		modeFunc = singleFind
	case *flagNear != "":
		modeFunc = singleNear
	case *flagEta != "":
		modeFunc = singleEta
	case *flagNotices != "":
		modeFunc = singleNotices
	case *flagExport:
		modeFunc = singleExport
	}

	// create the target directory
	if *flagExport {
		err = os.Mkdir(*flagTarget, 0o777)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			log.Fatalf("mkdir %s: %v", *flagTarget, err)
		}
	}

	// Execute the selected mode
	err = modeFunc(context.Background())
	if err != nil {
		log.Fatalln(err.Error())
	}
}
