package registry

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/catalog"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/eta"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/nearby"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/notices"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/resolver"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// Options configure a Registry. Dir is required unless Store is set;
// everything else has a usable default.
type Options struct {
	Dir    string
	Store  *catalog.Store
	Client *http.Client
	Remote *catalog.Remote

	EtaEndpoints    eta.Endpoints
	NoticeEndpoints notices.Endpoints
	EtaTimeout      time.Duration
	Now             func() time.Time
}

// Registry is the engine facade: it owns the catalog lifecycle, the
// persisted user preferences, and hands queries to the resolver,
// nearby search, ETA aggregator and notice board, all bound to the
// currently published catalog snapshot.
type Registry struct {
	store  *catalog.Store
	loader *catalog.Loader
	client *http.Client

	etaEndpoints    eta.Endpoints
	noticeEndpoints notices.Endpoints
	etaTimeout      time.Duration
	now             func() time.Time

	prefMu sync.Mutex
	prefs  *Preferences

	// Query services are rebuilt when the snapshot or language they
	// were built against goes stale.
	svcMu       sync.Mutex
	svcData     *catalog.DataSheet
	svcLanguage string
	aggregator  *eta.Aggregator
	noticeBoard *notices.Service
}

// New opens the store, loads persisted preferences and prepares the
// catalog loader. No network traffic happens until EnsureData.
func New(o Options) (*Registry, error) {
	store := o.Store
	if store == nil {
		var err error
		store, err = catalog.NewStore(o.Dir)
		if err != nil {
			return nil, err
		}
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	remote := o.Remote
	if remote == nil {
		remote = catalog.NewRemote(client)
	}

	r := &Registry{
		store:           store,
		client:          client,
		etaEndpoints:    o.EtaEndpoints,
		noticeEndpoints: o.NoticeEndpoints,
		etaTimeout:      o.EtaTimeout,
		now:             o.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.prefs = defaultPreferences()
	if store.Has(catalog.DocPreferences) {
		if err := store.ReadJSON(catalog.DocPreferences, r.prefs); err != nil {
			log.Printf("registry: preferences unreadable, starting fresh: %v", err)
			r.prefs = defaultPreferences()
		}
		if r.prefs.Favourites == nil {
			r.prefs.Favourites = map[int]*object.FavouriteRouteStop{}
		}
	}

	r.loader = catalog.NewLoader(catalog.Options{
		Store:       store,
		Remote:      remote,
		PostProcess: r.reanchorFavourites,
	})
	return r, nil
}

// State reports the catalog ingestion state.
func (r *Registry) State() catalog.State {
	return r.loader.State()
}

// Progress reports the catalog ingestion progress from 0.0 to 1.0.
func (r *Registry) Progress() float64 {
	return r.loader.Progress()
}

// EnsureData makes sure a catalog is published, fetching one when the
// cache is stale or missing.
func (r *Registry) EnsureData(ctx context.Context) (*catalog.DataSheet, error) {
	return r.loader.EnsureData(ctx)
}

func (r *Registry) data() (*catalog.DataSheet, error) {
	d := r.loader.Data()
	if d == nil {
		return nil, util.CatalogUnavailableError{Reason: "no catalog has been loaded yet"}
	}
	return d, nil
}

// Language returns the persisted display language, "en" or "zh".
func (r *Registry) Language() string {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	return r.prefs.Language
}

// SetLanguage switches the display language and persists the choice.
func (r *Registry) SetLanguage(language string) error {
	if language != "en" && language != "zh" {
		return fmt.Errorf("unsupported language %q", language)
	}
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	r.prefs.Language = language
	return r.store.WriteJSON(catalog.DocPreferences, r.prefs)
}

// FindRoutes resolves a typed route-number query against the published
// catalog. With exact set, only routes whose number matches the whole
// input are returned; otherwise prefix matches count too.
func (r *Registry) FindRoutes(input string, exact bool) ([]*object.RouteSearchResultEntry, error) {
	d, err := r.data()
	if err != nil {
		return nil, err
	}
	return resolver.New(d).FindRoutes(input, exact, nil, nil)
}

// PossibleNextChar reports which characters could extend a partial
// route-number query, for input panel key masking.
func (r *Registry) PossibleNextChar(input string) (resolver.PossibleNextCharResult, error) {
	d, err := r.data()
	if err != nil {
		return resolver.PossibleNextCharResult{}, err
	}
	return resolver.New(d).PossibleNextChar(input), nil
}

// FindRouteByKey resolves a possibly stale route key, fuzzily when the
// exact key is gone from the current catalog.
func (r *Registry) FindRouteByKey(routeKey, routeNumber string) (string, *object.Route, error) {
	d, err := r.data()
	if err != nil {
		return "", nil, err
	}
	key, route := resolver.New(d).FindRouteByKey(routeKey, routeNumber)
	return key, route, nil
}

// StopByID returns a catalog stop, or nil.
func (r *Registry) StopByID(stopID string) (*object.Stop, error) {
	d, err := r.data()
	if err != nil {
		return nil, err
	}
	return d.StopList[stopID], nil
}

// BranchMergedStops returns the merged stop sequence of every
// service-type branch of a route direction.
func (r *Registry) BranchMergedStops(routeNumber, bound string, co *object.Operator, gtfsID string) ([]*object.StopData, error) {
	d, err := r.data()
	if err != nil {
		return nil, err
	}
	return resolver.New(d).AllStops(routeNumber, bound, co, gtfsID), nil
}

// OriginsAndDestinations lists the distinct origins and destinations
// across every branch of a route direction.
func (r *Registry) OriginsAndDestinations(routeNumber, bound string, co *object.Operator, gtfsID string) (origs, dests []object.BilingualText, err error) {
	d, err := r.data()
	if err != nil {
		return nil, nil, err
	}
	origs, dests = resolver.New(d).OriginsAndDestinations(routeNumber, bound, co, gtfsID)
	return origs, dests, nil
}

// FindNearbyRoutes lists the routes serving stops around a point.
func (r *Registry) FindNearbyRoutes(lat, lng float64, excluded map[string]bool, isInterchangeSearch bool) (*nearby.Result, error) {
	d, err := r.data()
	if err != nil {
		return nil, err
	}
	s := nearby.New(d)
	s.Now = r.now
	return s.FindRoutes(lat, lng, excluded, isInterchangeSearch), nil
}

// QueryEta fetches live arrivals for one stop of a route in the
// persisted display language.
func (r *Registry) QueryEta(ctx context.Context, stopID string, co *object.Operator, route *object.Route) (*eta.Result, error) {
	agg, _, err := r.services()
	if err != nil {
		return nil, err
	}
	return agg.QueryEta(ctx, stopID, co, route), nil
}

// TyphoonState reports the tropical cyclone warning in force, cached
// for a few minutes between Observatory lookups.
func (r *Registry) TyphoonState(ctx context.Context) (eta.TyphoonInfo, error) {
	agg, _, err := r.services()
	if err != nil {
		return eta.TyphoonInfo{}, err
	}
	return agg.TyphoonState(ctx), nil
}

// RouteNotices assembles the sorted notice board for a route.
func (r *Registry) RouteNotices(ctx context.Context, route *object.Route) ([]*notices.Notice, error) {
	_, board, err := r.services()
	if err != nil {
		return nil, err
	}
	return board.RouteNotices(ctx, route), nil
}

// services returns the aggregator and notice board for the current
// snapshot and language, rebuilding them when either changed.
func (r *Registry) services() (*eta.Aggregator, *notices.Service, error) {
	d, err := r.data()
	if err != nil {
		return nil, nil, err
	}
	language := r.Language()

	r.svcMu.Lock()
	defer r.svcMu.Unlock()
	if r.svcData != d || r.svcLanguage != language {
		r.aggregator = eta.New(eta.Options{
			Client:        r.client,
			Data:          d,
			Language:      language,
			MtrBusAliases: r.store.ReadMtrBusAliases(),
			Endpoints:     r.etaEndpoints,
			Timeout:       r.etaTimeout,
			Now:           r.now,
		})
		r.noticeBoard = notices.New(notices.Options{
			Client:    r.client,
			Language:  language,
			Endpoints: r.noticeEndpoints,
		})
		r.svcData = d
		r.svcLanguage = language
	}
	return r.aggregator, r.noticeBoard, nil
}

// SetFavourite pins a route stop under its favourite ID, replacing any
// previous pin with the same ID.
func (r *Registry) SetFavourite(fav *object.FavouriteRouteStop) error {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	r.prefs.Favourites[fav.FavouriteID] = fav
	return r.store.WriteJSON(catalog.DocPreferences, r.prefs)
}

// DeleteFavourite removes a pin. Removing an absent ID is a no-op.
func (r *Registry) DeleteFavourite(favouriteID int) error {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	if _, ok := r.prefs.Favourites[favouriteID]; !ok {
		return nil
	}
	delete(r.prefs.Favourites, favouriteID)
	return r.store.WriteJSON(catalog.DocPreferences, r.prefs)
}

// Favourites lists the pinned route stops in favourite ID order.
func (r *Registry) Favourites() []*object.FavouriteRouteStop {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	list := make([]*object.FavouriteRouteStop, 0, len(r.prefs.Favourites))
	for _, id := range r.prefs.favouriteIDs() {
		list = append(list, r.prefs.Favourites[id])
	}
	return list
}

// RecordLookup notes a route key in the recent-lookup history.
func (r *Registry) RecordLookup(routeKey string) error {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	r.prefs.recordLookup(routeKey)
	return r.store.WriteJSON(catalog.DocPreferences, r.prefs)
}

// LastLookups returns the recent-lookup history, most recent first.
func (r *Registry) LastLookups() []object.LastLookupRoute {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	return append([]object.LastLookupRoute(nil), r.prefs.LastLookups...)
}

// ClearLastLookups empties the recent-lookup history.
func (r *Registry) ClearLastLookups() error {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	r.prefs.LastLookups = nil
	return r.store.WriteJSON(catalog.DocPreferences, r.prefs)
}

// reanchorFavourites re-resolves every pinned route stop against a
// freshly fetched catalog: the route key may have changed shape, the
// stop may have moved along the route, or the branch may be gone.
// Runs inside the loader before the new snapshot is published.
func (r *Registry) reanchorFavourites(d *catalog.DataSheet, report func(float64)) {
	r.prefMu.Lock()
	defer r.prefMu.Unlock()
	if len(r.prefs.Favourites) == 0 {
		if report != nil {
			report(1)
		}
		return
	}

	res := resolver.New(d)
	ids := r.prefs.favouriteIDs()
	for i, id := range ids {
		fav := r.prefs.Favourites[id]
		key, route := res.FindRouteByKey(fav.RouteKey, fav.Route.RouteNumber)
		if route == nil {
			continue
		}
		fav.RouteKey = key
		fav.Route = *route

		co := object.ValueOf(fav.Co)
		stops := res.AllStops(route.RouteNumber, route.Bound[co.Name], co, route.GtfsID)
		if anchor := anchorStop(stops, fav.StopID, fav.Index); anchor != nil {
			fav.StopID = anchor.StopID
			fav.Index = indexOfStop(stops, anchor) + 1
			if anchor.Stop != nil {
				fav.Stop = *anchor.Stop
			}
		}
		if report != nil {
			report(float64(i+1) / float64(len(ids)))
		}
	}

	if err := r.store.WriteJSON(catalog.DocPreferences, r.prefs); err != nil {
		log.Printf("registry: persisting re-anchored favourites failed: %v", err)
	}
	if report != nil {
		report(1)
	}
}

// anchorStop finds the favourite's stop in a refreshed stop sequence:
// by ID when the stop survived, otherwise the stop now sitting at the
// remembered position.
func anchorStop(stops []*object.StopData, stopID string, index int) *object.StopData {
	for _, s := range stops {
		if s.StopID == stopID {
			return s
		}
	}
	if len(stops) == 0 {
		return nil
	}
	i := index - 1
	if i < 0 {
		i = 0
	}
	if i >= len(stops) {
		i = len(stops) - 1
	}
	return stops[i]
}

func indexOfStop(stops []*object.StopData, target *object.StopData) int {
	for i, s := range stops {
		if s == target {
			return i
		}
	}
	return 0
}
