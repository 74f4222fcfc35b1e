package eta

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/catalog"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/resolver"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// QueryTimeout bounds a single ETA query end to end, covering the
// warning lookup and every upstream schedule call it fans out to.
const QueryTimeout = 9 * time.Second

// Endpoints holds the upstream schedule URL templates. Tests point
// them at local servers; zero values fall back to the live APIs.
type Endpoints struct {
	KMBStopEta     string // stop ID
	CTBStopEta     string // stop ID, route number
	NLBArrivals    string // NLB route ID, stop ID, API language
	MTRBusSchedule string
	GMBStopEta     string // stop ID
	LRTSchedule    string // station ID
	MTRSchedule    string // line code, stop ID
	Typhoon        string // API language
}

// DefaultEndpoints returns the production data.gov.hk endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		KMBStopEta:     "https://data.etabus.gov.hk/v1/transport/kmb/stop-eta/%s",
		CTBStopEta:     "https://rt.data.gov.hk/v2/transport/citybus/eta/CTB/%s/%s",
		NLBArrivals:    "https://rt.data.gov.hk/v2/transport/nlb/stop.php?action=estimatedArrivals&routeId=%s&stopId=%s&language=%s",
		MTRBusSchedule: "https://rt.data.gov.hk/v1/transport/mtr/bus/getSchedule",
		GMBStopEta:     "https://data.etagmb.gov.hk/eta/stop/%s",
		LRTSchedule:    "https://rt.data.gov.hk/v1/transport/mtr/lrt/getSchedule?station_id=%s",
		MTRSchedule:    "https://rt.data.gov.hk/v1/transport/mtr/getSchedule.php?line=%s&sta=%s",
		Typhoon:        DefaultTyphoonURL,
	}
}

// Options configures an Aggregator. Data is required; everything else
// has a usable default.
type Options struct {
	Client        *http.Client
	Data          *catalog.DataSheet
	Resolver      *resolver.Resolver
	Language      string // "en" or "zh"
	MtrBusAliases map[string][]string
	Endpoints     Endpoints
	Timeout       time.Duration // defaults to QueryTimeout
	Now           func() time.Time
}

// Aggregator queries the per-operator arrival feeds and renders their
// answers into a uniform set of display lines.
type Aggregator struct {
	client        *http.Client
	data          *catalog.DataSheet
	resolver      *resolver.Resolver
	language      string
	mtrBusAliases map[string][]string
	endpoints     Endpoints
	timeout       time.Duration
	typhoon       *typhoonState
	now           func() time.Time
}

func New(o Options) *Aggregator {
	a := &Aggregator{
		client:        o.Client,
		data:          o.Data,
		resolver:      o.Resolver,
		language:      o.Language,
		mtrBusAliases: o.MtrBusAliases,
		endpoints:     o.Endpoints,
		timeout:       o.Timeout,
		typhoon:       newTyphoonState(),
		now:           o.Now,
	}
	if a.client == nil {
		a.client = http.DefaultClient
	}
	if a.resolver == nil {
		a.resolver = &resolver.Resolver{Data: o.Data}
	}
	if a.language == "" {
		a.language = "zh"
	}
	if (a.endpoints == Endpoints{}) {
		a.endpoints = DefaultEndpoints()
	}
	if a.timeout <= 0 {
		a.timeout = QueryTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// QueryEta fetches live arrivals for one stop of a route. It always
// returns a usable Result: upstream failures and queries still running
// at QueryTimeout come back as a connection error, and a late fetch is
// discarded rather than mutating the returned value.
func (a *Aggregator) QueryEta(ctx context.Context, stopID string, co *object.Operator, route *object.Route) *Result {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.fetch(ctx, stopID, co, route)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			log.Printf("eta: %s %s/%s: %v", route.RouteNumber, co.Name, stopID, out.err)
			return connectionErrorResult(a.language, co)
		}
		return out.res
	case <-ctx.Done():
		return connectionErrorResult(a.language, co)
	}
}

// query is the per-call scratch state a fetch accumulates into.
type query struct {
	a                 *Aggregator
	stopID            string
	co                *object.Operator
	route             *object.Route
	typhoon           TyphoonInfo
	lines             map[int]string
	nextScheduledBus  int
	nextCo            *object.Operator
	isMtrEndOfLine    bool
	isTyphoonSchedule bool
}

func (a *Aggregator) fetch(ctx context.Context, stopID string, co *object.Operator, route *object.Route) (*Result, error) {
	q := &query{
		a:                a,
		stopID:           stopID,
		co:               co,
		route:            route,
		typhoon:          a.currentTyphoon(ctx),
		lines:            make(map[int]string),
		nextScheduledBus: noEta,
		nextCo:           co,
	}
	q.lines[1] = q.noScheduled("")

	var err error
	switch {
	case route.KmbCtbJoint:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchJointKmbCtb(ctx)
	case co == object.OperatorKMB:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchKmb(ctx)
	case co == object.OperatorCTB:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchCtb(ctx)
	case co == object.OperatorNLB:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchNlb(ctx)
	case co == object.OperatorMTRBus:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchMtrBus(ctx)
	case co == object.OperatorGMB:
		q.isTyphoonSchedule = q.typhoon.AboveSignalEight
		err = q.fetchGmb(ctx)
	case co == object.OperatorLightRail:
		q.isTyphoonSchedule = q.typhoon.AboveSignalNine
		err = q.fetchLrt(ctx)
	case co == object.OperatorMTR:
		q.isTyphoonSchedule = q.typhoon.AboveSignalNine
		err = q.fetchMtr(ctx)
	default:
		err = util.RouteNotFoundError{Key: route.RouteNumber + "," + co.Name}
	}
	if err != nil {
		return nil, err
	}
	return newResult(q.nextScheduledBus, q.isMtrEndOfLine, q.isTyphoonSchedule, q.nextCo, q.lines), nil
}

func (q *query) english() bool {
	return q.a.language == "en"
}

func (q *query) pick(en, zh string) string {
	if q.english() {
		return en
	}
	return zh
}

// noScheduled renders the placeholder line shown when a feed has no
// departures. A tropical cyclone warning of signal 8 or above is
// surfaced on the line itself, tinted in the warning colour.
func (q *query) noScheduled(remark string) string {
	message := strings.TrimSpace(remark)
	if message == "" {
		message = q.pick("No scheduled departures at this moment", "暫時沒有預定班次")
	}
	if q.typhoon.AboveSignalEight {
		message += " (" + q.typhoon.Title + ")"
		message = `<span style="color: #88A3D1;">` + message + `</span>`
	}
	return message
}

// minuteText renders a positive countdown, a dash for a bus that is
// due, and nothing for entries without a usable ETA.
func (q *query) minuteText(mins int) string {
	unit := q.pick(" Min.", " 分鐘")
	switch {
	case mins > 0:
		return "<b>" + strconv.Itoa(mins) + "</b><small>" + unit + "</small>"
	case mins > -60:
		return "<b>-</b><small>" + unit + "</small>"
	default:
		return ""
	}
}

// appendRemark attaches the operator remark, inline when there is no
// countdown to attach it to.
func appendRemark(message, remark string) string {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return message
	}
	if message == "" {
		return remark
	}
	return message + "<small> (" + remark + ")</small>"
}

// canonicalizeRemark rewrites the operators' phrasing variants to the
// wording used across the app.
func canonicalizeRemark(message string) string {
	message = strings.ReplaceAll(message, "原定", "預定")
	message = strings.ReplaceAll(message, "最後班次", "尾班車")
	return strings.ReplaceAll(message, "尾班車已過", "尾班車已過本站")
}

// etaSuspended matches the remark operators publish when predictions
// are suspended during a typhoon.
func etaSuspended(message string) bool {
	return message == "ETA service suspended" || message == "暫停預報"
}

// finishLine wraps a rendered entry for display. Empty first entries
// fall back to the no-departures placeholder, later empty entries to a
// bare dash.
func (q *query) finishLine(message string, seq int) string {
	if message == "" || (q.typhoon.AboveSignalEight && etaSuspended(message)) {
		if seq == 1 {
			return q.noScheduled(message)
		}
		return "<b></b>-"
	}
	return "<b></b>" + message
}

// downloadFeed fetches one operator feed into payload. A response that
// does not decode counts as zero arrivals rather than a failure, so a
// broken feed renders the no-departures line and a joint route falls
// back to the other operator's data. Transport errors still propagate
// and surface as a connection error.
func (q *query) downloadFeed(ctx context.Context, url string, payload any) error {
	err := util.DownloadJSON(ctx, q.a.client, url, payload)
	var shape util.ShapeMismatchError
	if errors.As(err, &shape) {
		log.Printf("eta: %v", shape)
		return nil
	}
	return err
}

// postFeed is downloadFeed for the schedule APIs queried by POST.
func (q *query) postFeed(ctx context.Context, url string, body, payload any) error {
	err := util.PostJSON(ctx, q.a.client, url, body, payload)
	var shape util.ShapeMismatchError
	if errors.As(err, &shape) {
		log.Printf("eta: %v", shape)
		return nil
	}
	return err
}

// etaMinutes parses an arrival timestamp and returns the rounded
// minutes until it, or noEta when the feed sent no time.
func (q *query) etaMinutes(now time.Time, raw, layout string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return noEta
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return noEta
	}
	return util.MinutesUntil(now, t)
}
