package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

type gmbStopEtaResponse struct {
	Data []struct {
		RouteID json.Number `json:"route_id"`
		Eta     []struct {
			Timestamp string `json:"timestamp"`
			RemarksEn string `json:"remarks_en"`
			RemarksTc string `json:"remarks_tc"`
		} `json:"eta"`
	} `json:"data"`
}

// gmbRouteNumber maps the feed's numeric route ID back to a route
// number via the catalog, since the stop ETA feed carries IDs only.
func (q *query) gmbRouteNumber(routeID string) string {
	for _, r := range q.a.data.RouteList {
		if r.HasOperator(object.OperatorGMB) && r.GtfsID == routeID {
			return r.RouteNumber
		}
	}
	return ""
}

func (q *query) fetchGmb(ctx context.Context) error {
	var payload gmbStopEtaResponse
	url := fmt.Sprintf(q.a.endpoints.GMBStopEta, q.stopID)
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return err
	}

	now := q.a.now()
	type arrival struct {
		mins   int
		remark string
	}
	var arrivals []arrival
	for _, entry := range payload.Data {
		if q.gmbRouteNumber(entry.RouteID.String()) != q.route.RouteNumber {
			continue
		}
		for _, bus := range entry.Eta {
			arrivals = append(arrivals, arrival{
				mins:   q.etaMinutes(now, bus.Timestamp, time.RFC3339),
				remark: q.pick(bus.RemarksEn, bus.RemarksTc),
			})
		}
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].mins < arrivals[j].mins })

	for i, bus := range arrivals {
		seq := i + 1
		message := q.minuteText(bus.mins)
		if message != "" && seq == 1 {
			q.nextScheduledBus = bus.mins
		}
		message = appendRemark(message, bus.remark)
		message = canonicalizeRemark(message)
		q.lines[seq] = q.finishLine(message, seq)
	}
	return nil
}
