package eta

import (
	"context"
	"fmt"
)

// The NLB feed omits the zone offset; times are Hong Kong local.
const nlbTimeLayout = "2006-01-02 15:04:05-07:00"

type nlbArrivalsResponse struct {
	EstimatedArrivals []struct {
		EstimatedArrivalTime string `json:"estimatedArrivalTime"`
		RouteVariantName     string `json:"routeVariantName"`
	} `json:"estimatedArrivals"`
}

func (q *query) fetchNlb(ctx context.Context) error {
	apiLang := "zh"
	if q.english() {
		apiLang = "en"
	}
	var payload nlbArrivalsResponse
	url := fmt.Sprintf(q.a.endpoints.NLBArrivals, q.route.NlbID, q.stopID, apiLang)
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return err
	}
	if len(payload.EstimatedArrivals) == 0 {
		return nil
	}

	now := q.a.now()
	for i, bus := range payload.EstimatedArrivals {
		seq := i + 1
		mins := q.etaMinutes(now, bus.EstimatedArrivalTime+"+08:00", nlbTimeLayout)
		message := q.minuteText(mins)
		if message != "" && seq == 1 {
			q.nextScheduledBus = mins
		}
		message = appendRemark(message, bus.RouteVariantName)
		message = canonicalizeRemark(message)
		q.lines[seq] = q.finishLine(message, seq)
	}
	return nil
}
