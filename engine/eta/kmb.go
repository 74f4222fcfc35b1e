package eta

import (
	"context"
	"fmt"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

type kmbStopEtaResponse struct {
	Data []kmbStopEtaEntry `json:"data"`
}

type kmbStopEtaEntry struct {
	Co     string `json:"co"`
	Route  string `json:"route"`
	Dir    string `json:"dir"`
	EtaSeq int    `json:"eta_seq"`
	Eta    string `json:"eta"`
	RmkEn  string `json:"rmk_en"`
	RmkTc  string `json:"rmk_tc"`
}

func (q *query) downloadKmbStopEta(ctx context.Context) (*kmbStopEtaResponse, error) {
	var payload kmbStopEtaResponse
	url := fmt.Sprintf(q.a.endpoints.KMBStopEta, q.stopID)
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (q *query) matchesKmb(bus kmbStopEtaEntry) bool {
	return bus.Co == "KMB" &&
		bus.Route == q.route.RouteNumber &&
		bus.Dir == q.route.Bound[object.OperatorKMB.Name]
}

func (q *query) fetchKmb(ctx context.Context) error {
	payload, err := q.downloadKmbStopEta(ctx)
	if err != nil {
		return err
	}
	now := q.a.now()
	for _, bus := range payload.Data {
		if !q.matchesKmb(bus) {
			continue
		}
		seq := bus.EtaSeq
		mins := q.etaMinutes(now, bus.Eta, time.RFC3339)
		message := q.minuteText(mins)
		if message != "" && seq == 1 {
			q.nextScheduledBus = mins
		}
		message = appendRemark(message, q.pick(bus.RmkEn, bus.RmkTc))
		message = canonicalizeRemark(message)
		q.lines[seq] = q.finishLine(message, seq)
	}
	return nil
}
