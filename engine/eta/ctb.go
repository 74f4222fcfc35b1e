package eta

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

type ctbStopEtaResponse struct {
	Data []ctbStopEtaEntry `json:"data"`
}

type ctbStopEtaEntry struct {
	Co     string `json:"co"`
	Route  string `json:"route"`
	Dir    string `json:"dir"`
	EtaSeq int    `json:"eta_seq"`
	Eta    string `json:"eta"`
	RmkEn  string `json:"rmk_en"`
	RmkTc  string `json:"rmk_tc"`
	DestTc string `json:"dest_tc"`
}

func (q *query) downloadCtbStopEta(ctx context.Context, stopID string) (*ctbStopEtaResponse, error) {
	var payload ctbStopEtaResponse
	url := fmt.Sprintf(q.a.endpoints.CTBStopEta, stopID, q.route.RouteNumber)
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (q *query) fetchCtb(ctx context.Context) error {
	payload, err := q.downloadCtbStopEta(ctx, q.stopID)
	if err != nil {
		return err
	}
	now := q.a.now()
	// Circular routes carry both direction codes in the bound, so a
	// substring match stands in for equality here.
	bound := q.route.Bound[object.OperatorCTB.Name]
	for _, bus := range payload.Data {
		if bus.Co != "CTB" || bus.Route != q.route.RouteNumber || !strings.Contains(bound, bus.Dir) {
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
