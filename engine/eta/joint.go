package eta

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// jointEntry is one departure of a jointly operated route, tagged with
// the operator actually running it.
type jointEntry struct {
	mins int
	text string
	co   *object.Operator
}

// fetchJointKmbCtb interleaves both operators' feeds for a jointly
// operated route. KMB publishes the schedule for KMB-run departures
// only, so the CTB feed is queried at the matching CTB stops and the
// two lists are merged by arrival time.
func (q *query) fetchJointKmbCtb(ctx context.Context) error {
	dest := strings.ReplaceAll(q.route.Dest.Zh, " ", "")
	orig := strings.ReplaceAll(q.route.Orig.Zh, " ", "")
	now := q.a.now()

	kmbPayload, err := q.downloadKmbStopEta(ctx)
	if err != nil {
		return err
	}

	var entries []jointEntry
	var kmbSpecialMessage string
	kmbFirstScheduledBus := math.MaxInt
	for _, bus := range kmbPayload.Data {
		if !q.matchesKmb(bus) {
			continue
		}
		mins := q.etaMinutes(now, bus.Eta, time.RFC3339)
		message := q.minuteText(mins)
		message = appendRemark(message, q.pick(bus.RmkEn, bus.RmkTc))
		message = canonicalizeRemark(message)
		if mins == noEta {
			// No timestamped departure. Keep the first remark as the
			// fallback line in case CTB has nothing either.
			if bus.EtaSeq == 1 {
				kmbSpecialMessage = q.finishLine(message, 1)
			}
			continue
		}
		if strings.Contains(message, "Scheduled Bus") || strings.Contains(message, "預定班次") {
			kmbFirstScheduledBus = min(kmbFirstScheduledBus, mins)
		}
		entries = append(entries, jointEntry{mins: mins, text: message, co: object.OperatorKMB})
	}

	// The CTB feed keys departures by CTB's own stop IDs and does not
	// carry a direction that survives circular routes, so departures
	// are assigned to this direction by destination-name similarity.
	for _, ctbStopID := range q.a.data.ForeignStops(q.stopID, object.OperatorCTB) {
		ctbPayload, err := q.downloadCtbStopEta(ctx, ctbStopID)
		if err != nil {
			return err
		}
		for _, bus := range ctbPayload.Data {
			if bus.Co != "CTB" || bus.Route != q.route.RouteNumber {
				continue
			}
			busDest := strings.ReplaceAll(bus.DestTc, " ", "")
			if util.EditDistance(busDest, dest) > util.EditDistance(busDest, orig) {
				continue
			}
			mins := q.etaMinutes(now, bus.Eta, time.RFC3339)
			if mins == noEta {
				continue
			}
			message := q.minuteText(mins)
			message = appendRemark(message, q.pick(bus.RmkEn, bus.RmkTc))
			message = canonicalizeRemark(message)
			entries = append(entries, jointEntry{mins: mins, text: message, co: object.OperatorCTB})
		}
	}

	if len(entries) == 0 {
		if kmbSpecialMessage != "" {
			q.lines[1] = kmbSpecialMessage
		} else {
			q.lines[1] = q.noScheduled("")
		}
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].mins < entries[j].mins })
	for i, e := range entries {
		seq := i + 1
		text := strings.ReplaceAll(e.text, "(尾班車)", "")
		text = strings.TrimSpace(strings.ReplaceAll(text, "(Final Bus)", ""))
		scheduled := strings.Contains(text, "Scheduled Bus") || strings.Contains(text, "預定班次")
		if e.mins > kmbFirstScheduledBus && !scheduled {
			text += "<small> (" + q.pick("Scheduled Bus", "預定班次") + ")</small>"
		}
		text += "<small>" + q.jointOperatorSuffix(e.co) + "</small>"
		if seq == 1 {
			q.nextScheduledBus = e.mins
			q.nextCo = e.co
		}
		q.lines[seq] = "<b></b>" + text
	}
	return nil
}

func (q *query) jointOperatorSuffix(co *object.Operator) string {
	if co == object.OperatorCTB {
		return q.pick(" - CTB", " - 城巴")
	}
	if object.GetKMBSubsidiary(q.route.RouteNumber) == object.SubsidiaryLWB {
		return q.pick(" - LWB", " - 龍運")
	}
	return q.pick(" - KMB", " - 九巴")
}
