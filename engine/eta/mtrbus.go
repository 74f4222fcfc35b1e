package eta

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// departedThreshold is the sentinel countdown the MTR bus feed uses
// for a bus that already left; the departure time applies instead.
const departedThreshold = 108000

type mtrBusScheduleRequest struct {
	Language  string `json:"language"`
	RouteName string `json:"routeName"`
}

type mtrBusScheduleResponse struct {
	BusStop []struct {
		BusStopID string `json:"busStopId"`
		Bus       []struct {
			ArrivalTimeInSecond   string `json:"arrivalTimeInSecond"`
			DepartureTimeInSecond string `json:"departureTimeInSecond"`
			IsScheduled           string `json:"isScheduled"`
			IsDelayed             string `json:"isDelayed"`
			BusRemark             string `json:"busRemark"`
		} `json:"bus"`
	} `json:"busStop"`
}

// matchesMtrBusStop accepts the catalog stop ID itself and any of the
// schedule feed's aliases for it.
func (q *query) matchesMtrBusStop(busStopID string) bool {
	if busStopID == q.stopID {
		return true
	}
	for _, alias := range q.a.mtrBusAliases[q.stopID] {
		if busStopID == alias {
			return true
		}
	}
	return false
}

func (q *query) fetchMtrBus(ctx context.Context) error {
	apiLang := "zh"
	if q.english() {
		apiLang = "en"
	}
	var payload mtrBusScheduleResponse
	body := mtrBusScheduleRequest{Language: apiLang, RouteName: q.route.RouteNumber}
	if err := q.postFeed(ctx, q.a.endpoints.MTRBusSchedule, body, &payload); err != nil {
		return err
	}

	for _, stop := range payload.BusStop {
		if !q.matchesMtrBusStop(stop.BusStopID) {
			continue
		}
		for i, bus := range stop.Bus {
			seq := i + 1
			eta, err := strconv.ParseFloat(strings.TrimSpace(bus.ArrivalTimeInSecond), 64)
			if err != nil {
				eta = -1
			}
			if eta >= departedThreshold {
				eta, err = strconv.ParseFloat(strings.TrimSpace(bus.DepartureTimeInSecond), 64)
				if err != nil {
					eta = -1
				}
			}
			mins := int(math.Floor(eta / 60))

			message := q.minuteText(mins)
			if message != "" && seq == 1 {
				q.nextScheduledBus = mins
			}
			remarks := make([]string, 0, 3)
			if r := strings.TrimSpace(bus.BusRemark); r != "" {
				remarks = append(remarks, r)
			}
			if bus.IsScheduled == "1" {
				remarks = append(remarks, q.pick("Scheduled Bus", "預定班次"))
			}
			if bus.IsDelayed == "1" {
				remarks = append(remarks, q.pick("Bus Delayed", "行車緩慢"))
			}
			message = appendRemark(message, strings.Join(remarks, "/"))
			message = canonicalizeRemark(message)
			q.lines[seq] = q.finishLine(message, seq)
		}
	}
	return nil
}
