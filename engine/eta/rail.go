package eta

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

const mtrTimeLayout = "2006-01-02 15:04:05"

var (
	lrtMinutesPattern = regexp.MustCompile(`([0-9]+) *min`)
	leadingDigits     = regexp.MustCompile(`^([0-9]+)`)
)

type lrtScheduleResponse struct {
	Status       int `json:"status"`
	PlatformList []struct {
		PlatformID int `json:"platform_id"`
		RouteList  []struct {
			RouteNo     string `json:"route_no"`
			TimeEn      string `json:"time_en"`
			TimeCh      string `json:"time_ch"`
			TrainLength int    `json:"train_length"`
		} `json:"route_list"`
	} `json:"platform_list"`
}

// lrtArrival is one light rail departure before rendering; sorted by
// countdown, then by platform so parallel departures stay stable.
type lrtArrival struct {
	platform    int
	mins        int
	display     string
	trainLength int
}

func (q *query) serverUnableMessage() string {
	return q.pick("Server unable to provide data", "系統未能提供資訊")
}

func (q *query) fetchLrt(ctx context.Context) error {
	// Only the first occurrence counts; circular routes close the loop
	// by repeating their first stop at the end.
	stops := q.route.Stops[object.OperatorLightRail.Name]
	for i, s := range stops {
		if s != q.stopID {
			continue
		}
		if i+1 >= len(stops) {
			q.isMtrEndOfLine = true
			q.lines[1] = q.pick("End of Line", "終點站")
			return nil
		}
		break
	}

	var payload lrtScheduleResponse
	url := fmt.Sprintf(q.a.endpoints.LRTSchedule, strings.TrimPrefix(q.stopID, "LR"))
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return err
	}
	if payload.Status == 0 {
		q.lines[1] = q.serverUnableMessage()
		return nil
	}

	var arrivals []lrtArrival
	for _, platform := range payload.PlatformList {
		for _, train := range platform.RouteList {
			if train.RouteNo != q.route.RouteNumber {
				continue
			}
			mins := 0
			if m := lrtMinutesPattern.FindStringSubmatch(train.TimeEn); m != nil {
				mins, _ = strconv.Atoi(m[1])
			}
			arrivals = append(arrivals, lrtArrival{
				platform:    platform.PlatformID,
				mins:        mins,
				display:     q.lrtDisplayText(train.TimeEn, train.TimeCh),
				trainLength: train.TrainLength,
			})
		}
	}
	sort.SliceStable(arrivals, func(i, j int) bool {
		if arrivals[i].mins != arrivals[j].mins {
			return arrivals[i].mins < arrivals[j].mins
		}
		return arrivals[i].platform < arrivals[j].platform
	})

	for i, train := range arrivals {
		seq := i + 1
		carts := strings.Repeat(`<img src="lrv"/>`, train.trainLength)
		if train.trainLength == 1 {
			carts += `<img src="lrv_empty"/>`
		}
		if seq == 1 {
			q.nextScheduledBus = train.mins
		}
		q.lines[seq] = fmt.Sprintf(`<b></b><span style="color: #D3A809">%s</span> %s %s`,
			object.CircledNumber(train.platform), carts, train.display)
	}
	return nil
}

// lrtDisplayText renders the feed's free-form countdown field. Trains
// at the platform read "-" in the feed and are shown as departing.
func (q *query) lrtDisplayText(timeEn, timeCh string) string {
	display := q.pick(timeEn, timeCh)
	if timeEn == "-" {
		display = q.pick("Departing", "正在離開")
	}
	switch display {
	case "Arriving", "Departing", "即將抵達", "正在離開":
		return "<b>" + display + "</b>"
	}
	display = leadingDigits.ReplaceAllString(display, "<b>$1</b>")
	display = strings.ReplaceAll(display, " min", "<small> Min.</small>")
	return strings.ReplaceAll(display, " 分鐘", "<small> 分鐘</small>")
}

type mtrTrain struct {
	Seq   string `json:"seq"`
	Plat  string `json:"plat"`
	Time  string `json:"time"`
	Dest  string `json:"dest"`
	Route string `json:"route"`
}

type mtrScheduleResponse struct {
	Status  int    `json:"status"`
	IsDelay string `json:"isdelay"`
	Data    map[string]struct {
		Up   []mtrTrain `json:"UP"`
		Down []mtrTrain `json:"DOWN"`
	} `json:"data"`
}

func (q *query) fetchMtr(ctx context.Context) error {
	line := q.route.RouteNumber
	bound := q.route.Bound[object.OperatorMTR.Name]
	if q.a.resolver.IsMtrStopEndOfLine(q.stopID, line, bound) {
		q.isMtrEndOfLine = true
		q.lines[1] = q.pick("End of Line", "終點站")
		return nil
	}

	now := q.a.now().In(util.HongKongTime)
	outOfServiceHours := now.Hour() < 5

	var payload mtrScheduleResponse
	url := fmt.Sprintf(q.a.endpoints.MTRSchedule, line, q.stopID)
	if err := q.downloadFeed(ctx, url, &payload); err != nil {
		return err
	}
	if payload.Status == 0 {
		q.lines[1] = q.serverUnableMessage()
		return nil
	}

	entry, ok := payload.Data[line+"-"+q.stopID]
	trains := entry.Up
	if bound != "UT" {
		trains = entry.Down
	}
	if !ok || len(trains) == 0 {
		switch {
		case q.stopID == "RAC":
			q.lines[1] = q.pick("Service on race days only", "僅在賽馬日提供服務")
		case outOfServiceHours:
			q.lines[1] = q.pick("Last train has departed", "尾班車已開出")
		default:
			q.lines[1] = q.serverUnableMessage()
		}
		return nil
	}

	delayed := payload.IsDelay != "" && payload.IsDelay != "N"
	lineColor := object.MtrLineColor(line)
	for _, train := range trains {
		seq, _ := strconv.Atoi(train.Seq)
		plat, _ := strconv.Atoi(train.Plat)
		dest := q.mtrDestText(train)

		etaTime, err := time.ParseInLocation(mtrTimeLayout, train.Time, util.HongKongTime)
		if err != nil {
			continue
		}
		mins := util.CeilMinutesUntil(now, etaTime)

		var minsText string
		switch {
		case mins > 1:
			minsText = "<b>" + strconv.Itoa(mins) + "</b><small>" + q.pick(" Min.", " 分鐘") + "</small>"
		case mins == 1:
			minsText = "<b>" + q.pick("Arriving", "即將抵達") + "</b>"
		default:
			minsText = "<b>" + q.pick("Departing", "正在離開") + "</b>"
		}

		message := fmt.Sprintf(`<b></b><span style="color: %s">%s</span> %s %s`,
			lineColor, object.CircledNumber(plat), dest, minsText)
		if seq == 1 {
			q.nextScheduledBus = mins
			if delayed {
				message += "<small>" + q.pick(" (Delayed)", " (服務延誤)") + "</small>"
			}
		}
		q.lines[seq] = message
	}
	return nil
}

// mtrDestText localizes the destination, expanding the Expo shorthand
// everywhere except at the airport itself, and appends the via-stop of
// a short-working or diverted trip the queried stop is not part of.
func (q *query) mtrDestText(train mtrTrain) string {
	dest := train.Dest
	if stop := q.a.data.StopList[train.Dest]; stop != nil {
		dest = stop.Name.Get(q.a.language)
	}
	if q.stopID != "AIR" {
		switch dest {
		case "博覽館":
			dest = "機場及博覽館"
		case "AsiaWorld-Expo":
			dest = "Airport & AsiaWorld-Expo"
		}
	}
	line := q.route.RouteNumber
	bound := q.route.Bound[object.OperatorMTR.Name]
	if train.Route != "" && !q.a.resolver.IsMtrStopOnOrAfter(q.stopID, train.Route, line, bound) {
		if via := q.a.data.StopList[train.Route]; via != nil {
			dest += "<small>" + q.pick(" via ", " 經") + via.Name.Get(q.a.language) + "</small>"
		}
	}
	return dest
}
