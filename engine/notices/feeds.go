package notices

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// trafficNewsEntry is one incident in the Transport Department's
// traffic news feed. Field names follow the feed.
type trafficNewsEntry struct {
	IncidentHeadingEN string `xml:"INCIDENT_HEADING_EN"`
	IncidentHeadingCN string `xml:"INCIDENT_HEADING_CN"`
	IncidentDetailEN  string `xml:"INCIDENT_DETAIL_EN"`
	IncidentDetailCN  string `xml:"INCIDENT_DETAIL_CN"`
	ContentEN         string `xml:"CONTENT_EN"`
	ContentCN         string `xml:"CONTENT_CN"`
	AnnouncementDate  string `xml:"ANNOUNCEMENT_DATE"`
}

type trafficNewsFeed struct {
	Messages []trafficNewsEntry `xml:"message"`
}

// specialTrafficNewsEntry is one item of the special traffic news
// (emergency arrangements) feed.
type specialTrafficNewsEntry struct {
	MsgID         string `xml:"msgID"`
	CurrentStatus string `xml:"CurrentStatus"`
	ChinText      string `xml:"ChinText"`
	EngText       string `xml:"EngText"`
	ReferenceDate string `xml:"ReferenceDate"`
}

type specialTrafficNewsFeed struct {
	Messages []specialTrafficNewsEntry `xml:"message"`
}

// mtrLineMatches are the Chinese heavy-rail line names; incidents
// naming a line concern MTR even when the operator is not named.
var mtrLineMatches = []string{
	"機場快綫", "東涌綫", "屯馬綫", "將軍澳綫", "東鐵綫",
	"南港島綫", "荃灣綫", "港島綫", "觀塘綫", "迪士尼綫",
}

// mentionedOperators tags an incident with the operators its Chinese
// text names. Line names count as naming MTR.
func mentionedOperators(texts ...string) []*object.Operator {
	var ops []*object.Operator
	for _, co := range object.BuiltinOperators() {
		name := co.DisplayName().Zh
		for _, text := range texts {
			if strings.Contains(text, name) {
				ops = append(ops, co)
				break
			}
		}
	}
	for _, co := range ops {
		if co == object.OperatorMTR {
			return ops
		}
	}
	for _, line := range mtrLineMatches {
		for _, text := range texts {
			if strings.Contains(text, line) {
				return append(ops, object.OperatorMTR)
			}
		}
	}
	return ops
}

func concernsRoute(ops []*object.Operator, route *object.Route) bool {
	for _, co := range ops {
		if route.HasOperator(co) {
			return true
		}
	}
	return false
}

const displayTimeLayout = "2006-01-02 15:04"

// announcementTime formats the traffic news feed's ISO local
// timestamp, falling back to the raw value.
func announcementTime(raw string) string {
	t, err := time.Parse("2006-01-02T15:04:05", strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return t.Format(displayTimeLayout)
}

var referenceDatePattern = regexp.MustCompile(
	`([0-9]{4})/([0-9]{1,2})/([0-9]{1,2}) (.{2}) ([0-9]{1,2}):([0-9]{1,2}):([0-9]{1,2})`)

// referenceTime parses the special traffic news feed's timestamp,
// which spells the half of day in Chinese ("2024/5/1 下午 3:05:00").
func referenceTime(raw string) string {
	m := referenceDatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return raw
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[5])
	minute, _ := strconv.Atoi(m[6])
	second, _ := strconv.Atoi(m[7])
	if strings.Contains(m[4], "下午") {
		hour = hour%12 + 12
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	return t.Format(displayTimeLayout)
}

func (s *Service) updatedLabel() string {
	if s.language == "en" {
		return "Last Updated"
	}
	return "更新時間"
}

// trafficNews converts the incident feed into text notices, keeping
// incidents that concern the route's operators (important) or name no
// operator at all (not important).
func (s *Service) trafficNews(ctx context.Context, route *object.Route) ([]*Notice, error) {
	var feed trafficNewsFeed
	if err := s.getXML(ctx, s.endpoints.TrafficNews, &feed); err != nil {
		return nil, err
	}

	var list []*Notice
	for _, news := range feed.Messages {
		ops := mentionedOperators(news.IncidentHeadingCN, news.IncidentDetailCN)
		important := concernsRoute(ops, route)
		if len(ops) > 0 && !important {
			continue
		}
		importance := NotImportant
		if important {
			importance = Important
		}

		title := s.pick(news.IncidentDetailEN, news.IncidentDetailCN)
		if strings.TrimSpace(title) == "" {
			title = s.pick(news.IncidentHeadingEN, news.IncidentHeadingCN)
		}
		content := plainText(s.pick(news.ContentEN, news.ContentCN)) +
			"\n\n" + s.updatedLabel() + ": " + announcementTime(news.AnnouncementDate)

		list = append(list, &Notice{
			Title:       inlineText(title),
			Importance:  importance,
			Content:     content,
			IsRealTitle: true,
		})
	}
	return list, nil
}

// specialTrafficNews converts the emergency arrangements feed; items
// have no heading, so the first line of the body stands in for one.
func (s *Service) specialTrafficNews(ctx context.Context, route *object.Route) ([]*Notice, error) {
	var feed specialTrafficNewsFeed
	if err := s.getXML(ctx, s.endpoints.SpecialTrafficNews, &feed); err != nil {
		return nil, err
	}

	var list []*Notice
	for _, news := range feed.Messages {
		ops := mentionedOperators(news.ChinText)
		important := concernsRoute(ops, route)
		if len(ops) > 0 && !important {
			continue
		}
		importance := NotImportant
		if important {
			importance = Important
		}

		text := plainText(s.pick(news.EngText, news.ChinText))
		title := s.pick("Special Arrangement", "特別安排")
		if lines := strings.Split(text, "\n"); len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
			title = strings.TrimSpace(lines[0])
		}
		content := text + "\n\n" + s.updatedLabel() + ": " + referenceTime(news.ReferenceDate)

		list = append(list, &Notice{
			Title:      title,
			Importance: importance,
			Content:    content,
		})
	}
	return list, nil
}
