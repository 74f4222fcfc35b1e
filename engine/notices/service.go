package notices

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// Endpoints holds the notice source URL templates, overridable for
// tests.
type Endpoints struct {
	TrafficNews        string
	SpecialTrafficNews string
	KMBAnnounce        string // route number, bound digit
	KMBAnnouncePicture string // image path from the announce feed
	CTBNotice          string // route number, language digit
}

// DefaultEndpoints returns the production notice sources.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TrafficNews:        "https://td.gov.hk/tc/special_news/trafficnews.xml",
		SpecialTrafficNews: "https://resource.data.one.gov.hk/td/en/specialtrafficnews.xml",
		KMBAnnounce:        "https://search.kmb.hk/KMBWebSite/Function/FunctionRequest.ashx?action=getAnnounce&route=%s&bound=%s",
		KMBAnnouncePicture: "https://search.kmb.hk/KMBWebSite/AnnouncementPicture.ashx?url=%s",
		CTBNotice:          "https://mobile.citybus.com.hk/nwp3/getnotice.php?id=%s&l=%s",
	}
}

// Options configures a Service.
type Options struct {
	Client    *http.Client
	Language  string // "en" or "zh"
	Endpoints Endpoints
}

// Service assembles the notice board for a route: standing operator
// links, per-operator announcements, and the Transport Department's
// traffic news feeds.
type Service struct {
	client    *http.Client
	language  string
	endpoints Endpoints

	// Serializes outgoing requests, the notice sources are small
	// government and operator sites.
	mu sync.Mutex
}

func New(o Options) *Service {
	s := &Service{
		client:    o.Client,
		language:  o.Language,
		endpoints: o.Endpoints,
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.language == "" {
		s.language = "zh"
	}
	if (s.endpoints == Endpoints{}) {
		s.endpoints = DefaultEndpoints()
	}
	return s
}

func (s *Service) pick(en, zh string) string {
	if s.language == "en" {
		return en
	}
	return zh
}

func (s *Service) get(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return util.Download(ctx, s.client, url)
}

func (s *Service) getXML(ctx context.Context, url string, v any) error {
	raw, err := s.get(ctx, url)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(raw, v); err != nil {
		return util.ShapeMismatchError{URL: url, Reason: err.Error()}
	}
	return nil
}

// RouteNotices builds the sorted notice board for a route. Each source
// fails independently: an unreachable feed costs its notices, not the
// whole board.
func (s *Service) RouteNotices(ctx context.Context, route *object.Route) []*Notice {
	list := s.defaultNotices(route)

	for _, co := range route.Operators() {
		var (
			fetched []*Notice
			err     error
		)
		switch co {
		case object.OperatorKMB:
			fetched, err = s.kmbAnnouncements(ctx, route)
		case object.OperatorCTB:
			fetched, err = s.ctbNotices(ctx, route)
		default:
			continue
		}
		if err != nil {
			log.Printf("notices: %s announcements for %s: %v", co.Name, route.RouteNumber, err)
			continue
		}
		list = append(list, fetched...)
	}

	if fetched, err := s.trafficNews(ctx, route); err != nil {
		log.Printf("notices: traffic news: %v", err)
	} else {
		list = append(list, fetched...)
	}
	if fetched, err := s.specialTrafficNews(ctx, route); err != nil {
		log.Printf("notices: special traffic news: %v", err)
	} else {
		list = append(list, fetched...)
	}

	sortNotices(list)
	return list
}

type kmbAnnounceResponse struct {
	Data []struct {
		Title    string `json:"kpi_title"`
		TitleChi string `json:"kpi_title_chi"`
		ImageURL string `json:"kpi_noticeimageurl"`
	} `json:"data"`
}

// kmbAnnouncements lists the route's notice images from the KMB
// announcement feed.
func (s *Service) kmbAnnouncements(ctx context.Context, route *object.Route) ([]*Notice, error) {
	bound := "2"
	if route.Bound[object.OperatorKMB.Name] == "O" {
		bound = "1"
	}
	raw, err := s.get(ctx, fmt.Sprintf(s.endpoints.KMBAnnounce, route.RouteNumber, bound))
	if err != nil {
		return nil, err
	}
	var payload kmbAnnounceResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, util.ShapeMismatchError{URL: s.endpoints.KMBAnnounce, Reason: err.Error()}
	}

	var list []*Notice
	for i, item := range payload.Data {
		list = append(list, &Notice{
			Title:      s.pick(item.Title, item.TitleChi),
			Co:         object.OperatorKMB,
			Importance: Important,
			URL:        pdfViewerURL(fmt.Sprintf(s.endpoints.KMBAnnouncePicture, item.ImageURL)),
			Sort:       i,
		})
	}
	return list, nil
}

var (
	ctbNoticeURLPattern = regexp.MustCompile(`window\.open\('([^']+)'`)
	lineBreakPattern    = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ctbNotices scrapes the Citybus mobile notice page, which links each
// notice from a table cell's onclick handler.
func (s *Service) ctbNotices(ctx context.Context, route *object.Route) ([]*Notice, error) {
	raw, err := s.get(ctx, fmt.Sprintf(s.endpoints.CTBNotice, route.RouteNumber, s.pick("1", "0")))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	var list []*Notice
	doc.Find("td[onclick]").Each(func(i int, sel *goquery.Selection) {
		onclick, _ := sel.Attr("onclick")
		m := ctbNoticeURLPattern.FindStringSubmatch(onclick)
		if m == nil {
			return
		}
		list = append(list, &Notice{
			Title:      noticeCellTitle(sel),
			Co:         object.OperatorCTB,
			Importance: Important,
			URL:        pdfViewerURL(m[1]),
			Sort:       i,
		})
	})
	return list, nil
}

// noticeCellTitle extracts the cell's notice title, the text after the
// last line break.
func noticeCellTitle(sel *goquery.Selection) string {
	html, err := sel.Html()
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	parts := lineBreakPattern.Split(html, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if title := inlineText(parts[i]); title != "" {
			return title
		}
	}
	return ""
}
