package notices

import (
	"math"
	"sort"
	"strings"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// Importance orders notices on a route page: disruptions first, then
// the operator's standing links, then network-wide news that does not
// touch the route.
type Importance int

const (
	Important Importance = iota
	Normal
	NotImportant
)

// Notice is a single entry on a route's notice board. External notices
// carry a URL and open elsewhere; text notices carry their content
// inline. Co is nil for network-wide traffic news.
type Notice struct {
	Title       string
	Co          *object.Operator
	Importance  Importance
	URL         string
	Content     string
	IsRealTitle bool
	Sort        int
}

// IsExternal reports whether this notice links out instead of carrying
// its content inline.
func (n *Notice) IsExternal() bool {
	return n.URL != ""
}

func sortNotices(list []*Notice) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Importance != b.Importance {
			return a.Importance < b.Importance
		}
		if ao, bo := coOrdinal(a.Co), coOrdinal(b.Co); ao != bo {
			return ao < bo
		}
		return a.Sort < b.Sort
	})
}

func coOrdinal(co *object.Operator) int {
	if co == nil {
		return math.MaxInt
	}
	return co.Ordinal()
}

// pdfViewerURL wraps direct PDF links in a viewer so they render
// inside a web view.
func pdfViewerURL(url string) string {
	if strings.HasSuffix(url, ".pdf") {
		return "https://docs.google.com/gview?embedded=true&url=" + url
	}
	return url
}

// defaultNotices returns the standing link notices for each of the
// route's operators: route info pages, network maps and interchange
// scheme pages.
func (s *Service) defaultNotices(route *object.Route) []*Notice {
	en := s.language == "en"
	pick := func(enText, zhText string) string {
		if en {
			return enText
		}
		return zhText
	}
	mtrLang := pick("en", "ch")

	var list []*Notice
	for _, co := range route.Operators() {
		switch co {
		case object.OperatorKMB:
			list = append(list, &Notice{
				Title:      pick("KMB Route Info", "九巴路線資訊"),
				Co:         co,
				Importance: Normal,
				URL: "https://search.kmb.hk/KMBWebSite/?action=routesearch&route=" +
					route.RouteNumber + "&lang=" + pick("en", "zh-hk"),
			}, &Notice{
				Title:      pick("KMB Octopus and E-payment Bus-Bus Interchange Schemes", "九巴八達通及電子支付巴士轉乘計劃"),
				Co:         co,
				Importance: Normal,
				URL:        "https://www.kmb.hk/interchange_bbi.html",
			})
		case object.OperatorCTB:
			list = append(list, &Notice{
				Title:      pick("Citybus Route Info", "城巴路線資訊"),
				Co:         co,
				Importance: Normal,
				URL: "https://mobile.citybus.com.hk/nwp3/?f=1&ds=" +
					route.RouteNumber + "&dsmode=1&l=" + pick("1", "0"),
			}, &Notice{
				Title:      pick("Citybus Route Updates", "城巴路線最新資訊"),
				Co:         co,
				Importance: Normal,
				URL:        "https://mobile.citybus.com.hk/nwp3/specialNote.php?r=" + route.RouteNumber,
			}, &Notice{
				Title:      pick("Citybus Route Interchange Discount", "城巴路線轉乘優惠"),
				Co:         co,
				Importance: Normal,
				URL:        "https://www.citybus.com.hk/concession/" + pick("en", "tc") + "/route/" + route.RouteNumber,
			})
		case object.OperatorNLB:
			list = append(list, &Notice{
				Title:      pick("NLB Route Info", "嶼巴路線資訊"),
				Co:         co,
				Importance: Normal,
				URL:        "https://www.nlb.com.hk/route/detail/" + route.NlbID,
			})
		case object.OperatorMTRBus:
			list = append(list, &Notice{
				Title:      pick("MTR Bus Route Info", "港鐵巴士路線資訊"),
				Co:         co,
				Importance: Normal,
				URL: "https://www.mtr.com.hk/" + mtrLang +
					"/customer/services/searchBusRouteDetails.php?routeID=" + route.RouteNumber,
			})
		case object.OperatorLightRail:
			list = append(list, &Notice{
				Title:      pick("Light Rail Route Map", "輕鐵路綫圖"),
				Co:         co,
				Importance: Normal,
				URL:        pdfViewerURL("https://www.mtr.com.hk/archive/" + mtrLang + "/services/LR_routemap.pdf"),
			}, &Notice{
				Title:      pick("Light Rail Route Info", "輕鐵路線資訊"),
				Co:         co,
				Importance: Normal,
				URL:        "https://www.mtr.com.hk/" + mtrLang + "/customer/services/schedule_index.html",
			})
		case object.OperatorMTR:
			list = append(list, &Notice{
				Title:      pick("MTR System Map", "港鐵路綫圖"),
				Co:         co,
				Importance: Normal,
				URL:        pdfViewerURL("https://www.mtr.com.hk/archive/" + mtrLang + "/services/routemap.pdf"),
			}, &Notice{
				Title:      pick("MTR Route Info", "港鐵路線資訊"),
				Co:         co,
				Importance: Normal,
				URL:        "https://www.mtr.com.hk/" + mtrLang + "/customer/services/train_service_index.html",
			})
		}
	}
	return list
}
