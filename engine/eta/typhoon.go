package eta

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// DefaultTyphoonURL is the Observatory warning summary endpoint. The
// %s placeholder takes the API language code ("en" or "tc").
const DefaultTyphoonURL = "https://data.weather.gov.hk/weatherAPI/opendata/weather.php?dataType=warnsum&lang=%s"

// typhoonCacheTTL keeps warning lookups off the hot path; signals do
// not change by the minute.
const typhoonCacheTTL = 5 * time.Minute

var typhoonCodePattern = regexp.MustCompile(`TC([0-9]+)(.*)`)

// TyphoonInfo is the tropical cyclone warning in force, if any.
type TyphoonInfo struct {
	Title            string
	Signal           int
	AboveSignalEight bool
	AboveSignalNine  bool
	IconID           string
}

// typhoonState caches the warning summary per display language.
type typhoonState struct {
	mu      sync.Mutex
	cached  map[string]TyphoonInfo
	fetched map[string]time.Time
}

func newTyphoonState() *typhoonState {
	return &typhoonState{
		cached:  make(map[string]TyphoonInfo),
		fetched: make(map[string]time.Time),
	}
}

type warnsumResponse struct {
	WTCSGNL struct {
		Code string `json:"code"`
		Type string `json:"type"`
	} `json:"WTCSGNL"`
}

// TyphoonState returns the tropical cyclone warning in force, refreshed
// at most once per typhoonCacheTTL. The zero value means no warning.
func (a *Aggregator) TyphoonState(ctx context.Context) TyphoonInfo {
	return a.currentTyphoon(ctx)
}

// currentTyphoon refreshes the cache when it is older than
// typhoonCacheTTL. Fetch and parse failures are treated as no warning;
// an unreachable Observatory must not fail ETA queries.
func (a *Aggregator) currentTyphoon(ctx context.Context) TyphoonInfo {
	s := a.typhoon
	s.mu.Lock()
	defer s.mu.Unlock()

	now := a.now()
	if at, ok := s.fetched[a.language]; ok && now.Sub(at) < typhoonCacheTTL {
		return s.cached[a.language]
	}

	info := a.fetchTyphoon(ctx)
	s.cached[a.language] = info
	s.fetched[a.language] = now
	return info
}

func (a *Aggregator) fetchTyphoon(ctx context.Context) TyphoonInfo {
	apiLang := "tc"
	if a.language == "en" {
		apiLang = "en"
	}
	var payload warnsumResponse
	url := fmt.Sprintf(a.endpoints.Typhoon, apiLang)
	if err := util.DownloadJSON(ctx, a.client, url, &payload); err != nil {
		return TyphoonInfo{}
	}

	m := typhoonCodePattern.FindStringSubmatch(payload.WTCSGNL.Code)
	if m == nil {
		return TyphoonInfo{}
	}
	signal, err := strconv.Atoi(m[1])
	if err != nil {
		return TyphoonInfo{}
	}

	title := payload.WTCSGNL.Type + " 現正生效"
	if a.language == "en" {
		title = payload.WTCSGNL.Type + " is in force"
	}
	iconID := "tc" + m[1]
	if signal >= 8 {
		iconID = fmt.Sprintf("tc%02d", signal)
	}
	iconID += strings.ToLower(m[2])

	return TyphoonInfo{
		Title:            title,
		Signal:           signal,
		AboveSignalEight: signal >= 8,
		AboveSignalNine:  signal >= 9,
		IconID:           iconID,
	}
}
