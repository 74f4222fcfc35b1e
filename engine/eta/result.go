package eta

import "github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"

// noEta marks a schedule entry without a usable arrival time.
const noEta = -999

// Result is one completed ETA query for a stop on a route. Lines is
// keyed by departure sequence starting at 1 and holds display-ready
// HTML fragments.
type Result struct {
	IsConnectionError bool             `json:"isConnectionError"`
	NextScheduledBus  int              `json:"nextScheduledBus"`
	IsMtrEndOfLine    bool             `json:"isMtrEndOfLine"`
	IsTyphoonSchedule bool             `json:"isTyphoonSchedule"`
	NextCo            *object.Operator `json:"-"`
	Lines             map[int]string   `json:"lines"`
}

// Line returns the display text for a sequence, or "-" when the feed
// returned fewer departures.
func (r *Result) Line(seq int) string {
	if text, ok := r.Lines[seq]; ok {
		return text
	}
	return "-"
}

// newResult clamps the headway the way the UI expects: a bus that is
// due or slightly overdue counts as 0 minutes away, anything without a
// usable ETA as -1.
func newResult(nextScheduledBus int, isMtrEndOfLine, isTyphoonSchedule bool, nextCo *object.Operator, lines map[int]string) *Result {
	next := -1
	if nextScheduledBus > -60 {
		next = max(0, nextScheduledBus)
	}
	return &Result{
		NextScheduledBus:  next,
		IsMtrEndOfLine:    isMtrEndOfLine,
		IsTyphoonSchedule: isTyphoonSchedule,
		NextCo:            nextCo,
		Lines:             lines,
	}
}

// connectionErrorResult is returned for timeouts and transport
// failures. It never carries stale schedule lines.
func connectionErrorResult(language string, co *object.Operator) *Result {
	message := "無法連接伺服器"
	if language == "en" {
		message = "Unable to Connect"
	}
	return &Result{
		IsConnectionError: true,
		NextScheduledBus:  -1,
		NextCo:            co,
		Lines:             map[int]string{1: message},
	}
}
