package object

import "strconv"

// mtrLineSortingIndex fixes the display order of heavy-rail lines in
// route search results.
var mtrLineSortingIndex = map[string]int{
	"KTL": 0,
	"TWL": 1,
	"ISL": 2,
	"TKL": 3,
	"SIL": 4,
	"EAL": 5,
	"TML": 6,
	"TCL": 7,
	"AEL": 8,
	"DRL": 9,
}

// MtrLineSortingIndex returns the sort position of an MTR line code,
// with unknown lines sorted last.
func MtrLineSortingIndex(lineName string) int {
	if idx, ok := mtrLineSortingIndex[lineName]; ok {
		return idx
	}
	return 10
}

var mtrLineColors = map[string]string{
	"AEL": "#00888E",
	"TCL": "#F3982D",
	"TML": "#9C2E00",
	"TKL": "#7E3C93",
	"EAL": "#5EB7E8",
	"SIL": "#CBD300",
	"TWL": "#E60012",
	"ISL": "#0075C2",
	"KTL": "#00A040",
	"DRL": "#EB6EA5",
}

// MtrLineColor returns the official hex color of an MTR line, or white
// for unknown lines.
func MtrLineColor(lineName string) string {
	if c, ok := mtrLineColors[lineName]; ok {
		return c
	}
	return "#FFFFFF"
}

var mtrLineNames = map[string]BilingualText{
	"AEL": {Zh: "機場快綫", En: "Airport Express"},
	"TCL": {Zh: "東涌綫", En: "Tung Chung Line"},
	"TML": {Zh: "屯馬綫", En: "Tuen Ma Line"},
	"TKL": {Zh: "將軍澳綫", En: "Tseung Kwan O Line"},
	"EAL": {Zh: "東鐵綫", En: "East Rail Line"},
	"SIL": {Zh: "南港島綫", En: "South Island Line"},
	"TWL": {Zh: "荃灣綫", En: "Tsuen Wan Line"},
	"ISL": {Zh: "港島綫", En: "Island Line"},
	"KTL": {Zh: "觀塘綫", En: "Kwun Tong Line"},
	"DRL": {Zh: "迪士尼綫", En: "Disneyland Resort Line"},
}

// MtrLineName returns the bilingual name of an MTR line, falling back
// to the code itself.
func MtrLineName(lineName string) BilingualText {
	if n, ok := mtrLineNames[lineName]; ok {
		return n
	}
	return BilingualText{Zh: lineName, En: lineName}
}

// circledNumbers map platform numbers to the dingbat glyphs used on
// station signage.
var circledNumbers = []rune("①②③④⑤⑥⑦⑧⑨⑩⑪⑫⑬⑭⑮⑯⑰⑱⑲⑳")

// CircledNumber renders 1..20 as a circled glyph for platform badges;
// out-of-range numbers come back as plain digits.
func CircledNumber(n int) string {
	if n >= 1 && n <= len(circledNumbers) {
		return string(circledNumbers[n-1])
	}
	return strconv.Itoa(n)
}
