package object

import "strings"

// KMBSubsidiary identifies which franchise within the KMB group
// actually operates a route number.
type KMBSubsidiary int

const (
	SubsidiaryKMB KMBSubsidiary = iota
	SubsidiaryLWB
	SubsidiarySunBus
)

// Long Win routes that do not follow the airport prefix convention.
var lwbSpecialRoutes = map[string]bool{
	"N30": true, "N31": true, "N42": true, "N42A": true, "N64": true,
	"R8": true, "R33": true, "R42": true,
	"X1": true, "X33": true, "X34": true, "X40": true, "X43": true, "X47": true,
}

var sunBusRoutes = map[string]bool{
	"331": true, "331S": true, "917": true, "918": true, "945": true,
}

// GetKMBSubsidiary classifies a KMB-group route number. Night variants
// are classified by their day-time number, so "NA43" follows "A43".
func GetKMBSubsidiary(routeNumber string) KMBSubsidiary {
	num := strings.ToUpper(routeNumber)
	if lwbSpecialRoutes[num] {
		return SubsidiaryLWB
	}
	if sunBusRoutes[num] {
		return SubsidiarySunBus
	}
	day := strings.TrimPrefix(num, "N")
	if strings.HasPrefix(day, "A") || strings.HasPrefix(day, "E") || strings.HasPrefix(day, "S") {
		return SubsidiaryLWB
	}
	return SubsidiaryKMB
}
