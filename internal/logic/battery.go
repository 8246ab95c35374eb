package logic

import (
	"math"
	"strconv"
)

// Battery curve break points for a single Li-ion cell, in millivolts.
const (
	BatteryNominalFull = 4200
	batteryKnee        = 3870
	batteryEmpty       = 3300
)

// BatteryPercent maps a cell voltage to a charge estimate. Anything within
// tolerance of a full cell reads as 100%. Above the knee the curve is
// linear; below it a logistic fit drops to 0% at batteryEmpty.
func BatteryPercent(millivolts, tolerance uint32) int {
	v := float64(millivolts) / 1000
	var pct float64
	switch {
	case millivolts+tolerance >= BatteryNominalFull:
		pct = 100
	case millivolts >= batteryKnee:
		pct = math.Round(120*v - 404)
	case millivolts > batteryEmpty:
		pct = math.Round(113 / (1 + math.Exp(46.3-12*v)))
	default:
		pct = 0
	}
	return clamp(int(pct), 0, 100)
}

// BatteryText formats a percentage for the status bar.
func BatteryText(pct int) string {
	return strconv.Itoa(pct) + "%"
}
