package core

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	sixty      = decimal.NewFromInt(60)
	workdayHrs = decimal.NewFromInt(8)
	oneHour    = decimal.NewFromInt(1)
)

// FormatHours renders a labour-time quantity for humans.
//
// Below one hour it shows whole minutes (never less than "1 min"); below a
// working day it shows hours and minutes, dropping a zero minute part; from
// eight hours on it shows 8-hour work days with one decimal.
func FormatHours(h decimal.Decimal) string {
	switch {
	case h.LessThan(oneHour):
		minutes := h.Mul(sixty).Floor().IntPart()
		if minutes < 1 {
			minutes = 1
		}
		return strconv.FormatInt(minutes, 10) + " min"
	case h.LessThan(workdayHrs):
		whole := h.Floor()
		minutes := h.Sub(whole).Mul(sixty).Floor().IntPart()
		out := strconv.FormatInt(whole.IntPart(), 10) + "h"
		if minutes != 0 {
			out += " " + strconv.FormatInt(minutes, 10) + "m"
		}
		return out
	default:
		return h.Div(workdayHrs).StringFixed(1) + " work days"
	}
}
