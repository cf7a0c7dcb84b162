// Package units converts the metric values stored in the dataset into the
// US customary units shown to readers, and formats them for display.
//
// The dataset stores production in tonnes, harvested area in hectares and
// yield in kilograms per hectare.
package units

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// Conversion constants.
const (
	PoundsPerTonne      = 2204.62
	PoundsPerUSTon      = 2000.0
	AcresPerHectare     = 2.47105
	LbPerAcrePerKgPerHa = 0.892179
)

// TonnesToPounds converts metric tonnes to pounds.
func TonnesToPounds(t float64) float64 { return t * PoundsPerTonne }

// PoundsToUSTons converts pounds to short tons.
func PoundsToUSTons(lb float64) float64 { return lb / PoundsPerUSTon }

// TonnesToUSTons converts metric tonnes to short tons through pounds.
func TonnesToUSTons(t float64) float64 { return PoundsToUSTons(TonnesToPounds(t)) }

// HectaresToAcres converts hectares to acres.
func HectaresToAcres(ha float64) float64 { return ha * AcresPerHectare }

// KgPerHaToLbPerAcre converts a yield in kg/ha to lb/acre.
func KgPerHaToLbPerAcre(y float64) float64 { return y * LbPerAcrePerKgPerHa }

// FormatTons renders a US ton figure compactly: "1.2M", "830K", "412".
func FormatTons(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return trim(v/1e9) + "B"
	case abs >= 1e6:
		return trim(v/1e6) + "M"
	case abs >= 1e3:
		return trim(v/1e3) + "K"
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func trim(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}
	return s
}

// FormatCommas renders v rounded to a whole number with thousands separators.
func FormatCommas(v float64) string {
	return humanize.CommafWithDigits(math.Round(v), 0)
}

// FormatDecimal renders v with thousands separators and at most one
// decimal place.
func FormatDecimal(v float64) string {
	return humanize.CommafWithDigits(math.Round(v*10)/10, 1)
}

// FormatPercent renders a share in [0,1] as a percentage with one decimal.
func FormatPercent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

// Metrics is a triple of converted values ready for display.
type Metrics struct {
	USTons    float64
	Acres     float64
	LbPerAcre float64
	HasArea   bool
	HasYield  bool
}

// Convert converts stored metric values. A zero area or yield is reported as
// missing rather than as a zero reading.
func Convert(tonnes, hectares, kgPerHa float64) Metrics {
	return Metrics{
		USTons:    TonnesToUSTons(tonnes),
		Acres:     HectaresToAcres(hectares),
		LbPerAcre: KgPerHaToLbPerAcre(kgPerHa),
		HasArea:   hectares > 0,
		HasYield:  kgPerHa > 0,
	}
}

// Lines formats the metrics as label/value rows for an info panel.
func (m Metrics) Lines() [][2]string {
	rows := [][2]string{{"Production", FormatDecimal(m.USTons) + " tons"}}
	if m.HasArea {
		rows = append(rows, [2]string{"Area Harvested", FormatDecimal(m.Acres) + " acres"})
	}
	if m.HasYield {
		rows = append(rows, [2]string{"Yield", FormatDecimal(m.LbPerAcre) + " lbs/acre"})
	}
	return rows
}
