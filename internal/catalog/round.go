package catalog

import "github.com/shopspring/decimal"

// Round округляет x до places знаков после запятой (половина округляется от нуля).
func Round(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}
