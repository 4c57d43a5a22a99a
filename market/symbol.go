package market

import "math"

// DefaultPoint is the point size of 5-digit FX pricing
// (1.23456 -> one point = 0.00001).
const DefaultPoint = 0.00001

// SymbolInfo describes how one broker quotes a symbol.
type SymbolInfo struct {
	Name   string
	Point  float64
	Digits int
}

// PointsBetween returns the distance between two prices in whole broker
// points. Prices are binary floats, so the quotient is rounded to the
// nearest integer point before it is compared against a tolerance.
func PointsBetween(a, b, point float64) int {
	if point <= 0 {
		point = DefaultPoint
	}
	return int(math.Round(math.Abs(a-b) / point))
}
