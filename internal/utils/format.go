package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var persianDigits = map[rune]rune{
	'0': '۰',
	'1': '۱',
	'2': '۲',
	'3': '۳',
	'4': '۴',
	'5': '۵',
	'6': '۶',
	'7': '۷',
	'8': '۸',
	'9': '۹',
}

func ToPersianDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if pr, ok := persianDigits[r]; ok {
			b.WriteRune(pr)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseNumber accepts anything strconv does except infinities and NaN.
func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// FormatPrice truncates raw toward zero and adds thousands separators:
// "12345.6" becomes "12,345". Input that is not a finite number is returned
// unchanged.
func FormatPrice(raw string) string {
	f, ok := parseNumber(raw)
	if !ok {
		return raw
	}
	n, _ := big.NewFloat(f).Int(nil)
	return humanize.BigComma(n)
}

const (
	arrowUp      = "🟢 ▲"
	arrowDown    = "🔴 ▼"
	arrowNeutral = "➖ 0%"
)

// ChangeArrow renders a percentage change with a direction glyph and two
// decimals. Zero and unparseable input render as the neutral glyph.
func ChangeArrow(raw string) string {
	c, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(c) {
		return arrowNeutral
	}
	switch {
	case c > 0:
		return fmt.Sprintf("%s %.2f%%", arrowUp, c)
	case c < 0:
		return fmt.Sprintf("%s %.2f%%", arrowDown, math.Abs(c))
	}
	return arrowNeutral
}
