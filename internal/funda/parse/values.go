// Package parse contains pure parsers for the source site's Dutch value
// formats. Nothing here performs I/O.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bedroomsRe  = regexp.MustCompile(`(\d+)\s*slaapkamer`)
	numberRe    = regexp.MustCompile(`\d+`)
	boilerRe    = regexp.MustCompile(`(.+?)\s*\((\d{4})\)`)
	yearRe      = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)
	nonPriceRe  = regexp.MustCompile(`[^\d.,]`)
	areaValueRe = regexp.MustCompile(`[\d.,]+`)
)

// Price parses Dutch-formatted price text such as "€ 500.000 k.k." into a
// numeric value. Thousands separators and currency decoration are stripped;
// a comma is treated as the decimal separator.
func Price(text string) (float64, bool) {
	cleaned := nonPriceRe.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// Bedrooms extracts the bedroom count from a combined room description
// such as "5 kamers (4 slaapkamers)". When no explicit bedroom count is
// present the first number in the text is used as a fallback.
func Bedrooms(text string) (int, bool) {
	if m := bedroomsRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	if m := numberRe.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		return n, err == nil
	}
	return 0, false
}

// Number extracts the first integer in the text ("2 badkamers" -> 2).
func Number(text string) (int, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// Area extracts a numeric area from text such as "120 m²" or "1.250 m²".
func Area(text string) (float64, bool) {
	m := areaValueRe.FindString(text)
	if m == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(m, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// Boiler splits a boiler description of the form "Brand (YYYY)" into the
// brand name and installation year.
func Boiler(text string) (brand string, year int, ok bool) {
	m := boilerRe.FindStringSubmatch(text)
	if m == nil {
		return strings.TrimSpace(text), 0, strings.TrimSpace(text) != ""
	}
	y, err := strconv.Atoi(m[2])
	if err != nil {
		return strings.TrimSpace(m[1]), 0, true
	}
	return strings.TrimSpace(m[1]), y, true
}

// Year extracts a plausible construction year from text.
func Year(text string) (int, bool) {
	m := yearRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}
