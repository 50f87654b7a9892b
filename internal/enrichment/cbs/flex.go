// Package cbs queries the CBS StatLine OData tables for neighborhood
// key figures, registered crime and demographics.
package cbs

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StatLine encodes missing values either as null, as sentinel numbers
// below this threshold, or as strings like "       ." depending on the
// table vintage. Everything below the threshold is treated as absent.
const blockedSentinel = -99990

// FlexNumber decodes a StatLine cell that may arrive as a JSON number,
// a numeric string, or null/placeholder text.
type FlexNumber struct {
	value *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	f.value = nil

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f.set(parsed)
		return nil
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	f.set(parsed)
	return nil
}

func (f *FlexNumber) set(v float64) {
	if v <= blockedSentinel {
		return
	}
	f.value = &v
}

// Float returns the cell value, or nil when absent.
func (f FlexNumber) Float() *float64 {
	if f.value == nil {
		return nil
	}
	v := *f.value
	return &v
}

// Int returns the cell value truncated to int, or nil when absent.
func (f FlexNumber) Int() *int {
	if f.value == nil {
		return nil
	}
	v := int(*f.value)
	return &v
}
