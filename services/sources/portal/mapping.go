package portal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The portal exports blacklist rows as positional arrays, and the column order has
// shifted between export versions. Each layout is an explicit index table validated
// against the row length at parse time, never trusted implicitly.
type rowLayout struct {
	ip         int
	reason     int
	confidence int
	detected   int
	removal    int
	country    int
	minColumns int
}

const absent = -1

var layoutByVersion = map[string]rowLayout{
	// legacy export: ip, reason, detection date, removal date
	"v1": {ip: 0, reason: 1, confidence: absent, detected: 2, removal: 3, country: absent, minColumns: 4},
	// current export adds confidence and country
	"v2": {ip: 0, reason: 1, confidence: 2, detected: 3, removal: 4, country: 5, minColumns: 6},
}

func layoutFor(version string) (rowLayout, error) {
	layout, ok := layoutByVersion[version]
	if !ok {
		return rowLayout{}, fmt.Errorf("unknown export version %q", version)
	}
	return layout, nil
}

func (l rowLayout) validate(row []interface{}) error {
	if len(row) < l.minColumns {
		return fmt.Errorf("row has %d columns, layout needs %d", len(row), l.minColumns)
	}
	return nil
}

func stringAt(row []interface{}, idx int) string {
	if idx == absent || idx >= len(row) || row[idx] == nil {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func intAt(row []interface{}, idx int, fallback int) int {
	if idx == absent || idx >= len(row) || row[idx] == nil {
		return fallback
	}
	switch v := row[idx].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func timeAt(row []interface{}, idx int) *time.Time {
	raw := stringAt(row, idx)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
