package oai

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the finest datestamp granularity this repository advertises
const Granularity = "YYYY-MM-DDThh:mm:ssZ"

const (
	datestampLayout = "2006-01-02T15:04:05Z"
	dayLayout       = "2006-01-02"
)

// tolerated layouts, most specific first. Fractional seconds are accepted by
// time.Parse after the seconds field even though the layout omits them.
var datestampLayouts = []string{
	datestampLayout,
	dayLayout,
	"2006-01",
	"2006",
}

// DatestampError is returned for values that are not OAI datestamps
type DatestampError struct {
	Value string
}

func (e *DatestampError) Error() string {
	return fmt.Sprintf("invalid datestamp %q", e.Value)
}

// ParseDatestamp parses a UTC datestamp with day or second granularity. Year
// and year-month prefixes are tolerated and resolve to the first instant of
// the period. A time part must carry the trailing Z.
func ParseDatestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, &DatestampError{Value: s}
	}
	if strings.Contains(v, "T") && !strings.HasSuffix(v, "Z") {
		return time.Time{}, &DatestampError{Value: s}
	}
	for _, layout := range datestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &DatestampError{Value: s}
}

// FormatDatestamp renders t at second granularity in UTC
func FormatDatestamp(t time.Time) string {
	return t.UTC().Format(datestampLayout)
}

// FormatDay renders t at day granularity in UTC
func FormatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}
