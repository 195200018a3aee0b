package ingest

import (
	"time"

	"github.com/jinzhu/now"
)

// window is a harvesting interval, both ends inclusive. Nil bounds are open.
type window struct {
	From  *time.Time
	Until *time.Time
}

// windowsSince splits [since, until] into calendar months. Refresh records
// progress after each completed window, so a failed refresh repeats only the
// window it failed in. A nil since means the source was never harvested and
// is fetched in one open window.
func windowsSince(since *time.Time, until time.Time) []window {
	if since == nil {
		return []window{{}}
	}
	if since.After(until) {
		return nil
	}

	var ws []window
	start := since.UTC()
	until = until.UTC()
	for !start.After(until) {
		end := now.New(start).EndOfMonth()
		if end.After(until) {
			end = until
		}
		from, to := start, end
		ws = append(ws, window{From: &from, Until: &to})
		start = end.Add(time.Nanosecond)
	}
	return ws
}
