package page

import (
	"math"
	"regexp"
	"strconv"

	"github.com/umputun/tunecheck/pkg/song"
)

// readTableScript returns the data rows of a song table, skipping the header.
// The last column is the time, and a first checkbox column is present when
// there are five columns.
const readTableScript = `t => Array.from(t.querySelectorAll('tr')).slice(1).map(r => {
	const cols = Array.from(r.querySelectorAll('td'));
	const cb = cols.length === 5 ? cols[0].querySelector('input') : null;
	return { cols: cols.map(c => c.innerText), class: r.className, checked: cb ? cb.checked : null };
})`

// tableRow is a row as returned by readTableScript.
type tableRow struct {
	Cols    []string `json:"cols"`
	Class   string   `json:"class"`
	Checked *bool    `json:"checked"`
}

// rowsToInfos converts table rows to song descriptions. Rows without the
// artist, title, album and time columns are skipped.
func rowsToInfos(rows []tableRow) []song.Info {
	var infos []song.Info
	for _, r := range rows {
		n := len(r.Cols)
		if n < 4 {
			continue
		}
		active, menu := hasClass(r.Class, "active"), hasClass(r.Class, "menu")
		info := song.Info{
			Artist: r.Cols[n-4],
			Title:  r.Cols[n-3],
			Album:  r.Cols[n-2],
			Active: &active,
			Menu:   &menu,
		}
		if r.Checked != nil {
			checked := *r.Checked
			info.Checked = &checked
		}
		infos = append(infos, info)
	}
	return infos
}

// statsSpan is a chart bar as returned by CheckStatsChart's script.
type statsSpan struct {
	Title string `json:"title"`
	Style string `json:"style"`
}

// statsPctRegexp matches e.g. "55.3" in "opacity: 0.55; width: 55.3%" or "width: calc(55.3% - 1px)".
var statsPctRegexp = regexp.MustCompile(`width:\s*(?:calc\()?([^%]+)%`)

func parseStatsBars(spans []statsSpan) []StatsBar {
	bars := make([]StatsBar, len(spans))
	for i, s := range spans {
		bars[i].Title = s.Title
		if ms := statsPctRegexp.FindStringSubmatch(s.Style); ms != nil {
			if v, err := strconv.ParseFloat(ms[1], 64); err == nil {
				bars[i].Pct = int(math.Round(v))
			}
		}
	}
	return bars
}

func statsBarsEqual(a, b []StatsBar) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
