package song

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Info describes a song as shown by the web interface or stored by the server.
// Pointer and slice fields are optional: a nil value in an expected Info is not compared.
type Info struct {
	Artist, Title, Album string // from a song-table row or the play view

	Active  *bool // row is active/highlighted
	Checked *bool // row checkbox is checked
	Menu    *bool // row has a context menu open
	Paused  *bool // audio element is paused
	Ended   *bool // audio element has ended

	Filename  *string // filename from the audio element's src
	RatingStr *string // rating string from the cover image, e.g. "★★★"
	ImgTitle  *string // cover image title, e.g. "Rating: ★★★☆☆\nTags: guitar rock"
	TimeStr   *string // displayed time, e.g. "0:00 / 0:05"

	SrvRating *int           // server rating in [1, 5] or 0 if unrated
	SrvTags   []string       // server tags in ascending order
	SrvPlays  [][2]time.Time // server play lower/upper bounds in ascending order

	Timeout *time.Duration // overrides the default wait when checking this song
}

// MakeInfo returns an Info holding s's artist, title and album.
func MakeInfo(s Song) Info {
	return Info{Artist: s.Artist, Title: s.Title, Album: s.Album}
}

// ServerInfo returns an Info populated with s's user data as stored by the server.
func ServerInfo(s Song) Info {
	info := MakeInfo(s)
	rating := s.Rating
	info.SrvRating = &rating
	info.SrvTags = s.Tags
	plays := append([]Play(nil), s.Plays...)
	SortPlays(plays)
	for _, p := range plays {
		info.SrvPlays = append(info.SrvPlays, [2]time.Time{p.StartTime, p.StartTime})
	}
	return info
}

// GetTimeout returns the Info's timeout if set or def otherwise.
func (i *Info) GetTimeout(def time.Duration) time.Duration {
	if i.Timeout != nil {
		return *i.Timeout
	}
	return def
}

func (i *Info) String() string {
	if i == nil {
		return "nil"
	}

	str := fmt.Sprintf("%q %q %q", i.Artist, i.Title, i.Album)

	for _, f := range []struct {
		pos, neg string
		val      *bool
	}{
		{"active", "inactive", i.Active},
		{"checked", "unchecked", i.Checked},
		{"ended", "unended", i.Ended},
		{"menu", "no-menu", i.Menu},
		{"paused", "playing", i.Paused},
	} {
		if f.val == nil {
			continue
		}
		if *f.val {
			str += " " + f.pos
		} else {
			str += " " + f.neg
		}
	}

	for _, f := range []struct {
		name string
		val  *string
	}{
		{"filename", i.Filename},
		{"rating", i.RatingStr},
		{"time", i.TimeStr},
		{"title", i.ImgTitle},
	} {
		if f.val != nil {
			str += fmt.Sprintf(" %s=%q", f.name, *f.val)
		}
	}

	if i.SrvRating != nil {
		str += fmt.Sprintf(" rating=%d", *i.SrvRating)
	}
	if i.SrvTags != nil {
		str += fmt.Sprintf(" tags=%v", i.SrvTags)
	}
	if i.SrvPlays != nil {
		const tf = "2006-01-02-15:04:05"
		ps := make([]string, 0, len(i.SrvPlays))
		for _, p := range i.SrvPlays {
			if p[0].Equal(p[1]) {
				ps = append(ps, p[0].Local().Format(tf))
			} else {
				ps = append(ps, p[0].Local().Format(tf)+"/"+p[1].Local().Format(tf))
			}
		}
		str += fmt.Sprintf(" plays=[%s]", strings.Join(ps, " "))
	}

	return "[" + str + "]"
}

// Check adjusts an expected Info.
type Check func(*Info)

// IsPaused expects the audio element to be paused (or playing).
func IsPaused(p bool) Check { return func(i *Info) { i.Paused = &p } }

// IsEnded expects the audio element to have ended (or not).
func IsEnded(e bool) Check { return func(i *Info) { i.Ended = &e } }

// HasFilename expects the audio element to be playing f.
func HasFilename(f string) Check { return func(i *Info) { i.Filename = &f } }

// HasRatingStr expects the displayed rating string.
func HasRatingStr(r string) Check { return func(i *Info) { i.RatingStr = &r } }

// HasImgTitle expects the cover image title.
func HasImgTitle(t string) Check { return func(i *Info) { i.ImgTitle = &t } }

// HasTimeStr expects the displayed time.
func HasTimeStr(s string) Check { return func(i *Info) { i.TimeStr = &s } }

// HasSrvRating expects the server's rating.
func HasSrvRating(r int) Check { return func(i *Info) { i.SrvRating = &r } }

// HasSrvTags expects the server's tags, in ascending order.
func HasSrvTags(t ...string) Check {
	return func(i *Info) {
		if t == nil {
			t = []string{}
		}
		i.SrvTags = t
	}
}

// HasSrvPlay expects a server play between lower and upper.
// Call it once per play, in ascending order.
func HasSrvPlay(lower, upper time.Time) Check {
	return func(i *Info) { i.SrvPlays = append(i.SrvPlays, [2]time.Time{lower, upper}) }
}

// HasNoSrvPlays expects the server to have no recorded plays.
func HasNoSrvPlays() Check { return func(i *Info) { i.SrvPlays = [][2]time.Time{} } }

// UseTimeout sets a custom timeout for waiting on the check.
func UseTimeout(t time.Duration) Check { return func(i *Info) { i.Timeout = &t } }

// Expect returns the Info expected for s after applying checks.
func Expect(s Song, checks ...Check) Info {
	want := MakeInfo(s)
	for _, c := range checks {
		c(&want)
	}
	return want
}

// InfosEqual returns true if want and got have the same artist, title and album
// and all optional fields set in want also match.
func InfosEqual(want, got Info) bool {
	for _, t := range []struct{ want, got *bool }{
		{want.Active, got.Active},
		{want.Checked, got.Checked},
		{want.Ended, got.Ended},
		{want.Menu, got.Menu},
		{want.Paused, got.Paused},
	} {
		if t.want != nil && (t.got == nil || *t.got != *t.want) {
			return false
		}
	}

	for _, t := range []struct{ want, got *string }{
		{&want.Artist, &got.Artist},
		{&want.Title, &got.Title},
		{&want.Album, &got.Album},
		{want.Filename, got.Filename},
		{want.ImgTitle, got.ImgTitle},
		{want.RatingStr, got.RatingStr},
		{want.TimeStr, got.TimeStr},
	} {
		if t.want != nil && (t.got == nil || *t.got != *t.want) {
			return false
		}
	}

	if want.SrvRating != nil && (got.SrvRating == nil || *got.SrvRating != *want.SrvRating) {
		return false
	}
	if want.SrvTags != nil && !tagsEqual(want.SrvTags, got.SrvTags) {
		return false
	}
	if want.SrvPlays != nil {
		if len(want.SrvPlays) != len(got.SrvPlays) {
			return false
		}
		for i, bounds := range want.SrvPlays {
			t := got.SrvPlays[i][0]
			if t.Before(bounds[0]) || t.After(bounds[1]) {
				return false
			}
		}
	}
	return true
}

// tagsEqual treats nil and empty tag lists as equal since the server reports either.
func tagsEqual(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// ListCheck adjusts a list of expected Infos.
type ListCheck func([]Info)

// HasChecked expects row checkboxes to match vals.
func HasChecked(vals ...bool) ListCheck {
	return func(infos []Info) {
		for i := range infos {
			if i < len(vals) {
				v := vals[i]
				infos[i].Checked = &v
			}
		}
	}
}

// HasActive expects the row at idx to be active and all others inactive.
func HasActive(idx int) ListCheck {
	return func(infos []Info) {
		for i := range infos {
			v := i == idx
			infos[i].Active = &v
		}
	}
}

// HasMenu expects a context menu to be open for the row at idx only.
func HasMenu(idx int) ListCheck {
	return func(infos []Info) {
		for i := range infos {
			v := i == idx
			infos[i].Menu = &v
		}
	}
}

// ExpectList returns the Infos expected for songs after applying checks.
func ExpectList(songs []Song, checks ...ListCheck) []Info {
	want := make([]Info, len(songs))
	for i := range songs {
		want[i] = MakeInfo(songs[i])
	}
	for _, c := range checks {
		c(want)
	}
	return want
}

// InfoSlicesEqual returns true if want and got are the same length and
// InfosEqual holds for corresponding elements.
func InfoSlicesEqual(want, got []Info) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !InfosEqual(want[i], got[i]) {
			return false
		}
	}
	return true
}

// DescribeList renders infos one per line for failure messages.
func DescribeList(infos []Info) string {
	var sb strings.Builder
	for i := range infos {
		sb.WriteString("  " + infos[i].String() + "\n")
	}
	return sb.String()
}
