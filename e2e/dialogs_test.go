//go:build e2e

package e2e

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tunecheck/pkg/page"
	"github.com/umputun/tunecheck/pkg/song"
)

func TestOptions(t *testing.T) {
	p := initTest(t)

	// a missing element inside the chain is reported as not found on every browser
	_, err := p.GetNoWait(page.Join(page.Tag("no-such-view"), page.ID("gain-type-select")))
	require.ErrorIs(t, err, page.ErrNotFound)

	p.EmitKeyDown(page.ShortcutOptions)
	p.CheckAttr(page.GainTypeSelect, "value", page.GainAutoValue)
	p.ClickOption(page.GainTypeSelect, page.GainTrack)
	p.CheckAttr(page.GainTypeSelect, "value", page.GainTrackValue)

	// the dark theme is applied as soon as it's selected
	p.CheckAttr(page.ThemeSelect, "value", page.ThemeAutoValue)
	p.ClickOption(page.ThemeSelect, page.ThemeDark)
	p.CheckAttr(page.ThemeSelect, "value", page.ThemeDarkValue)
	p.CheckAttr(page.Document, "data-theme", "dark")

	p.Click(page.PreAmpRange)
	preAmp, err := p.Get(page.PreAmpRange).InputValue()
	require.NoError(t, err, "read pre-amp value")

	p.Click(page.OptionsOKButton)
	p.CheckGone(page.OptionsOKButton)

	// the dialog is also available via the menu and escape dismisses it
	p.Click(page.MenuButton)
	p.Click(page.MenuOptions)
	p.Get(page.OptionsOKButton)
	p.PressKey(page.Body, page.KeyEscape)
	p.CheckGone(page.OptionsOKButton)

	// options survive a reload
	p.Reload()
	p.EmitKeyDown(page.ShortcutOptions)
	p.CheckAttr(page.ThemeSelect, "value", page.ThemeDarkValue)
	p.CheckAttr(page.GainTypeSelect, "value", page.GainTrackValue)
	p.CheckAttr(page.PreAmpRange, "value", preAmp)
	p.PressKey(page.Body, page.KeyEscape)
	p.CheckGone(page.OptionsOKButton)
	p.CheckAttr(page.Document, "data-theme", "dark")
}

func TestSongInfo(t *testing.T) {
	p := initTest(t)
	song1 := song.New("a", "t1", "al1", song.WithTrack(1), song.WithLength(123),
		song.WithDate(time.Date(2015, 4, 3, 12, 13, 14, 0, time.UTC)),
		song.WithRating(5), song.WithTags("guitar", "instrumental"))
	song2 := song.New("a", "t2", "al2", song.WithTrack(5), song.WithDisc(2), song.WithLength(52))
	importSongs(t, song1, song2)

	p.SetText(page.KeywordsInput, "a")
	p.Click(page.LuckyButton)
	p.CheckPlaylist(song.Join(song1, song2), song.HasActive(0))
	p.Click(page.PlayPauseButton)
	p.CheckSong(song1, song.IsPaused(true))

	exact := func(s string) string { return "^" + regexp.QuoteMeta(s) + "$" }

	t.Run("current song via shortcut", func(t *testing.T) {
		p.EmitKeyDown(page.ShortcutInfo)
		p.CheckText(page.InfoArtist, exact(song1.Artist))
		p.CheckText(page.InfoTitle, exact(song1.Title))
		p.CheckText(page.InfoAlbum, exact(song1.Album))
		p.CheckText(page.InfoDisc, "^$")
		p.CheckText(page.InfoTrack, exact(strconv.Itoa(song1.Track)))
		p.CheckText(page.InfoDate, exact("2015-04-03"))
		p.CheckText(page.InfoLength, exact("2:03"))
		p.CheckText(page.InfoRating, exact("★★★★★"))
		p.CheckText(page.InfoTags, exact(strings.Join(song1.Tags, " ")))
		p.Click(page.InfoDismissButton)
		p.CheckGone(page.InfoDismissButton)
	})

	t.Run("playlist song via menu", func(t *testing.T) {
		p.RightClickSongRow(page.PlaylistTable, 1)
		p.Click(page.MenuInfo)
		p.CheckText(page.InfoArtist, exact(song2.Artist))
		p.CheckText(page.InfoTitle, exact(song2.Title))
		p.CheckText(page.InfoAlbum, exact(song2.Album))
		p.CheckText(page.InfoDisc, `^`+strconv.Itoa(song2.Disc)+`\b`)
		p.CheckText(page.InfoTrack, exact(strconv.Itoa(song2.Track)))
		p.CheckText(page.InfoDate, "^$")
		p.CheckText(page.InfoLength, exact("0:52"))
		p.CheckText(page.InfoRating, exact("Unrated"))
		p.CheckText(page.InfoTags, "^$")
		p.Click(page.InfoDismissButton)
		p.CheckGone(page.InfoDismissButton)
	})
}

func TestPresets(t *testing.T) {
	p := initTest(t)
	now := time.Now()
	now2 := now.Add(-5 * time.Minute)
	old := now.Add(-2 * 365 * 24 * time.Hour)
	old2 := old.Add(-5 * time.Minute)
	song1 := song.New("a", "t1", "unrated")
	song2 := song.New("a", "t1", "new", song.WithRating(2), song.WithTrack(1), song.WithDisc(1), song.WithPlays(now, now2))
	song3 := song.New("a", "t2", "new", song.WithRating(5), song.WithTrack(2), song.WithDisc(1), song.WithPlays(now, now2))
	song4 := song.New("a", "t1", "old", song.WithRating(4), song.WithPlays(old, old2))
	song5 := song.New("a", "t2", "old", song.WithRating(4), song.WithTags("instrumental"), song.WithPlays(old, old2))
	song6 := song.New("a", "t1", "mellow", song.WithRating(4), song.WithTags("mellow"))
	importSongs(t, song1, song2, song3, song4, song5, song6)

	p.ClickOption(page.PresetSelect, page.PresetInstrumentalOld)
	p.CheckSong(song5)
	p.ClickOption(page.PresetSelect, page.PresetMellow)
	p.CheckSong(song6)
	p.ClickOption(page.PresetSelect, page.PresetNewAlbums)
	p.CheckSearchResults(song.Join(song2))
	p.ClickOption(page.PresetSelect, page.PresetUnrated)
	p.CheckSong(song1)
	p.ClickOption(page.PresetSelect, page.PresetPlayedOnce)
	p.CheckSong(song6)

	// the select gives up focus after a preset is chosen
	focused, err := p.Playwright().Evaluate(
		"() => { const v = document.querySelector('search-view'); const e = v && v.shadowRoot && v.shadowRoot.activeElement; return e ? e.id : ''; }")
	require.NoError(t, err, "get focused element")
	assert.NotEqual(t, "preset-select", focused, "preset select still focused")
}

func TestStats(t *testing.T) {
	p := initTest(t)
	t2001 := date(2001, 4, 1)
	t2014 := date(2014, 5, 3)
	t2015 := date(2015, 10, 31)

	song1 := song.New("artist", "track1", "album1", song.WithRating(3), song.WithLength(7200),
		song.WithDate(t2001), song.WithPlays(t2001, t2014, t2015))
	song2 := song.New("artist", "track2", "album1", song.WithRating(5), song.WithLength(201),
		song.WithDate(t2014), song.WithPlays(t2015))
	song3 := song.New("artist", "track3", "album2", song.WithLength(45),
		song.WithDate(t2001), song.WithPlays(t2014))
	importSongs(t, song1, song2, song3)
	require.NoError(t, srv.UpdateStats(context.Background()), "update stats")

	p.Click(page.MenuButton)
	p.Click(page.MenuStats)

	for _, fields := range [][]string{
		{"Songs:", "3"},
		{"Albums:", "2"},
		{"Duration:", "0.1 days"},
		// year, first plays, last plays, plays, playtime
		{"2001", "1", "0", "1", "0.1 days"},
		{"2014", "1", "1", "2", "0.1 days"},
		{"2015", "1", "2", "2", "0.1 days"},
	} {
		quoted := make([]string, len(fields))
		for i, s := range fields {
			quoted[i] = regexp.QuoteMeta(s)
		}
		p.SetStage(strings.Join(fields, " "))
		p.CheckText(page.StatsDialog, `(^|\s+)`+strings.Join(quoted, `\s+`)+`($|\s+)`)
	}
	p.SetStage("")

	p.CheckStatsChart(page.StatsDecadesChart, []page.StatsBar{
		{Pct: 67, Title: "2000s - 2 songs"},
		{Pct: 33, Title: "2010s - 1 song"},
	})
	p.CheckStatsChart(page.StatsRatingsChart, []page.StatsBar{
		{Pct: 33, Title: "Unrated - 1 song"},
		{Pct: 0, Title: "★ - 0 songs"},
		{Pct: 0, Title: "★★ - 0 songs"},
		{Pct: 33, Title: "★★★ - 1 song"},
		{Pct: 0, Title: "★★★★ - 0 songs"},
		{Pct: 33, Title: "★★★★★ - 1 song"},
	})
}
