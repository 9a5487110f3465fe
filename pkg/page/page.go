// Package page drives the music player's web interface through a browser.
//
// Elements are addressed by locator chains ([]Loc) that descend through shadow
// roots. Page methods fail the calling test on error, reporting the test file
// location and the current stage.
package page

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/umputun/tunecheck/pkg/song"
	"github.com/umputun/tunecheck/pkg/wait"
)

// ErrNotFound is returned by GetNoWait when no element matches.
var ErrNotFound = errors.New("not found")

// defaults for Opts.
const (
	DefaultLoginEmail = "testuser@example.org"
	DefaultPlayDelay  = 10 * time.Millisecond
)

// Opts controls page setup and waiting.
type Opts struct {
	LoginEmail  string        // email entered into the fake login form, DefaultLoginEmail if empty
	PlayDelay   time.Duration // delay before the app starts playback, DefaultPlayDelay if zero
	WaitTimeout time.Duration // how long checks wait, wait.DefaultTimeout if zero
	WaitSleep   time.Duration // poll interval for checks, wait.DefaultSleep if zero
}

// Page wraps a browser page showing the app.
type Page struct {
	t     testing.TB
	pw    playwright.Page
	opts  Opts
	stage string
}

// New loads appURL in pw and prepares the app for testing.
func New(t testing.TB, pw playwright.Page, appURL string, opts Opts) *Page {
	t.Helper()
	if opts.LoginEmail == "" {
		opts.LoginEmail = DefaultLoginEmail
	}
	if opts.PlayDelay <= 0 {
		opts.PlayDelay = DefaultPlayDelay
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = wait.DefaultTimeout
	}
	if opts.WaitSleep <= 0 {
		opts.WaitSleep = wait.DefaultSleep
	}

	p := &Page{t: t, pw: pw, opts: opts}
	if _, err := pw.Goto(appURL); err != nil {
		p.fatalf("failed loading %v at %v: %v", appURL, p.desc(), err)
	}
	p.configure()
	return p
}

// configure logs in if the fake login page is shown, then shortens the play
// delay and resets the app's state.
func (p *Page) configure() {
	p.t.Helper()
	if btn, err := p.GetNoWait(LoginButton); err == nil {
		p.SetText(LoginEmail, p.opts.LoginEmail)
		if err := btn.Click(); err != nil {
			p.fatalf("failed clicking login button at %v: %v", p.desc(), err)
		}
		p.Get(PlayView)
	}
	p.exec(fmt.Sprintf("document.test.setPlayDelayMs(%d)", p.opts.PlayDelay.Milliseconds()), "setting short play delay")
	p.exec("document.test.reset()", "resetting page")
}

// Playwright returns the underlying browser page.
func (p *Page) Playwright() playwright.Page { return p.pw }

// SetStage sets a short description included in failure messages,
// useful for tests iterating over multiple cases.
func (p *Page) SetStage(stage string) { p.stage = stage }

func (p *Page) desc() string {
	s := Caller()
	if p.stage != "" {
		s += " (" + p.stage + ")"
	}
	return s
}

func (p *Page) fatalf(format string, args ...any) {
	p.t.Helper()
	p.t.Fatalf(format, args...)
}

// exec evaluates script in the page, failing the test on error.
func (p *Page) exec(script, what string, args ...any) any {
	p.t.Helper()
	res, err := p.pw.Evaluate(script, args...)
	if err != nil {
		p.fatalf("failed %s at %v: %v", what, p.desc(), err)
	}
	return res
}

// Reload reloads the page and prepares it for testing again.
func (p *Page) Reload() {
	p.t.Helper()
	if _, err := p.pw.Reload(); err != nil {
		p.fatalf("reloading page at %v failed: %v", p.desc(), err)
	}
	p.configure()
}

// RefreshTags makes the app refresh its list of known tags from the server.
func (p *Page) RefreshTags() {
	p.t.Helper()
	p.exec("document.test.updateTags()", "refreshing tags")
}

// GetNoWait returns the element matched by locs without waiting.
// It returns ErrNotFound if the element doesn't exist.
func (p *Page) GetNoWait(locs []Loc) (playwright.ElementHandle, error) {
	script, err := QueryScript(locs)
	if err != nil {
		return nil, err
	}
	h, err := p.pw.EvaluateHandle(script)
	if err != nil {
		return nil, err
	}
	el := h.AsElement()
	if el == nil {
		_ = h.Dispose()
		return nil, ErrNotFound
	}
	return el, nil
}

// Get waits for the element matched by locs, failing the test if it doesn't appear.
func (p *Page) Get(locs []Loc) playwright.ElementHandle {
	p.t.Helper()
	var el playwright.ElementHandle
	if err := p.wait(func() error {
		var err error
		el, err = p.GetNoWait(locs)
		return err
	}); err != nil {
		p.fatalf("failed getting %v at %v: %v", describe(locs), p.desc(), err)
	}
	return el
}

// CheckGone waits for the element matched by locs to leave the document.
// Use CheckDisplayed for elements hidden with CSS.
func (p *Page) CheckGone(locs []Loc) {
	p.t.Helper()
	if err := p.wait(func() error {
		if _, err := p.GetNoWait(locs); err == nil {
			return errors.New("still exists")
		}
		return nil
	}); err != nil {
		p.fatalf("failed waiting for %v to be gone at %v: %v", describe(locs), p.desc(), err)
	}
}

// Click clicks the element matched by locs.
func (p *Page) Click(locs []Loc) {
	p.t.Helper()
	if err := p.Get(locs).Click(); err != nil {
		p.fatalf("failed clicking %v at %v: %v", describe(locs), p.desc(), err)
	}
}

// ClickOption selects the <option> whose trimmed text is option in the <select> matched by sel.
func (p *Page) ClickOption(sel []Loc, option string) {
	p.t.Helper()
	el := p.Get(sel)
	opts, err := el.QuerySelectorAll("option")
	if err != nil {
		p.fatalf("failed getting %v options at %v: %v", describe(sel), p.desc(), err)
	}
	if len(opts) == 0 {
		p.fatalf("no options for %v at %v", describe(sel), p.desc())
	}
	names := make([]string, 0, len(opts))
	for i, opt := range opts {
		text, err := opt.TextContent()
		if err != nil {
			p.fatalf("failed getting %v option text at %v: %v", describe(sel), p.desc(), err)
		}
		name := strings.TrimSpace(text)
		if name == option {
			if _, err := el.SelectOption(playwright.SelectOptionValues{Indexes: &[]int{i}}); err != nil {
				p.fatalf("failed selecting %v option %q at %v: %v", describe(sel), option, p.desc(), err)
			}
			return
		}
		names = append(names, name)
	}
	p.fatalf("failed finding %v option %q among %q at %v", describe(sel), option, names, p.desc())
}

// SendKeys types text into the element matched by locs, optionally clearing it first.
func (p *Page) SendKeys(locs []Loc, text string, clearFirst bool) {
	p.t.Helper()
	el := p.Get(locs)
	if clearFirst {
		if err := el.Fill(""); err != nil {
			p.fatalf("failed clearing %v at %v: %v", describe(locs), p.desc(), err)
		}
	}
	if err := el.Focus(); err != nil {
		p.fatalf("failed focusing %v at %v: %v", describe(locs), p.desc(), err)
	}
	if err := p.pw.Keyboard().Type(text); err != nil {
		p.fatalf("failed sending keys to %v at %v: %v", describe(locs), p.desc(), err)
	}
}

// SetText clears the element matched by locs and types text into it.
func (p *Page) SetText(locs []Loc, text string) {
	p.t.Helper()
	p.SendKeys(locs, text, true)
}

// PressKey presses a named key (e.g. KeyTab) in the element matched by locs.
func (p *Page) PressKey(locs []Loc, key string) {
	p.t.Helper()
	if err := p.Get(locs).Press(key); err != nil {
		p.fatalf("failed pressing %q in %v at %v: %v", key, describe(locs), p.desc(), err)
	}
}

// EmitKeyDown dispatches a synthetic keydown event to the document body.
func (p *Page) EmitKeyDown(sc Shortcut) {
	p.t.Helper()
	key, _ := json.Marshal(sc.Key)
	script := fmt.Sprintf("document.body.dispatchEvent(new KeyboardEvent('keydown', { key: %s, keyCode: %d, altKey: %v }))",
		key, sc.KeyCode, sc.Alt)
	p.exec(script, fmt.Sprintf("emitting %q key down event", sc.Key))
}

// songRow returns the row of the song at 0-based idx in the table matched by locs.
func (p *Page) songRow(locs []Loc, idx int) playwright.ElementHandle {
	p.t.Helper()
	sel := fmt.Sprintf("tbody tr:nth-child(%d)", idx+1)
	row, err := p.Get(locs).QuerySelector(sel)
	if err == nil && row == nil {
		err = ErrNotFound
	}
	if err != nil {
		p.fatalf("failed finding song %d (%q) at %v: %v", idx, sel, p.desc(), err)
	}
	return row
}

// songCell returns the cell matched by sel in the row of the song at idx.
func (p *Page) songCell(locs []Loc, idx int, sel string) playwright.ElementHandle {
	p.t.Helper()
	cell, err := p.songRow(locs, idx).QuerySelector(sel)
	if err == nil && cell == nil {
		err = ErrNotFound
	}
	if err != nil {
		p.fatalf("failed finding %q in song %d at %v: %v", sel, idx, p.desc(), err)
	}
	return cell
}

// ClickSongRowCheckbox clicks the checkbox of the song at 0-based idx in the
// table matched by locs while holding mod, if any.
func (p *Page) ClickSongRowCheckbox(locs []Loc, idx int, mod Modifier) {
	p.t.Helper()
	cb := p.songCell(locs, idx, "td:first-child input")
	var opts playwright.ElementHandleClickOptions
	if mod != NoModifier {
		opts.Modifiers = []playwright.KeyboardModifier{playwright.KeyboardModifier(mod)}
	}
	if err := cb.Click(opts); err != nil {
		p.fatalf("failed clicking checkbox %d at %v: %v", idx, p.desc(), err)
	}
}

// RightClickSongRow right-clicks near the top-left corner of the song at idx.
func (p *Page) RightClickSongRow(locs []Loc, idx int) {
	p.t.Helper()
	row := p.songRow(locs, idx)
	if err := row.Click(playwright.ElementHandleClickOptions{
		Button:   playwright.MouseButtonRight,
		Position: &playwright.Position{X: 3, Y: 3},
	}); err != nil {
		p.fatalf("failed right-clicking song %d at %v: %v", idx, p.desc(), err)
	}
}

// ClickSongRowArtist clicks the artist cell of the song at idx.
func (p *Page) ClickSongRowArtist(locs []Loc, idx int) {
	p.t.Helper()
	if err := p.songCell(locs, idx, "td:nth-last-child(4)").Click(); err != nil {
		p.fatalf("failed clicking artist of song %d at %v: %v", idx, p.desc(), err)
	}
}

// ClickSongRowAlbum clicks the album cell of the song at idx.
func (p *Page) ClickSongRowAlbum(locs []Loc, idx int) {
	p.t.Helper()
	if err := p.songCell(locs, idx, "td:nth-last-child(2)").Click(); err != nil {
		p.fatalf("failed clicking album of song %d at %v: %v", idx, p.desc(), err)
	}
}

// DragSongRow drags the song at srcIdx onto the song at dstIdx in the table
// matched by locs. dstOffsetY is relative to the center of the destination row.
// Native drag and drop isn't reliable under automation, so the app's test hook
// emits the drag events.
func (p *Page) DragSongRow(locs []Loc, srcIdx, dstIdx, dstOffsetY int) {
	p.t.Helper()
	src, dst := p.songRow(locs, srcIdx), p.songRow(locs, dstIdx)
	p.exec("([src, dst, y]) => document.test.dragElement(src, dst, 0, y)",
		fmt.Sprintf("dragging song %d to %d", srcIdx, dstIdx), []any{src, dst, dstOffsetY})
}

// TagSuggestions returns the suggestions shown by the tag suggester matched by locs.
func (p *Page) TagSuggestions(locs []Loc) []string {
	p.t.Helper()
	res, err := p.Get(locs).Evaluate(
		"e => Array.from((e.shadowRoot || e).querySelectorAll('#suggestions div')).map(d => d.innerText)")
	if err != nil {
		p.fatalf("failed getting tag suggestions at %v: %v", p.desc(), err)
	}
	var out []string
	if err := decode(res, &out); err != nil {
		p.fatalf("failed decoding tag suggestions at %v: %v", p.desc(), err)
	}
	return out
}

// CheckboxState describes a checkbox for CheckCheckbox.
type CheckboxState uint32

// checkbox state flags
const (
	CheckboxChecked     CheckboxState = 1 << iota
	CheckboxTransparent               // has "transparent" class
)

// CheckText waits until the text of the element matched by locs matches wantRegexp.
func (p *Page) CheckText(locs []Loc, wantRegexp string) {
	p.t.Helper()
	want := regexp.MustCompile(wantRegexp)
	el := p.Get(locs)
	if err := p.wait(func() error {
		got, err := el.InnerText()
		if err != nil {
			return err
		}
		if !want.MatchString(got) {
			return fmt.Errorf("got %q; want %q", got, want)
		}
		return nil
	}); err != nil {
		p.fatalf("bad text in %v at %v: %v", describe(locs), p.desc(), err)
	}
}

// CheckAttr waits until attribute (or property) attr of the element matched by locs equals want.
func (p *Page) CheckAttr(locs []Loc, attr, want string) {
	p.t.Helper()
	el := p.Get(locs)
	if err := p.wait(func() error {
		got, err := attrValue(el, attr)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("got %q; want %q", got, want)
		}
		return nil
	}); err != nil {
		p.fatalf("bad %q attribute of %v at %v: %v", attr, describe(locs), p.desc(), err)
	}
}

// CheckDisplayed waits until the element matched by locs is (or isn't) visible.
// The element must be present in the document.
func (p *Page) CheckDisplayed(locs []Loc, want bool) {
	p.t.Helper()
	el := p.Get(locs)
	if err := p.wait(func() error {
		got, err := el.IsVisible()
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("got %v; want %v", got, want)
		}
		return nil
	}); err != nil {
		p.fatalf("bad displayed state of %v at %v: %v", describe(locs), p.desc(), err)
	}
}

// CheckCheckbox verifies that the checkbox matched by locs has state.
func (p *Page) CheckCheckbox(locs []Loc, state CheckboxState) {
	p.t.Helper()
	el := p.Get(locs)
	checked, err := el.IsChecked()
	if err != nil {
		p.fatalf("failed getting checked state of %v at %v: %v", describe(locs), p.desc(), err)
	}
	if want := state&CheckboxChecked != 0; checked != want {
		p.fatalf("checkbox %v has checked state %v at %v; want %v", describe(locs), checked, p.desc(), want)
	}
	class, err := el.GetAttribute("class")
	if err != nil {
		p.fatalf("failed getting class of %v at %v: %v", describe(locs), p.desc(), err)
	}
	if got, want := hasClass(class, "transparent"), state&CheckboxTransparent != 0; got != want {
		p.fatalf("checkbox %v has transparent state %v at %v; want %v", describe(locs), got, p.desc(), want)
	}
}

// SongsFromTable returns the songs listed in the <table> matched by locs.
// Rows removed while the table is read are dropped.
func (p *Page) SongsFromTable(locs []Loc) []song.Info {
	p.t.Helper()
	infos, err := p.readTable(p.Get(locs))
	if err != nil {
		p.fatalf("failed reading songs from %v at %v: %v", describe(locs), p.desc(), err)
	}
	return infos
}

func (p *Page) readTable(table playwright.ElementHandle) ([]song.Info, error) {
	res, err := table.Evaluate(readTableScript)
	if isStaleError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []tableRow
	if err := decode(res, &rows); err != nil {
		return nil, err
	}
	return rowsToInfos(rows), nil
}

// CheckSearchResults waits for the search results table to list songs.
func (p *Page) CheckSearchResults(songs []song.Song, checks ...song.ListCheck) {
	p.t.Helper()
	p.checkTable(SearchResultsTable, "search results", songs, checks)
}

// CheckPlaylist waits for the playlist table to list songs.
func (p *Page) CheckPlaylist(songs []song.Song, checks ...song.ListCheck) {
	p.t.Helper()
	p.checkTable(PlaylistTable, "playlist", songs, checks)
}

func (p *Page) checkTable(locs []Loc, name string, songs []song.Song, checks []song.ListCheck) {
	p.t.Helper()
	want := song.ExpectList(songs, checks...)
	table := p.Get(locs)
	var got []song.Info
	if err := p.wait(func() error {
		var err error
		if got, err = p.readTable(table); err != nil {
			return err
		}
		if !song.InfoSlicesEqual(want, got) {
			return errors.New("songs don't match")
		}
		return nil
	}); err != nil {
		p.fatalf("bad %s at %v: %v\nwant:\n%sgot:\n%s", name, p.desc(), err, song.DescribeList(want), song.DescribeList(got))
	}
}

// CheckFullscreenOverlay waits for the fullscreen overlay to show cur and next.
// A nil song means that the corresponding section is hidden.
func (p *Page) CheckFullscreenOverlay(cur, next *song.Song) {
	p.t.Helper()
	var curWant, nextWant *song.Info
	if cur != nil {
		s := song.MakeInfo(*cur)
		curWant = &s
	}
	if next != nil {
		s := song.MakeInfo(*next)
		nextWant = &s
	}

	var curGot, nextGot *song.Info
	if err := p.wait(func() error {
		var err error
		if curGot, err = p.overlaySong(CurrentArtistDiv, CurrentTitleDiv, CurrentAlbumDiv); err != nil {
			return err
		}
		if nextGot, err = p.overlaySong(NextArtistDiv, NextTitleDiv, NextAlbumDiv); err != nil {
			return err
		}
		if !optionalInfosEqual(curWant, curGot) || !optionalInfosEqual(nextWant, nextGot) {
			return errors.New("songs don't match")
		}
		return nil
	}); err != nil {
		p.fatalf("bad fullscreen-overlay songs at %v: %v\nwant:\n  %s\n  %s\ngot:\n  %s\n  %s", p.desc(), err,
			curWant.String(), nextWant.String(), curGot.String(), nextGot.String())
	}
}

// overlaySong reads a song from the fullscreen overlay, nil if its section is hidden.
func (p *Page) overlaySong(artist, title, album []Loc) (*song.Info, error) {
	shown, err := p.Get(artist).IsVisible()
	if err != nil || !shown {
		return nil, err
	}
	var info song.Info
	for _, f := range []struct {
		locs []Loc
		dst  *string
	}{{artist, &info.Artist}, {title, &info.Title}, {album, &info.Album}} {
		if *f.dst, err = p.Get(f.locs).InnerText(); err != nil {
			return nil, err
		}
	}
	return &info, nil
}

func optionalInfosEqual(want, got *song.Info) bool {
	if (want == nil) != (got == nil) {
		return false
	}
	return want == nil || song.InfosEqual(*want, *got)
}

// CheckSong waits for the play view to show s. By default only the artist,
// title and album are compared; checks add expectations about playback state.
func (p *Page) CheckSong(s song.Song, checks ...song.Check) {
	p.t.Helper()
	want := song.Expect(s, checks...)
	var got song.Info
	if err := wait.Full(func() error {
		var err error
		if got, err = p.currentSong(); err != nil {
			return err
		}
		if !song.InfosEqual(want, got) {
			return errors.New("songs don't match")
		}
		return nil
	}, want.GetTimeout(p.opts.WaitTimeout), p.opts.WaitSleep); err != nil {
		p.fatalf("bad song at %v: %v\nwant: %s\ngot:  %s", p.desc(), err, want.String(), got.String())
	}
}

// currentSong reads the song shown by the play view.
func (p *Page) currentSong() (song.Info, error) {
	var info song.Info
	var err error
	for _, f := range []struct {
		locs []Loc
		dst  *string
	}{{ArtistDiv, &info.Artist}, {TitleDiv, &info.Title}, {AlbumDiv, &info.Album}} {
		if *f.dst, err = p.Get(f.locs).InnerText(); err != nil {
			return info, err
		}
	}

	imgTitle, err := p.Get(CoverImage).GetAttribute("title")
	if err != nil {
		return info, fmt.Errorf("cover title: %w", err)
	}
	timeStr, err := p.Get(TimeDiv).InnerText()
	if err != nil {
		return info, fmt.Errorf("time: %w", err)
	}
	res, err := p.Get(RatingOverlayDiv).Evaluate("e => e.childElementCount")
	if err != nil {
		return info, fmt.Errorf("rating: %w", err)
	}
	ratingStr := strings.Repeat("★", toInt(res))

	res, err = p.Get(Audio).Evaluate("e => ({ paused: e.paused, ended: e.ended, src: e.src })")
	if err != nil {
		return info, fmt.Errorf("audio: %w", err)
	}
	var au struct {
		Paused bool   `json:"paused"`
		Ended  bool   `json:"ended"`
		Src    string `json:"src"`
	}
	if err := decode(res, &au); err != nil {
		return info, fmt.Errorf("audio: %w", err)
	}
	filename := filenameFromSrc(au.Src)

	info.ImgTitle = &imgTitle
	info.TimeStr = &timeStr
	info.RatingStr = &ratingStr
	info.Paused = &au.Paused
	info.Ended = &au.Ended
	info.Filename = &filename
	return info, nil
}

// StatsBar describes a bar within a stats dialog chart.
type StatsBar struct {
	Pct   int // rounded width percentage in [0, 100]
	Title string
}

// CheckStatsChart waits for the stats chart matched by locs to contain want.
func (p *Page) CheckStatsChart(locs []Loc, want []StatsBar) {
	p.t.Helper()
	chart := p.Get(locs)
	if err := p.wait(func() error {
		res, err := chart.Evaluate(
			"e => Array.from(e.querySelectorAll('span')).map(s => ({ title: s.getAttribute('title') || '', style: s.getAttribute('style') || '' }))")
		if err != nil {
			return err
		}
		var spans []statsSpan
		if err := decode(res, &spans); err != nil {
			return err
		}
		got := parseStatsBars(spans)
		if !statsBarsEqual(got, want) {
			return fmt.Errorf("got %v; want %v", got, want)
		}
		return nil
	}); err != nil {
		p.fatalf("bad %v chart at %v: %v", describe(locs), p.desc(), err)
	}
}

func (p *Page) wait(f func() error) error {
	return wait.Full(f, p.opts.WaitTimeout, p.opts.WaitSleep)
}

// attrValue returns a property of el if it's set, its attribute otherwise, or "" if neither exists.
func attrValue(el playwright.ElementHandle, name string) (string, error) {
	res, err := el.Evaluate(`(e, n) => {
		const v = e[n];
		if (v !== undefined && v !== null && typeof v !== 'object' && typeof v !== 'function') return String(v);
		return e.getAttribute(n) || '';
	}`, name)
	if err != nil {
		return "", err
	}
	s, _ := res.(string)
	return s, nil
}

// filenameFromSrc returns the "filename" query parameter of an audio src URL.
func filenameFromSrc(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if fn := u.Query().Get("filename"); fn != "" {
		return fn
	}
	// songs served directly by the fixture server have no query
	if i := strings.LastIndex(u.Path, "/"); i >= 0 && u.RawQuery == "" {
		return u.Path[i+1:]
	}
	return ""
}

func hasClass(class, name string) bool {
	for _, c := range strings.Fields(class) {
		if c == name {
			return true
		}
	}
	return false
}

// decode converts a value returned by Evaluate into dst via JSON.
func decode(v, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal evaluate result: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal evaluate result: %w", err)
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
