// Package server provides a client for the test-only HTTP API of the music
// application under test: configuration, importing and exporting songs,
// clearing data, queries and user-data updates.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/umputun/tunecheck/pkg/song"
	"github.com/umputun/tunecheck/pkg/wait"
)

// ErrStatus is wrapped by errors returned for non-200 replies.
var ErrStatus = errors.New("unexpected status")

// default values for Opts.
const (
	DefaultAuthCookie = "webdriver"
	DefaultTimeout    = 10 * time.Second
)

// Opts describes how to reach the app server.
type Opts struct {
	URL        string        // base URL of the app, e.g. http://localhost:8080/
	AuthCookie string        // name of the cookie (valued "1") that bypasses login, empty for DefaultAuthCookie
	Username   string        // optional basic-auth user
	Password   string        // optional basic-auth password
	Timeout    time.Duration // per-request timeout, zero for DefaultTimeout

	WaitTimeout time.Duration // CheckSong timeout, zero for wait.DefaultTimeout
	WaitSleep   time.Duration // CheckSong poll interval, zero for wait.DefaultSleep
}

// Client sends requests to the app server.
type Client struct {
	base   *url.URL
	opts   Opts
	client *http.Client
}

// New returns a Client for the server described by opts.
func New(opts Opts) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("server url is required")
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", opts.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: unsupported scheme", opts.URL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if opts.AuthCookie == "" {
		opts.AuthCookie = DefaultAuthCookie
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = wait.DefaultTimeout
	}
	if opts.WaitSleep <= 0 {
		opts.WaitSleep = wait.DefaultSleep
	}
	return &Client{base: base, opts: opts, client: &http.Client{Timeout: opts.Timeout}}, nil
}

// URL returns the slash-terminated base URL of the app.
func (c *Client) URL() string { return c.base.String() }

// AuthCookie returns the name of the cookie used to bypass login.
func (c *Client) AuthCookie() string { return c.opts.AuthCookie }

// SearchPreset describes a search preset displayed in the web interface.
type SearchPreset struct {
	Name              string `json:"name"`
	Tags              string `json:"tags"`        // space-separated tag expression, e.g. "guitar -banjo"
	MinRating         int    `json:"minRating"`   // stars in [1, 5], 0 for none
	Unrated           bool   `json:"unrated"`     // only unrated songs
	FirstPlayed       int    `json:"firstPlayed"` // interval index, 0 for no restriction
	LastPlayed        int    `json:"lastPlayed"`  // interval index, 0 for no restriction
	OrderByLastPlayed bool   `json:"orderByLastPlayed"`
	MaxPlays          int    `json:"maxPlays"` // -1 for no restriction
	FirstTrack        bool   `json:"firstTrack"`
	Shuffle           bool   `json:"shuffle"`
	Play              bool   `json:"play"`
}

// Config is sent to the app's /config endpoint to override its configuration.
type Config struct {
	SongBaseURL  string         `json:"songBaseUrl"`  // slash-terminated URL serving song files
	CoverBaseURL string         `json:"coverBaseUrl"` // slash-terminated URL serving cover images
	CacheSongs   bool           `json:"cacheSongs"`
	CacheQueries bool           `json:"cacheQueries"`
	CacheTags    bool           `json:"cacheTags"`
	Presets      []SearchPreset `json:"presets,omitempty"`
}

// SendConfig overrides the app's configuration.
func (c *Client) SendConfig(ctx context.Context, cfg Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return c.post(ctx, "config", nil, "application/json", bytes.NewReader(body))
}

// ResetConfig restores the app's original configuration.
func (c *Client) ResetConfig(ctx context.Context) error {
	return c.post(ctx, "config", nil, "", nil)
}

// ForceUpdateFailures makes the app reject (or accept again) user-data updates.
func (c *Client) ForceUpdateFailures(ctx context.Context, fail bool) error {
	v := "0"
	if fail {
		v = "1"
	}
	return c.post(ctx, "config", url.Values{"forceUpdateFailures": {v}}, "", nil)
}

// Clear deletes all songs and plays from the app.
func (c *Client) Clear(ctx context.Context) error {
	return c.post(ctx, "clear", nil, "", nil)
}

// ImportOpts controls Import.
type ImportOpts struct {
	ReplaceUserData bool          // overwrite ratings, tags and plays of existing songs
	UpdateDelay     time.Duration // delay the app applies before committing, zero for none
}

// Import sends songs to the app as line-delimited JSON.
func (c *Client) Import(ctx context.Context, songs []song.Song, opts ImportOpts) error {
	var buf bytes.Buffer
	if err := song.EncodeLines(&buf, songs); err != nil {
		return fmt.Errorf("encode songs: %w", err)
	}
	params := url.Values{}
	if opts.ReplaceUserData {
		params.Set("replaceUserData", "1")
	}
	if opts.UpdateDelay > 0 {
		params.Set("updateDelayNsec", strconv.FormatInt(opts.UpdateDelay.Nanoseconds(), 10))
	}
	return c.post(ctx, "import", params, "text/plain", &buf)
}

// Export returns all songs known to the app, keyed by SHA1, with their plays attached.
func (c *Client) Export(ctx context.Context) (map[string]song.Song, error) {
	var songs []song.Song
	err := c.exportAll(ctx, "song", func(raw []byte) error {
		var s song.Song
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		songs = append(songs, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export songs: %w", err)
	}

	byID := make(map[string]*song.Song, len(songs))
	for i := range songs {
		byID[songs[i].SongID] = &songs[i]
	}

	err = c.exportAll(ctx, "play", func(raw []byte) error {
		var p exportedPlay
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		s, ok := byID[p.SongID]
		if !ok {
			return fmt.Errorf("play references unknown song %q", p.SongID)
		}
		s.Plays = append(s.Plays, p.Play)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export plays: %w", err)
	}

	res := make(map[string]song.Song, len(songs))
	for _, s := range songs {
		song.SortPlays(s.Plays)
		res[s.SHA1] = s
	}
	return res, nil
}

// exportedPlay is a line of /export?type=play output.
type exportedPlay struct {
	SongID string    `json:"songId"`
	Play   song.Play `json:"play"`
}

// exportAll passes every object of the given type to fn. The app returns a
// limited batch per request and ends it with a JSON string cursor line while
// more objects remain, the cursor is sent back to get the next batch.
func (c *Client) exportAll(ctx context.Context, typ string, fn func(raw []byte) error) error {
	var cursor string
	for {
		params := url.Values{"type": {typ}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		data, err := c.get(ctx, "export", params)
		if err != nil {
			return err
		}

		prev := cursor
		cursor = ""
		dec := json.NewDecoder(bytes.NewReader(data))
		for n := 1; ; n++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); errors.Is(err, io.EOF) {
				break
			} else if err != nil {
				return fmt.Errorf("object %d: %w", n, err)
			}
			if raw[0] == '"' {
				if err := json.Unmarshal(raw, &cursor); err != nil {
					return fmt.Errorf("cursor: %w", err)
				}
				continue
			}
			if err := fn(raw); err != nil {
				return fmt.Errorf("object %d: %w", n, err)
			}
		}

		switch cursor {
		case "":
			return nil
		case prev:
			return fmt.Errorf("cursor %q repeated", cursor)
		}
	}
}

// SongID returns the app-assigned ID of the song with the given SHA1.
func (c *Client) SongID(ctx context.Context, sha1 string) (string, error) {
	songs, err := c.Export(ctx)
	if err != nil {
		return "", err
	}
	s, ok := songs[sha1]
	if !ok {
		return "", fmt.Errorf("song %q not found", sha1)
	}
	return s.SongID, nil
}

// Query runs a search with raw query parameters, e.g. "artist=ar1" or "minRating=4".
func (c *Client) Query(ctx context.Context, params ...string) ([]song.Song, error) {
	vals, err := url.ParseQuery(strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("invalid query params: %w", err)
	}
	data, err := c.get(ctx, "query", vals)
	if err != nil {
		return nil, err
	}
	songs := []song.Song{}
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("decode query results: %w", err)
	}
	return songs, nil
}

// Tags returns the app's known tags. If requireCache is true, the app fails
// unless the tags are already cached.
func (c *Client) Tags(ctx context.Context, requireCache bool) ([]string, error) {
	var params url.Values
	if requireCache {
		params = url.Values{"requireCache": {"1"}}
	}
	data, err := c.get(ctx, "tags", params)
	if err != nil {
		return nil, err
	}
	tags := []string{}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// RateAndTag updates a song's user data. The rating is not sent if negative
// and tags are not sent if nil. Nothing is sent if neither is set.
func (c *Client) RateAndTag(ctx context.Context, songID string, rating int, tags []string) error {
	params := url.Values{"songId": {songID}}
	if rating >= 0 {
		params.Set("rating", strconv.Itoa(rating))
	}
	if tags != nil {
		params.Set("tags", strings.Join(tags, " "))
	}
	if len(params) == 1 {
		return nil
	}
	return c.post(ctx, "rate_and_tag", params, "", nil)
}

// ReportPlayed records a play of the song started at start.
func (c *Client) ReportPlayed(ctx context.Context, songID string, start time.Time) error {
	params := url.Values{"songId": {songID}, "startTime": {strconv.FormatInt(start.Unix(), 10)}}
	return c.post(ctx, "played", params, "", nil)
}

// FlushType selects the caches flushed by FlushCache.
type FlushType string

// flush types
const (
	FlushAll      FlushType = ""
	FlushMemcache FlushType = "memcache"
)

// FlushCache flushes the app's caches.
func (c *Client) FlushCache(ctx context.Context, ft FlushType) error {
	var params url.Values
	if ft == FlushMemcache {
		params = url.Values{"onlyMemcache": {"1"}}
	}
	return c.post(ctx, "flush_cache", params, "", nil)
}

// UpdateStats makes the app recompute the statistics shown in the stats dialog.
func (c *Client) UpdateStats(ctx context.Context) error {
	if _, err := c.get(ctx, "stats", url.Values{"update": {"1"}}); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}

// Now returns the app's notion of the current time, zero if it doesn't override it.
func (c *Client) Now(ctx context.Context) (time.Time, error) {
	data, err := c.get(ctx, "now", nil)
	if err != nil {
		return time.Time{}, err
	}
	nsec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", data, err)
	}
	if nsec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, nsec), nil
}

// Ping checks that the app is serving its main page.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.get(ctx, "", nil); err != nil {
		return fmt.Errorf("ping %s: %w", c.base, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, "", nil)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, contentType string, body io.Reader) error {
	_, err := c.do(ctx, http.MethodPost, path, params, contentType, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values,
	contentType string, body io.Reader) ([]byte, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.AddCookie(&http.Cookie{Name: c.opts.AuthCookie, Value: "1"})
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, u.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// StatusError describes a non-200 reply.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: got %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrStatus).
func (e *StatusError) Unwrap() error { return ErrStatus }
