// Package song provides song fixtures for seeding the music server and the
// expected-state descriptions used when checking the web interface.
package song

import (
	"bufio"
	"bytes"
	"crypto/sha1" //nolint:gosec // matches the server's song identifiers, not used for security
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// Song mirrors the server's import/export representation of a song.
type Song struct {
	SHA1     string    `json:"sha1,omitempty"`
	SongID   string    `json:"songId,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Artist   string    `json:"artist"`
	Title    string    `json:"title"`
	Album    string    `json:"album"`
	AlbumID  string    `json:"albumId,omitempty"`
	Track    int       `json:"track"`
	Disc     int       `json:"disc"`
	Date     time.Time `json:"date,omitzero"`
	Length   float64   `json:"length"`
	Rating   int       `json:"rating"` // 1-5, 0 if unrated
	Tags     []string  `json:"tags"`
	Plays    []Play    `json:"plays,omitempty"`
}

// Play is a single playback report.
type Play struct {
	StartTime time.Time `json:"t"`
	IPAddress string    `json:"ip"`
}

// NewPlay returns a Play started at t from ip.
func NewPlay(t time.Time, ip string) Play { return Play{StartTime: t, IPAddress: ip} }

// SortPlays orders plays by ascending start time.
func SortPlays(plays []Play) {
	sort.Slice(plays, func(i, j int) bool { return plays[i].StartTime.Before(plays[j].StartTime) })
}

// Fixture audio files available to the file server, with their durations in seconds.
const (
	File0s  = "0s.mp3"
	File1s  = "1s.mp3"
	File5s  = "5s.mp3"
	File10s = "10s.mp3"
)

// FixtureFiles lists all fixture audio files.
var FixtureFiles = []string{File0s, File1s, File5s, File10s}

var fixtureLengths = map[string]float64{
	File0s:  0.026,
	File1s:  1.071,
	File5s:  5.041,
	File10s: 10.031,
}

// FixtureLength returns the duration of a fixture file and false if fn isn't a fixture.
func FixtureLength(fn string) (float64, bool) {
	l, ok := fixtureLengths[fn]
	return l, ok
}

// Option sets a field in a Song created by New.
type Option func(*Song)

// WithTrack sets the track number.
func WithTrack(t int) Option { return func(s *Song) { s.Track = t } }

// WithDisc sets the disc number.
func WithDisc(d int) Option { return func(s *Song) { s.Disc = d } }

// WithRating sets the rating in [1, 5], or 0 for unrated.
func WithRating(r int) Option { return func(s *Song) { s.Rating = r } }

// WithTags sets the tags.
func WithTags(t ...string) Option { return func(s *Song) { s.Tags = t } }

// WithFilename sets the filename, which should be one of the fixture files.
func WithFilename(f string) Option { return func(s *Song) { s.Filename = f } }

// WithLength sets the length in seconds.
func WithLength(l float64) Option { return func(s *Song) { s.Length = l } }

// WithDate sets the release date.
func WithDate(t time.Time) Option { return func(s *Song) { s.Date = t } }

// WithPlays appends plays at the supplied times.
func WithPlays(ts ...time.Time) Option {
	return func(s *Song) {
		for _, t := range ts {
			s.Plays = append(s.Plays, NewPlay(t, ""))
		}
	}
}

// WithPlaysAgo appends plays that happened the given number of days before now.
func WithPlaysAgo(ip string, days ...int) Option {
	return func(s *Song) {
		now := time.Now().UTC()
		for _, d := range days {
			s.Plays = append(s.Plays, NewPlay(now.Add(-time.Duration(d)*24*time.Hour), ip))
		}
	}
}

// New creates a Song with the supplied metadata.
// SHA1 and AlbumID are derived from the metadata, and the 10-second fixture is
// used as the file unless overridden. If no length is supplied, it is taken
// from the fixture file.
func New(artist, title, album string, opts ...Option) Song {
	s := Song{
		Artist:   artist,
		Title:    title,
		Album:    album,
		SHA1:     Hash(artist, title, album),
		AlbumID:  artist + "-" + album,
		Filename: File10s,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.Length == 0 {
		if l, ok := FixtureLength(s.Filename); ok {
			s.Length = l
		}
	}
	return s
}

// Hash returns the hex SHA1 identifier used for songs built from metadata.
func Hash(artist, title, album string) string {
	sum := sha1.Sum([]byte(artist + "-" + title + "-" + album)) //nolint:gosec // identifier only
	return hex.EncodeToString(sum[:])
}

// Join flattens items, consisting of Song and []Song values, into a single slice.
// It panics on any other type.
func Join(items ...any) []Song {
	var all []Song
	for _, it := range items {
		switch v := it.(type) {
		case Song:
			all = append(all, v)
		case []Song:
			all = append(all, v...)
		default:
			panic(fmt.Sprintf("invalid type %T (must be Song or []Song)", it))
		}
	}
	return all
}

// EncodeLines writes songs as line-delimited JSON, the format accepted by the server's import endpoint.
func EncodeLines(w io.Writer, songs []Song) error {
	enc := json.NewEncoder(w)
	for i := range songs {
		if err := enc.Encode(&songs[i]); err != nil {
			return fmt.Errorf("encode song %q: %w", songs[i].SHA1, err)
		}
	}
	return nil
}

// DecodeLines reads line-delimited JSON songs. Blank lines are skipped.
func DecodeLines(r io.Reader) ([]Song, error) {
	var songs []Song
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var s Song
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		songs = append(songs, s)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read songs: %w", err)
	}
	return songs, nil
}
