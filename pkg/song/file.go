package song

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fixtureDoc is the YAML layout of a fixture file.
type fixtureDoc struct {
	Songs []fixtureSong `yaml:"songs"`
}

// fixtureSong is a YAML song entry. Missing derived fields are filled in by New.
type fixtureSong struct {
	Artist   string      `yaml:"artist"`
	Title    string      `yaml:"title"`
	Album    string      `yaml:"album"`
	SHA1     string      `yaml:"sha1"`
	AlbumID  string      `yaml:"album_id"`
	Filename string      `yaml:"filename"`
	Track    int         `yaml:"track"`
	Disc     int         `yaml:"disc"`
	Date     time.Time   `yaml:"date"`
	Length   float64     `yaml:"length"`
	Rating   int         `yaml:"rating"`
	Tags     []string    `yaml:"tags"`
	Plays    []time.Time `yaml:"plays"`
	DaysAgo  []int       `yaml:"plays_days_ago"`
	PlayIP   string      `yaml:"play_ip"`
}

func (f fixtureSong) song() (Song, error) {
	if f.Artist == "" && f.Title == "" && f.Album == "" {
		return Song{}, fmt.Errorf("song needs at least one of artist, title or album")
	}
	if f.Rating < 0 || f.Rating > 5 {
		return Song{}, fmt.Errorf("song %q: rating %d out of range [0, 5]", f.Title, f.Rating)
	}

	opts := []Option{WithTrack(f.Track), WithDisc(f.Disc), WithRating(f.Rating), WithDate(f.Date)}
	if f.Filename != "" {
		opts = append(opts, WithFilename(f.Filename))
	}
	if f.Length > 0 {
		opts = append(opts, WithLength(f.Length))
	}
	if len(f.Tags) > 0 {
		opts = append(opts, WithTags(f.Tags...))
	}
	s := New(f.Artist, f.Title, f.Album, opts...)
	for _, t := range f.Plays {
		s.Plays = append(s.Plays, NewPlay(t, f.PlayIP))
	}
	WithPlaysAgo(f.PlayIP, f.DaysAgo...)(&s)
	if f.SHA1 != "" {
		s.SHA1 = f.SHA1
	}
	if f.AlbumID != "" {
		s.AlbumID = f.AlbumID
	}
	return s, nil
}

// LoadFile reads fixture songs from path. The format is chosen by extension:
// .yaml/.yml documents with a top-level "songs" list, .json arrays, and
// .jsonl line-delimited JSON in the server's import format.
func LoadFile(path string) ([]Song, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path supplied by the user
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes fixture songs from data using the format implied by ext.
func Parse(data []byte, ext string) ([]Song, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc fixtureDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml fixtures: %w", err)
		}
		songs := make([]Song, 0, len(doc.Songs))
		for i, fs := range doc.Songs {
			s, err := fs.song()
			if err != nil {
				return nil, fmt.Errorf("song %d: %w", i, err)
			}
			songs = append(songs, s)
		}
		return songs, nil
	case ".json":
		var songs []Song
		if err := json.Unmarshal(data, &songs); err != nil {
			return nil, fmt.Errorf("parse json fixtures: %w", err)
		}
		return songs, nil
	case ".jsonl", ".ndjson":
		return DecodeLines(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", ext)
	}
}
