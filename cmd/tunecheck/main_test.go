package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tunecheck/pkg/config"
	"github.com/umputun/tunecheck/pkg/notify"
	"github.com/umputun/tunecheck/pkg/song"
)

// fakeApp answers the app endpoints used by the CLI.
type fakeApp struct {
	mu       sync.Mutex
	cleared  int
	imported []string
	songs    string
}

func (f *fakeApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/":
	case "/clear":
		f.cleared++
	case "/import":
		body, _ := io.ReadAll(r.Body)
		f.imported = append(f.imported, string(body))
	case "/export":
		if r.URL.Query().Get("type") == "song" {
			_, _ = io.WriteString(w, f.songs)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeApp) state() (cleared int, imported []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared, append([]string(nil), f.imported...)
}

func newFakeApp(t *testing.T) (*fakeApp, *httptest.Server) {
	t.Helper()
	app := &fakeApp{}
	ts := httptest.NewServer(app)
	t.Cleanup(ts.Close)
	return app, ts
}

// testOpts returns options isolated from the user's config.
func testOpts(t *testing.T) opts {
	t.Helper()
	t.Chdir(t.TempDir())
	return opts{ConfigDir: t.TempDir(), NoColor: true}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		o       opts
		wantErr string
	}{
		{name: "nothing", o: opts{}, wantErr: "nothing to do"},
		{name: "watch without seed", o: opts{Serve: true, Watch: true}, wantErr: "--watch requires --seed"},
		{name: "bad port", o: opts{Serve: true, Port: 70000}, wantErr: "invalid port"},
		{name: "serve", o: opts{Serve: true, Port: 8000}},
		{name: "seed and watch", o: opts{Seed: "songs.yaml", Watch: true}},
		{name: "clear", o: opts{Clear: true}},
		{name: "export", o: opts{Export: true}},
		{name: "summary", o: opts{Summary: true}},
		{name: "export and summary", o: opts{Export: true, Summary: true}, wantErr: "can't be used together"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.o)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{Values: config.Values{AppURL: "http://a/", MusicDir: "/a"}}
	applyOverrides(cfg, opts{})
	assert.Equal(t, "http://a/", cfg.AppURL)
	assert.Equal(t, "/a", cfg.MusicDir)

	applyOverrides(cfg, opts{AppURL: "http://b/", MusicDir: "/b"})
	assert.Equal(t, "http://b/", cfg.AppURL)
	assert.Equal(t, "/b", cfg.MusicDir)
}

func TestSortedSongs(t *testing.T) {
	got := sortedSongs(map[string]song.Song{
		"c": {SHA1: "c"}, "a": {SHA1: "a"}, "b": {SHA1: "b"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].SHA1)
	assert.Equal(t, "b", got[1].SHA1)
	assert.Equal(t, "c", got[2].SHA1)
	assert.Empty(t, sortedSongs(nil))
}

func TestRun_Clear(t *testing.T) {
	app, ts := newFakeApp(t)
	o := testOpts(t)
	o.AppURL = ts.URL
	o.Clear = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	cleared, imported := app.state()
	assert.Equal(t, 1, cleared)
	assert.Empty(t, imported)
	assert.Contains(t, out.String(), "cleared server data")
}

func TestRun_DebugShowsConfigPaths(t *testing.T) {
	_, ts := newFakeApp(t)
	o := testOpts(t)
	o.AppURL = ts.URL
	o.Clear = true
	o.Debug = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "config dir "+o.ConfigDir+", local config "+filepath.Join(".tunecheck", "config"))
}

func TestRun_SeedWithClear(t *testing.T) {
	app, ts := newFakeApp(t)
	o := testOpts(t)
	o.AppURL = ts.URL
	o.Clear = true
	o.Seed = filepath.Join(t.TempDir(), "songs.yaml")
	require.NoError(t, os.WriteFile(o.Seed, []byte("songs:\n  - {artist: A, title: T, album: L}\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	cleared, imported := app.state()
	assert.Equal(t, 1, cleared)
	require.Len(t, imported, 1)
	assert.Contains(t, imported[0], `"sha1":"`+song.Hash("A", "T", "L")+`"`)
	assert.Contains(t, out.String(), "imported 1 song(s)")
}

func TestRun_Export(t *testing.T) {
	app, ts := newFakeApp(t)
	s1, s2 := song.New("B", "T2", "L"), song.New("A", "T1", "L")
	s1.SongID, s2.SongID = "1", "2"
	var buf bytes.Buffer
	require.NoError(t, song.EncodeLines(&buf, []song.Song{s1, s2}))
	app.mu.Lock()
	app.songs = buf.String()
	app.mu.Unlock()

	o := testOpts(t)
	o.AppURL = ts.URL
	o.Export = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))

	got, err := song.DecodeLines(&out)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].SHA1, got[1].SHA1, "sorted by sha1")
}

func TestRun_Summary(t *testing.T) {
	app, ts := newFakeApp(t)
	s1 := song.New("B", "T2", "L", song.WithTrack(2), song.WithRating(4))
	s2 := song.New("A", "T1", "L", song.WithTrack(1))
	s1.SongID, s2.SongID = "1", "2"
	var buf bytes.Buffer
	require.NoError(t, song.EncodeLines(&buf, []song.Song{s1, s2}))
	app.mu.Lock()
	app.songs = buf.String()
	app.mu.Unlock()

	o := testOpts(t)
	o.AppURL = ts.URL
	o.Summary = true

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "- **Songs:** 2\n")
	assert.Contains(t, out.String(), "- **Albums:** 2\n")
	assert.Contains(t, out.String(), "| B | T2 | L | 2 | 0:10 | ★★★★ |  | 0 |")
	assert.Contains(t, out.String(), "| A | T1 | L | 1 | 0:10 | - |  | 0 |")
}

func TestRun_SeedNotify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	_, ts := newFakeApp(t)
	o := testOpts(t)
	o.AppURL = ts.URL

	dir := t.TempDir()
	result := filepath.Join(dir, "result.json")
	script := filepath.Join(dir, "notify.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > "+result+"\n"), 0o700)) //nolint:gosec // executable script
	conf := "notify_channels = custom\nnotify_custom_script = " + script + "\nnotify_on_complete = true\nnotify_on_error = true\n"
	require.NoError(t, os.WriteFile(filepath.Join(o.ConfigDir, "config"), []byte(conf), 0o600))

	t.Run("success", func(t *testing.T) {
		o.Seed = filepath.Join(t.TempDir(), "songs.yaml")
		require.NoError(t, os.WriteFile(o.Seed, []byte("songs:\n  - {artist: A, title: T, album: L}\n"), 0o600))
		require.NoError(t, run(context.Background(), o, io.Discard))

		data, err := os.ReadFile(result) //nolint:gosec // test path
		require.NoError(t, err)
		var res notify.Result
		require.NoError(t, json.Unmarshal(data, &res))
		assert.Equal(t, notify.StatusSuccess, res.Status)
		assert.Equal(t, "seed", res.Run)
		assert.Equal(t, o.Seed, res.Fixtures)
		assert.Empty(t, res.Error)
	})

	t.Run("failure", func(t *testing.T) {
		o.Seed = filepath.Join(t.TempDir(), "songs.txt")
		require.NoError(t, os.WriteFile(o.Seed, []byte("x"), 0o600))
		require.Error(t, run(context.Background(), o, io.Discard))

		data, err := os.ReadFile(result) //nolint:gosec // test path
		require.NoError(t, err)
		var res notify.Result
		require.NoError(t, json.Unmarshal(data, &res))
		assert.Equal(t, notify.StatusFailure, res.Status)
		assert.Contains(t, res.Error, "unsupported fixture format")
	})
}

func TestRun_Errors(t *testing.T) {
	t.Run("unreachable app", func(t *testing.T) {
		o := testOpts(t)
		o.AppURL = "http://127.0.0.1:1/"
		o.Clear = true
		err := run(context.Background(), o, io.Discard)
		require.ErrorContains(t, err, "not reachable")
	})

	t.Run("serve without music dir", func(t *testing.T) {
		o := testOpts(t)
		o.Serve = true
		err := run(context.Background(), o, io.Discard)
		require.ErrorContains(t, err, "no music dir")
	})

	t.Run("bad seed file", func(t *testing.T) {
		_, ts := newFakeApp(t)
		o := testOpts(t)
		o.AppURL = ts.URL
		o.Seed = filepath.Join(t.TempDir(), "songs.txt")
		require.NoError(t, os.WriteFile(o.Seed, []byte("x"), 0o600))
		err := run(context.Background(), o, io.Discard)
		require.ErrorContains(t, err, "unsupported fixture format")
	})
}

func TestRun_Serve(t *testing.T) {
	o := testOpts(t)
	o.Serve = true
	o.MusicDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(o.MusicDir, song.File1s), []byte("audio"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, o, out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "serving ") }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "fixture file "+song.File5s+" missing")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run didn't stop on cancel")
	}
	assert.Contains(t, out.String(), "stopping file server")
}

// syncBuffer is a bytes.Buffer safe for use from the run goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
