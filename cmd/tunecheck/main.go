// Package main provides tunecheck - fixture tooling for the music player's browser tests.
// It serves fixture audio files, seeds the app server with fixture songs and exports
// what the server stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/umputun/tunecheck/pkg/config"
	"github.com/umputun/tunecheck/pkg/fileserver"
	"github.com/umputun/tunecheck/pkg/notify"
	"github.com/umputun/tunecheck/pkg/progress"
	"github.com/umputun/tunecheck/pkg/render"
	"github.com/umputun/tunecheck/pkg/seed"
	"github.com/umputun/tunecheck/pkg/server"
	"github.com/umputun/tunecheck/pkg/song"
)

// opts holds all command-line options.
type opts struct {
	AppURL    string `short:"u" long:"app-url" env:"TUNECHECK_APP_URL" description:"app server URL (overrides config)"`
	MusicDir  string `short:"m" long:"music-dir" env:"TUNECHECK_MUSIC_DIR" description:"fixture audio directory (overrides config)"`
	ConfigDir string `long:"config-dir" description:"global config directory (default ~/.config/tunecheck)"`

	Serve bool `short:"s" long:"serve" description:"serve fixture audio files until interrupted"`
	Port  int  `short:"p" long:"port" default:"0" description:"fixture file server port, random if 0"`

	Seed    string `long:"seed" value-name:"FILE" description:"import songs from a yaml, json or jsonl fixture file"`
	Watch   bool   `short:"w" long:"watch" description:"re-seed whenever the fixture file changes"`
	Replace bool   `long:"replace-user-data" description:"replace ratings, tags and plays of existing songs"`
	Clear   bool   `long:"clear" description:"clear server data, before seeding if --seed is set"`
	Export  bool   `short:"e" long:"export" description:"print songs stored by the server as JSON lines"`
	Summary bool   `long:"summary" description:"print a markdown summary of songs stored by the server"`

	Debug   bool `short:"d" long:"debug" description:"enable debug logging"`
	NoColor bool `long:"no-color" description:"disable color output"`
	Version bool `short:"v" long:"version" description:"print version and exit"`
}

var revision = "unknown"

func main() {
	var o opts
	parser := flags.NewParser(&o, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		fmt.Printf("tunecheck %s\n", revision)
		os.Exit(0)
	}

	// setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts, stdout io.Writer) error {
	if err := validate(o); err != nil {
		return err
	}

	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, o)

	// log to stderr with --export so stdout stays machine-readable
	logOut := stdout
	if o.Export {
		logOut = os.Stderr
	}
	log, err := progress.NewLogger(progress.Config{
		Dir:     cfg.LogDir,
		Name:    "cli",
		NoColor: o.NoColor,
		Debug:   o.Debug,
		Colors:  progress.Colors(cfg.Colors),
		Stdout:  logOut,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Close()
	log.Debug("config dir %s, local config %s", cfg.ConfigDir(), cfg.LocalPath())

	if o.Serve || o.Watch {
		defer disableCtrlCEcho()()
	}

	var fs *fileserver.Server
	if o.Serve {
		if fs, err = startFileServer(ctx, cfg, o.Port, log); err != nil {
			return err
		}
		defer fs.Close()
	}

	if o.Clear || o.Seed != "" || o.Export || o.Summary {
		client, clientErr := newClient(cfg)
		if clientErr != nil {
			return clientErr
		}
		err = serverActions(ctx, client, o, log, stdout)
		if err == nil && o.Watch {
			s := &seed.Seeder{Importer: client, Logger: log, Clear: o.Clear, ReplaceUserData: o.Replace}
			if watchErr := s.Watch(ctx, o.Seed); watchErr != nil {
				err = fmt.Errorf("watch: %w", watchErr)
			}
		}
		if o.Seed != "" {
			notifySeed(ctx, cfg, o, log, err)
		}
		if err != nil || o.Watch {
			return err
		}
	}

	if fs != nil {
		<-ctx.Done()
		log.Print("stopping file server after %s", log.Elapsed())
	}
	return nil
}

func newClient(cfg *config.Config) (*server.Client, error) {
	client, err := server.New(server.Opts{
		URL:         cfg.AppURL,
		AuthCookie:  cfg.AuthCookie,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Timeout:     cfg.RequestTimeout(),
		WaitTimeout: cfg.WaitTimeout(),
		WaitSleep:   cfg.WaitSleep(),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// validate checks flag combinations.
func validate(o opts) error {
	if !o.Serve && !o.Clear && !o.Export && !o.Summary && o.Seed == "" {
		return errors.New("nothing to do, use --serve, --seed, --clear, --export or --summary")
	}
	if o.Export && o.Summary {
		return errors.New("--export and --summary can't be used together")
	}
	if o.Watch && o.Seed == "" {
		return errors.New("--watch requires --seed")
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return nil
}

// applyOverrides copies command-line values over the loaded config.
func applyOverrides(cfg *config.Config, o opts) {
	if o.AppURL != "" {
		cfg.AppURL = o.AppURL
	}
	if o.MusicDir != "" {
		cfg.MusicDir = o.MusicDir
	}
}

func startFileServer(ctx context.Context, cfg *config.Config, port int, log *progress.Logger) (*fileserver.Server, error) {
	if cfg.MusicDir == "" {
		return nil, errors.New("no music dir, set music_dir in config or use --music-dir")
	}
	dir, err := filepath.Abs(cfg.MusicDir)
	if err != nil {
		return nil, fmt.Errorf("resolve music dir: %w", err)
	}
	for _, fn := range song.FixtureFiles {
		if _, statErr := os.Stat(filepath.Join(dir, fn)); statErr != nil {
			log.Warn("fixture file %s missing in %s", fn, dir)
		}
	}

	fs := fileserver.New(dir, fileserver.Options{
		Addr:        net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		AllowOrigin: cfg.AllowOrigin,
		Logger:      log,
	})
	if err := fs.Start(ctx); err != nil {
		return nil, fmt.Errorf("start file server: %w", err)
	}
	log.Print("serving %s at %s", dir, fs.URL())
	return fs, nil
}

// serverActions runs the one-shot requests against the app server.
func serverActions(ctx context.Context, client *server.Client, o opts, log *progress.Logger, stdout io.Writer) error {
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("app server %s not reachable: %w", client.URL(), err)
	}

	switch {
	case o.Seed != "":
		s := &seed.Seeder{Importer: client, Logger: log, Clear: o.Clear, ReplaceUserData: o.Replace}
		if _, err := s.Load(ctx, o.Seed); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	case o.Clear:
		if err := client.Clear(ctx); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		log.Print("cleared server data")
	}

	if !o.Export && !o.Summary {
		return nil
	}
	songs, err := client.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Debug("exported %d song(s)", len(songs))

	if o.Summary {
		out, renderErr := render.Markdown(render.Summary(sortedSongs(songs)), o.NoColor)
		if renderErr != nil {
			return fmt.Errorf("render summary: %w", renderErr)
		}
		if _, err = io.WriteString(stdout, out); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		return nil
	}
	if err := song.EncodeLines(stdout, sortedSongs(songs)); err != nil {
		return fmt.Errorf("write songs: %w", err)
	}
	return nil
}

// notifySeed reports a finished seed or watch run through the configured notification channels.
func notifySeed(ctx context.Context, cfg *config.Config, o opts, log *progress.Logger, runErr error) {
	svc, err := notify.New(cfg.NotifyParams(), log)
	if err != nil {
		log.Warn("notifications disabled: %v", err)
		return
	}
	res := notify.Result{Status: notify.StatusSuccess, Run: "seed", AppURL: cfg.AppURL, Fixtures: o.Seed,
		Duration: log.Elapsed(), LogFile: log.Path()}
	if o.Watch {
		res.Run = "watch"
	}
	if runErr != nil {
		res.Status, res.Error = notify.StatusFailure, runErr.Error()
	}
	// watch ends on interrupt, the notification still goes out
	svc.Send(context.WithoutCancel(ctx), res)
}

// sortedSongs returns the exported songs ordered by SHA1 for stable output.
func sortedSongs(m map[string]song.Song) []song.Song {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	songs := make([]song.Song, 0, len(keys))
	for _, k := range keys {
		songs = append(songs, m[k])
	}
	return songs
}
