// Package fileserver serves fixture media files to the browser under test.
// Responses carry CORS headers allowing the app's origin to fetch them with
// credentials, and every request is recorded for later inspection.
package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultAddr binds an ephemeral port on the loopback interface.
const DefaultAddr = "127.0.0.1:0"

// Logger receives one line per served request.
type Logger interface {
	Print(format string, args ...any)
}

// Options controls the file server.
type Options struct {
	Addr        string // listen address, DefaultAddr if empty
	AllowOrigin string // Access-Control-Allow-Origin value, the request's Origin if empty
	Logger      Logger // optional request logger
}

// Server serves a directory over HTTP.
type Server struct {
	dir  string
	opts Options

	srv  *http.Server
	ln   net.Listener
	done chan struct{}

	mu       sync.Mutex
	requests []string
	err      error
}

// New creates a server for dir. Call Start to begin serving.
func New(dir string, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	return &Server{dir: dir, opts: opts}
}

// Start binds the listen address and serves in the background until ctx is
// done or Close is called.
func (s *Server) Start(ctx context.Context) error {
	if s.srv != nil {
		return errors.New("file server already started")
	}
	st, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("file server dir: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("file server dir %s is not a directory", s.dir)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.done = make(chan struct{})
	s.srv = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start shutdown listener
	go func() {
		select {
		case <-ctx.Done():
			_ = s.shutdown()
		case <-s.done:
		}
	}()

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.err = fmt.Errorf("file server: %w", err)
			s.mu.Unlock()
		}
	}()
	return nil
}

// Close stops the server and waits for it to exit.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	if err := s.shutdown(); err != nil {
		return err
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown file server: %w", err)
	}
	return nil
}

// HostPort returns the address the server is listening on.
func (s *Server) HostPort() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// URL returns the slash-terminated base URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.HostPort() + "/"
}

// Requests returns the requests served so far, formatted as
// "<METHOD> <path> <status> <size>".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ClearRequests drops recorded requests.
func (s *Server) ClearRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

func (s *Server) handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.opts.AllowOrigin
		if origin == "" {
			origin = r.Header.Get("Origin")
		}
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Cache-Control", "no-store")

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		files.ServeHTTP(rec, r)
		s.record(r, rec)
	})
}

func (s *Server) record(r *http.Request, rec *recorder) {
	line := fmt.Sprintf("%s %s %d %d", r.Method, r.URL.Path, rec.status, rec.size)
	s.mu.Lock()
	s.requests = append(s.requests, line)
	s.mu.Unlock()
	if s.opts.Logger != nil {
		s.opts.Logger.Print("served %s %s: %d, %s", r.Method, r.URL.Path, rec.status, humanize.Bytes(uint64(rec.size))) //nolint:gosec // size is non-negative
	}
}

// recorder captures the status and body size of a response.
type recorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += int64(n)
	return n, err
}

// CopyFixtures copies the named files from src into dst, creating dst if needed.
// Copies get the current time as their modification time so the app doesn't
// treat them as unchanged.
func CopyFixtures(dst, src string, names ...string) error {
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	now := time.Now()
	for _, name := range names {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("invalid fixture name %q", name)
		}
		dp := filepath.Join(dst, name)
		if err := copyFile(dp, filepath.Join(src, name)); err != nil {
			return err
		}
		if err := os.Chtimes(dp, now, now); err != nil {
			return fmt.Errorf("touch %s: %w", dp, err)
		}
	}
	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src) //nolint:gosec // fixture path from config
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // destination under the serving dir
	if err != nil {
		return fmt.Errorf("create fixture copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
