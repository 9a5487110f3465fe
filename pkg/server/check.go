package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/umputun/tunecheck/pkg/song"
	"github.com/umputun/tunecheck/pkg/wait"
)

// errMismatch is returned from CheckSong's poll condition while the server disagrees.
var errMismatch = errors.New("songs don't match")

// CheckSong waits until the app's user data for want (identified by SHA1)
// matches checks, typically HasSrvRating, HasSrvTags and HasSrvPlay.
// On failure the error describes both the wanted and the last seen state.
func (c *Client) CheckSong(ctx context.Context, want song.Song, checks ...song.Check) error {
	exp := song.Expect(want, checks...)

	var got *song.Info
	err := wait.Poll(ctx, func() error {
		got = nil
		songs, err := c.Export(ctx)
		if err != nil {
			return err
		}
		s, ok := songs[want.SHA1]
		if !ok {
			return fmt.Errorf("song %q not found", want.SHA1)
		}
		info := song.ServerInfo(s)
		got = &info
		if !song.InfosEqual(exp, info) {
			return errMismatch
		}
		return nil
	}, wait.Opts{Timeout: exp.GetTimeout(c.opts.WaitTimeout), Sleep: c.opts.WaitSleep})
	if err != nil {
		return fmt.Errorf("bad server %q data: %w\n  want: %s\n  got:  %s", want.SHA1, err, exp.String(), got.String())
	}
	return nil
}
