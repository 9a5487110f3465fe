// Package wait provides condition polling with timeouts.
package wait

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// defaults used by Wait.
const (
	DefaultTimeout = 10 * time.Second
	DefaultSleep   = 10 * time.Millisecond
)

// ErrTimeout is wrapped by errors returned when a condition isn't met in time.
var ErrTimeout = errors.New("timed out")

// Opts controls Poll. Zero values are taken literally, the same way Full
// treats its arguments: a zero Timeout makes a single attempt and a zero
// Sleep retries without pausing. Callers wanting defaults set them explicitly.
type Opts struct {
	Timeout time.Duration
	Sleep   time.Duration
}

// Wait calls Full with DefaultTimeout and DefaultSleep.
func Wait(f func() error) error {
	return Full(f, DefaultTimeout, DefaultSleep)
}

// Full waits up to timeout for f to return nil, sleeping sleep between attempts.
// f is always called at least once. On timeout the returned error wraps both
// ErrTimeout and the last error returned by f.
func Full(f func() error, timeout, sleep time.Duration) error {
	return Poll(context.Background(), f, Opts{Timeout: timeout, Sleep: sleep})
}

// Poll is like Full but also stops when ctx is done.
func Poll(ctx context.Context, f func() error, opts Opts) error {
	start := time.Now()
	for {
		err := f()
		if err == nil {
			return nil
		}
		if time.Since(start) >= opts.Timeout {
			return &TimeoutError{Last: err, Elapsed: time.Since(start)}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-time.After(opts.Sleep):
		}
	}
}

// Equal waits until get returns a value deeply equal to want.
func Equal[T any](get func() (T, error), want T, timeout, sleep time.Duration) error {
	return Full(func() error {
		got, err := get()
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(got, want) {
			return fmt.Errorf("got %v; want %v", got, want)
		}
		return nil
	}, timeout, sleep)
}

// TimeoutError is returned by Full and Poll when the condition wasn't met in time.
type TimeoutError struct {
	Last    error         // last error returned by the condition
	Elapsed time.Duration // time spent waiting
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out: %v", e.Last)
}

// Unwrap exposes both ErrTimeout and the last condition error to errors.Is/As.
func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Last}
}
