package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errBoom := errors.New("boom")
	r := NewRunnerWith(ctx).Go(
		NamedRun("canceled", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		RunFunc(func(context.Context) error { return errBoom }),
	)
	cancel()
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errBoom))
	require.Equal(t, "boom", err.Error())
}

func TestRunnerWaitTimeout(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner().Go(RunFunc(func(context.Context) error {
		<-release
		return nil
	}))
	require.Equal(t, ErrWaitTimeout, r.WaitTimeout(10*time.Millisecond))
	close(release)
	require.NoError(t, r.WaitTimeout(time.Second))
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &testCloser{ch: make(chan struct{})}
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithContextCloser(ctx, c, func() error {
			<-c.ch
			return errors.New("closed")
		})
	}()
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.True(t, c.closed)
}

type testCloser struct {
	ch     chan struct{}
	closed bool
}

func (c *testCloser) Close() error {
	c.closed = true
	close(c.ch)
	return nil
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errA, errB := errors.New("a"), errors.New("b")
	err := errs.Add(errA, nil, errB).Aggregate()
	require.Equal(t, "Multiple errors:\na\nb", err.Error())
	require.True(t, errors.Is(err, errB))
}
