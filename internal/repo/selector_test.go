package repo_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/repo"
)

func failingConnector(err error) repo.Connector {
	return func(context.Context) (repo.EntryRepo, func(), error) {
		return nil, nil, err
	}
}

// durableConnector pretends to connect to a durable backend by handing out a
// memory repo; closed counts calls to the release function.
func durableConnector(closed *atomic.Int32) repo.Connector {
	return func(context.Context) (repo.EntryRepo, func(), error) {
		return repo.NewMemoryEntryRepo(), func() { closed.Add(1) }, nil
	}
}

func TestSelector_UnreachableDurableFallsBackToMemory(t *testing.T) {
	sel := repo.NewSelector(nil)
	ctx := context.Background()

	got := sel.Select(ctx, repo.BackendPostgres, failingConnector(errors.New("connection refused")), time.Second)

	assert.Equal(t, repo.BackendMemory, got)
	assert.Equal(t, repo.BackendMemory, sel.Backend())

	a, err := sel.Create(ctx, entryFixture("o"))
	require.NoError(t, err)
	b, err := sel.Create(ctx, entryFixture("o"))
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)
	assert.Equal(t, "2", b.ID)

	fetched, err := sel.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, a.Title, fetched.Title)

	all, err := sel.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(all))
}

func TestSelector_NoConnectorUsesMemory(t *testing.T) {
	sel := repo.NewSelector(nil)

	got := sel.Select(context.Background(), repo.BackendMongo, nil, time.Second)

	assert.Equal(t, repo.BackendMemory, got)
}

func TestSelector_DurableSuccess(t *testing.T) {
	var closed atomic.Int32
	sel := repo.NewSelector(nil)

	got := sel.Select(context.Background(), repo.BackendMongo, durableConnector(&closed), time.Second)

	assert.Equal(t, repo.BackendMongo, got)
	sel.Close()
	assert.EqualValues(t, 1, closed.Load())
}

func TestSelector_SelectsExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	connect := func(context.Context) (repo.EntryRepo, func(), error) {
		calls.Add(1)
		return nil, nil, errors.New("down")
	}
	sel := repo.NewSelector(nil)
	ctx := context.Background()

	first := sel.Select(ctx, repo.BackendPostgres, connect, time.Second)
	var closed atomic.Int32
	second := sel.Select(ctx, repo.BackendPostgres, durableConnector(&closed), time.Second)

	assert.Equal(t, repo.BackendMemory, first)
	assert.Equal(t, repo.BackendMemory, second, "a process that starts in fallback stays in fallback")
	assert.EqualValues(t, 1, calls.Load())
}

func TestSelector_RequestsQueueUntilSelected(t *testing.T) {
	sel := repo.NewSelector(nil)
	assert.Equal(t, repo.BackendPending, sel.Backend())

	type result struct {
		entry domain.Entry
		err   error
	}
	done := make(chan result, 1)
	go func() {
		e, err := sel.Create(context.Background(), entryFixture("o"))
		done <- result{e, err}
	}()

	select {
	case <-done:
		t.Fatal("Create returned before a backend was selected")
	case <-time.After(50 * time.Millisecond):
	}

	sel.Select(context.Background(), repo.BackendPostgres, failingConnector(errors.New("down")), time.Second)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "1", res.entry.ID)
	case <-time.After(time.Second):
		t.Fatal("queued Create did not complete after selection")
	}
}

func TestSelector_WaitHonoursCallerDeadline(t *testing.T) {
	sel := repo.NewSelector(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sel.GetByID(ctx, "1")

	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelector_HangingConnectorIsBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	var closed atomic.Int32
	hang := func(context.Context) (repo.EntryRepo, func(), error) {
		<-release // ignores its context
		return repo.NewMemoryEntryRepo(), func() { closed.Add(1) }, nil
	}
	sel := repo.NewSelector(nil)

	start := time.Now()
	got := sel.Select(context.Background(), repo.BackendPostgres, hang, 30*time.Millisecond)

	assert.Equal(t, repo.BackendMemory, got)
	assert.Less(t, time.Since(start), time.Second)

	// A connection that completes after the deadline is released, not used.
	close(release)
	assert.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, repo.BackendMemory, sel.Backend())
}

func TestSelector_CloseBeforeSelectIsNoop(t *testing.T) {
	sel := repo.NewSelector(nil)
	assert.NotPanics(t, sel.Close)
}
