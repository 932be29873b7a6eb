package loginstate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
	"github.com/jrsteele09/tourney-finder/loginstate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// repoFactories lets every behavioural test run against both repos.
func repoFactories(t *testing.T) map[string]func() loginstate.Repo {
	t.Helper()
	return map[string]func() loginstate.Repo{
		"inmemory": func() loginstate.Repo {
			return loginstate.NewInMemoryRepo()
		},
		"redis": func() loginstate.Repo {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return loginstate.NewRedisRepo(client)
		},
	}
}

func setupStore(t *testing.T, repo loginstate.Repo) (*loginstate.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return loginstate.New(repo, loginstate.WithClock(clock.Now)), clock
}

func TestIssue_ReturnsFixedLengthUniqueStates(t *testing.T) {
	store, _ := setupStore(t, loginstate.NewInMemoryRepo())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		state, err := store.Issue(ctx)
		require.NoError(t, err)
		require.Len(t, state, 43)
		require.False(t, seen[state], "state issued twice")
		seen[state] = true
	}
}

func TestConsume(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("succeeds once then fails", func(t *testing.T) {
				store, _ := setupStore(t, newRepo())
				state, err := store.Issue(ctx)
				require.NoError(t, err)

				require.NoError(t, store.Consume(ctx, state, state))
				err = store.Consume(ctx, state, state)
				require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
			})

			t.Run("unknown state", func(t *testing.T) {
				store, _ := setupStore(t, newRepo())
				err := store.Consume(ctx, "never-issued", "never-issued")
				require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
			})

			t.Run("empty state", func(t *testing.T) {
				store, _ := setupStore(t, newRepo())
				err := store.Consume(ctx, "", "")
				require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
			})

			t.Run("session state mismatch removes the entry", func(t *testing.T) {
				store, _ := setupStore(t, newRepo())
				state, err := store.Issue(ctx)
				require.NoError(t, err)

				err = store.Consume(ctx, state, "some-other-state")
				require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)

				// The correct pair no longer works either.
				err = store.Consume(ctx, state, state)
				require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
			})

			t.Run("tampered state", func(t *testing.T) {
				store, _ := setupStore(t, newRepo())
				state, err := store.Issue(ctx)
				require.NoError(t, err)

				for i := range state {
					tampered := []byte(state)
					if tampered[i] == 'A' {
						tampered[i] = 'B'
					} else {
						tampered[i] = 'A'
					}
					err := store.Consume(ctx, string(tampered), state)
					require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed, "mutation at %d accepted", i)
				}
				require.NoError(t, store.Consume(ctx, state, state))
			})
		})
	}
}

func TestConsume_Expired(t *testing.T) {
	ctx := context.Background()
	store, clock := setupStore(t, loginstate.NewInMemoryRepo())

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	clock.Advance(loginstate.DefaultTTL + time.Second)
	err = store.Consume(ctx, state, state)
	require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
}

func TestConsume_ExactlyAtTTLStillValid(t *testing.T) {
	ctx := context.Background()
	store, clock := setupStore(t, loginstate.NewInMemoryRepo())

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	clock.Advance(loginstate.DefaultTTL)
	require.NoError(t, store.Consume(ctx, state, state))
}

func TestRedisRepo_KeyExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := loginstate.New(loginstate.NewRedisRepo(client))
	state, err := store.Issue(ctx)
	require.NoError(t, err)

	mr.FastForward(loginstate.DefaultTTL + time.Second)
	err = store.Consume(ctx, state, state)
	require.ErrorIs(t, err, autherrors.ErrCsrfValidationFailed)
}

func TestConsume_ConcurrentOnlyOneWins(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := setupStore(t, newRepo())

			for round := 0; round < 20; round++ {
				state, err := store.Issue(ctx)
				require.NoError(t, err)

				var successes atomic.Int32
				var wg sync.WaitGroup
				start := make(chan struct{})
				for i := 0; i < 16; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						<-start
						if store.Consume(ctx, state, state) == nil {
							successes.Add(1)
						}
					}()
				}
				close(start)
				wg.Wait()
				require.Equal(t, int32(1), successes.Load())
			}
		})
	}
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	repo := loginstate.NewInMemoryRepo()
	store, clock := setupStore(t, repo)

	_, err := store.Issue(ctx)
	require.NoError(t, err)
	clock.Advance(loginstate.DefaultTTL / 2)
	fresh, err := store.Issue(ctx)
	require.NoError(t, err)

	clock.Advance(loginstate.DefaultTTL/2 + time.Second)
	require.NoError(t, store.Sweep(ctx))
	require.Equal(t, 1, repo.Len())
	require.NoError(t, store.Consume(ctx, fresh, fresh))
}

func TestRunSweeper_StopsWithContext(t *testing.T) {
	store, _ := setupStore(t, loginstate.NewInMemoryRepo())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
