package verification

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestPolicy() config.CodePolicy {
	return config.CodePolicy{
		Length:      6,
		TTL:         15 * time.Minute,
		MaxAttempts: 3,
		Secret:      "code-secret",
	}
}

func newTestEngine(t *testing.T, repo Repository) (*Engine, *testClock) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := NewEngine("email", repo, newTestPolicy(), "fallback", logger)
	e.now = clock.Now
	return e, clock
}

// wrongCode returns a code that differs from code.
func wrongCode(code string) string {
	if code == "999999" {
		return "100000"
	}
	return "999999"
}

func TestEngine_CreateFormat(t *testing.T) {
	e, clock := newTestEngine(t, NewMockRepository())
	six := regexp.MustCompile(`^[1-9][0-9]{5}$`)

	for i := 0; i < 50; i++ {
		issued, err := e.Create(context.Background(), "a@b.com")
		require.NoError(t, err)
		assert.Regexp(t, six, issued.Code)
		assert.Equal(t, clock.now.Add(15*time.Minute), issued.ExpiresAt)
	}
}

func TestEngine_CodesAreNotStoredInPlaintext(t *testing.T) {
	repo := NewMockRepository()
	e, _ := newTestEngine(t, repo)

	issued, err := e.Create(context.Background(), "a@b.com")
	require.NoError(t, err)

	stored, err := repo.Latest(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.NotContains(t, stored.CodeHash, issued.Code)
	assert.Len(t, stored.CodeHash, 64)
}

func TestEngine_Verify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, e *Engine, clock *testClock) string
		wantErr error
	}{
		{
			name: "correct code",
			prepare: func(t *testing.T, e *Engine, _ *testClock) string {
				issued, err := e.Create(ctx, "a@b.com")
				require.NoError(t, err)
				return issued.Code
			},
		},
		{
			name: "no code issued",
			prepare: func(*testing.T, *Engine, *testClock) string {
				return "123456"
			},
			wantErr: ErrCodeNotFound,
		},
		{
			name: "expired code",
			prepare: func(t *testing.T, e *Engine, clock *testClock) string {
				issued, err := e.Create(ctx, "a@b.com")
				require.NoError(t, err)
				clock.Advance(15*time.Minute + time.Second)
				return issued.Code
			},
			wantErr: ErrCodeExpired,
		},
		{
			name: "wrong code",
			prepare: func(t *testing.T, e *Engine, _ *testClock) string {
				issued, err := e.Create(ctx, "a@b.com")
				require.NoError(t, err)
				return wrongCode(issued.Code)
			},
			wantErr: ErrCodeMismatch,
		},
		{
			name: "code for another email",
			prepare: func(t *testing.T, e *Engine, _ *testClock) string {
				issued, err := e.Create(ctx, "other@b.com")
				require.NoError(t, err)
				_, err = e.Create(ctx, "a@b.com")
				require.NoError(t, err)
				return issued.Code
			},
			wantErr: ErrCodeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock := newTestEngine(t, NewMockRepository())
			code := tt.prepare(t, e, clock)

			err := e.Verify(ctx, "a@b.com", code)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_SingleUse(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, NewMockRepository())

	issued, err := e.Create(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, e.Verify(ctx, "a@b.com", issued.Code))
	assert.ErrorIs(t, e.Verify(ctx, "a@b.com", issued.Code), ErrCodeNotFound)
}

func TestEngine_AttemptCap(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, NewMockRepository())

	issued, err := e.Create(ctx, "a@b.com")
	require.NoError(t, err)

	for want := 2; want >= 0; want-- {
		err := e.Verify(ctx, "a@b.com", wrongCode(issued.Code))
		require.ErrorIs(t, err, ErrCodeMismatch)
		assert.Equal(t, want, Remaining(err))
	}

	err = e.Verify(ctx, "a@b.com", issued.Code)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	assert.Equal(t, -1, Remaining(err))
}

func TestEngine_IssueSupersedesOlderCodes(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(t, NewMockRepository())

	first, err := e.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := e.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	if first.Code != second.Code {
		assert.ErrorIs(t, e.Verify(ctx, "a@b.com", first.Code), ErrCodeMismatch)
	}
	assert.NoError(t, e.Verify(ctx, "a@b.com", second.Code))
}

func TestEngine_InvalidateWithoutCodesIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, NewMockRepository())
	assert.NoError(t, e.InvalidateOutstanding(context.Background(), "nobody@b.com"))
}

func TestEngine_ConfirmedWithin(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(t, NewMockRepository())

	issued, err := e.Create(ctx, "a@b.com")
	require.NoError(t, err)

	ok, err := e.ConfirmedWithin(ctx, "a@b.com", issued.Code, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "unverified code does not count")

	require.NoError(t, e.Verify(ctx, "a@b.com", issued.Code))

	ok, err = e.ConfirmedWithin(ctx, "a@b.com", issued.Code, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ConfirmedWithin(ctx, "a@b.com", wrongCode(issued.Code), 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(11 * time.Minute)
	ok, err = e.ConfirmedWithin(ctx, "a@b.com", issued.Code, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_Purge(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	e, clock := newTestEngine(t, repo)

	_, err := e.Create(ctx, "old@b.com")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = e.Create(ctx, "new@b.com")
	require.NoError(t, err)

	n, err := e.PurgeExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, repo.Count("old@b.com"))

	require.NoError(t, e.Purge(ctx, "new@b.com"))
	assert.Equal(t, 0, repo.Count("new@b.com"))
}

func TestNewEngine_FallsBackToSharedSecret(t *testing.T) {
	logger := zap.NewNop()
	policy := newTestPolicy()
	policy.Secret = ""

	a := NewEngine("a", NewMockRepository(), policy, "shared", logger)
	b := NewEngine("b", NewMockRepository(), newTestPolicy(), "shared", logger)
	assert.NotEqual(t, a.digest("a@b.com", "123456"), b.digest("a@b.com", "123456"))
	assert.Equal(t, []byte("shared"), a.secret)
}

func TestEngine_ConfirmedWithinAttemptCap(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, NewMockRepository())

	issued, err := e.Create(ctx, "a@b.com")
	require.NoError(t, err)

	// Two misses before the right code still leave the confirmation usable.
	require.ErrorIs(t, e.Verify(ctx, "a@b.com", wrongCode(issued.Code)), ErrCodeMismatch)
	require.ErrorIs(t, e.Verify(ctx, "a@b.com", wrongCode(issued.Code)), ErrCodeMismatch)
	require.NoError(t, e.Verify(ctx, "a@b.com", issued.Code))

	for i := 0; i < 3; i++ {
		ok, err := e.ConfirmedWithin(ctx, "a@b.com", wrongCode(issued.Code), 10*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := e.ConfirmedWithin(ctx, "a@b.com", issued.Code, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "confirmation is exhausted after repeated misses")
}

func TestEngine_ConcurrentGuessesRespectCap(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, NewMockRepository())

	issued, err := e.Create(ctx, "a@b.com")
	require.NoError(t, err)

	mismatches, exceeded := guessConcurrently(t, e, wrongCode(issued.Code), 100)
	assert.Equal(t, 3, mismatches)
	assert.Equal(t, 97, exceeded)
}

// guessConcurrently fires n parallel Verify calls with guess and counts the
// outcomes.
func guessConcurrently(t *testing.T, e *Engine, guess string, n int) (mismatches, exceeded int) {
	t.Helper()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := e.Verify(context.Background(), "a@b.com", guess)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrCodeMismatch):
				mismatches++
			case errors.Is(err, ErrAttemptsExceeded):
				exceeded++
			default:
				t.Errorf("unexpected result: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return mismatches, exceeded
}
