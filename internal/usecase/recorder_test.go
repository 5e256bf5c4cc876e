package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/mocks/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

func testRecorderConfig() RecorderConfig {
	return RecorderConfig{
		QueueSize:       1000,
		Workers:         4,
		BatchSize:       16,
		FlushInterval:   5 * time.Millisecond,
		AttemptTimeout:  time.Second,
		RetryInitial:    time.Millisecond,
		RetryMax:        5 * time.Millisecond,
		RetryMaxElapsed: time.Second,
		ShutdownTimeout: time.Second,
	}
}

// runRecorder starts r and returns a function that stops it and waits for the drain.
func runRecorder(t *testing.T, r *ClickRecorder) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		assert.NoError(t, r.Run(ctx))
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("recorder did not stop")
		}
	}
}

type savedClicks struct {
	mu     sync.Mutex
	events []entity.ClickEvent
}

func (s *savedClicks) save(_ context.Context, events []entity.ClickEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	return 0, nil
}

func (s *savedClicks) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

func TestClickRecorder_Record(t *testing.T) {
	t.Run("drops newest when full", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)

		cfg := testRecorderConfig()
		cfg.QueueSize = 2

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		linkID := uuid.New()

		assert.True(t, r.Record(linkID, entity.Visit{}))
		assert.True(t, r.Record(linkID, entity.Visit{}))
		assert.False(t, r.Record(linkID, entity.Visit{}))

		st := r.Stats()
		assert.Equal(t, 2, st.Queued)
		assert.Equal(t, int64(1), st.Dropped)
	})

	t.Run("truncates visit fields", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)

		r, err := NewClickRecorder(repo, logger.Nop(), testRecorderConfig())
		require.NoError(t, err)

		long := strings.Repeat("a", 2*maxVisitFieldLength)
		r.Record(uuid.New(), entity.Visit{Referrer: long, UserAgent: long, Country: "DEU"})

		ev := <-r.queue
		assert.Len(t, ev.Referrer, maxVisitFieldLength)
		assert.Len(t, ev.UserAgent, maxVisitFieldLength)
		assert.Equal(t, "DE", ev.Country)
		assert.NotZero(t, ev.ID)
	})

	t.Run("keeps visit fields valid utf-8", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)

		r, err := NewClickRecorder(repo, logger.Nop(), testRecorderConfig())
		require.NoError(t, err)

		splitRune := strings.Repeat("a", maxVisitFieldLength-1) + "é"
		r.Record(uuid.New(), entity.Visit{
			Referrer:  "https://ref.example/\xff\xfe",
			UserAgent: splitRune,
			Country:   "D\x00E",
		})

		ev := <-r.queue
		assert.True(t, utf8.ValidString(ev.Referrer))
		assert.Equal(t, "https://ref.example/", ev.Referrer)
		assert.True(t, utf8.ValidString(ev.UserAgent))
		assert.Equal(t, strings.Repeat("a", maxVisitFieldLength-1), ev.UserAgent)
		assert.Equal(t, "DE", ev.Country)
	})

	t.Run("unique ids", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)

		r, err := NewClickRecorder(repo, logger.Nop(), testRecorderConfig())
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			r.Record(uuid.New(), entity.Visit{})
		}

		seen := make(map[int64]struct{})
		for i := 0; i < 100; i++ {
			ev := <-r.queue
			seen[ev.ID] = struct{}{}
		}
		assert.Len(t, seen, 100)
	})

	t.Run("invalid node id", func(t *testing.T) {
		cfg := testRecorderConfig()
		cfg.NodeID = -1

		r, err := NewClickRecorder(usecase.NewMockClickRepository(t), logger.Nop(), cfg)

		assert.Error(t, err)
		assert.Nil(t, r)
	})
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "ascii cut", in: "abcdef", n: 3, want: "abc"},
		{name: "rune boundary", in: "aé", n: 2, want: "a"},
		{name: "invalid bytes", in: "a\xc3b", n: 5, want: "ab"},
		{name: "nul bytes", in: "a\x00b", n: 5, want: "ab"},
		{name: "multi byte kept", in: "日本", n: 6, want: "日本"},
		{name: "multi byte cut", in: "日本", n: 5, want: "日"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitize(tt.in, tt.n)

			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestClickRecorder_Run(t *testing.T) {
	t.Run("persists concurrent clicks", func(t *testing.T) {
		const (
			producers = 20
			perProd   = 25
		)

		saved := &savedClicks{}
		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).Return(saved.save)

		r, err := NewClickRecorder(repo, logger.Nop(), testRecorderConfig())
		require.NoError(t, err)

		stop := runRecorder(t, r)

		linkID := uuid.New()
		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perProd; j++ {
					assert.True(t, r.Record(linkID, entity.Visit{Country: "DE"}))
				}
			}()
		}
		wg.Wait()

		assert.Eventually(t, func() bool {
			return saved.len() == producers*perProd
		}, 2*time.Second, 5*time.Millisecond)

		stop()

		st := r.Stats()
		assert.Equal(t, int64(producers*perProd), st.Recorded)
		assert.Zero(t, st.Dropped)
		assert.Zero(t, st.Queued)
	})

	t.Run("drains queue on shutdown", func(t *testing.T) {
		saved := &savedClicks{}
		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).Return(saved.save)

		cfg := testRecorderConfig()
		cfg.FlushInterval = time.Hour

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			require.True(t, r.Record(uuid.New(), entity.Visit{}))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, r.Run(ctx))

		assert.Equal(t, 50, saved.len())
		assert.Equal(t, int64(50), r.Stats().Recorded)
	})

	t.Run("counts clicks of tombstoned links", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Return(func(_ context.Context, events []entity.ClickEvent) (int64, error) {
				return int64(len(events)), nil
			})

		cfg := testRecorderConfig()
		cfg.FlushInterval = time.Hour

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			r.Record(uuid.New(), entity.Visit{})
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, r.Run(ctx))

		st := r.Stats()
		assert.Zero(t, st.Recorded)
		assert.Equal(t, int64(10), st.DroppedPostTombstone)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int64
		saved := &savedClicks{}

		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, events []entity.ClickEvent) (int64, error) {
				if calls.Add(1) <= 2 {
					return 0, entity.ErrStorageUnavailable
				}
				return saved.save(ctx, events)
			})

		cfg := testRecorderConfig()
		cfg.Workers = 1
		cfg.FlushInterval = time.Hour

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			r.Record(uuid.New(), entity.Visit{})
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, r.Run(ctx))

		assert.Equal(t, int64(3), calls.Load())
		assert.Equal(t, 5, saved.len())
		assert.Equal(t, int64(5), r.Stats().Recorded)
		assert.Zero(t, r.Stats().Failed)
	})

	t.Run("rejected event does not fail its batch", func(t *testing.T) {
		var calls atomic.Int64
		saved := &savedClicks{}
		bad := uuid.New()

		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, events []entity.ClickEvent) (int64, error) {
				calls.Add(1)
				for _, ev := range events {
					if ev.LinkID == bad {
						return 0, fmt.Errorf("insert click: %w", entity.ErrInvalidData)
					}
				}
				return saved.save(ctx, events)
			})

		cfg := testRecorderConfig()
		cfg.Workers = 1
		cfg.FlushInterval = time.Hour

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		for i := 0; i < 9; i++ {
			r.Record(uuid.New(), entity.Visit{})
		}
		r.Record(bad, entity.Visit{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, r.Run(ctx))

		st := r.Stats()
		assert.Equal(t, 9, saved.len())
		assert.Equal(t, int64(9), st.Recorded)
		assert.Equal(t, int64(1), st.Failed)
		assert.LessOrEqual(t, calls.Load(), int64(10))
	})

	t.Run("gives up after retry budget", func(t *testing.T) {
		repo := usecase.NewMockClickRepository(t)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Return(int64(0), errors.New("connection refused"))

		cfg := testRecorderConfig()
		cfg.Workers = 1
		cfg.FlushInterval = time.Hour
		cfg.RetryMaxElapsed = 20 * time.Millisecond

		r, err := NewClickRecorder(repo, logger.Nop(), cfg)
		require.NoError(t, err)

		for i := 0; i < 7; i++ {
			r.Record(uuid.New(), entity.Visit{})
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, r.Run(ctx))

		st := r.Stats()
		assert.Equal(t, int64(7), st.Failed)
		assert.Zero(t, st.Recorded)
	})
}
