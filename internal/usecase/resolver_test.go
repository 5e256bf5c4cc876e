package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/mocks/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

type ResolverTestSuite struct {
	suite.Suite
	errUnknown error
	link       *entity.Link
	target     *entity.RedirectTarget
	visit      entity.Visit
	linksMock  *usecase.MockLinkReader
	cacheMock  *usecase.MockLinkCache
	clicksMock *usecase.MockClickSink
	r          *Resolver
}

func (suite *ResolverTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.link = &entity.Link{
		ID:          uuid.MustParse("5d1a8a2e-8d57-4a6e-9b1f-3f1b2c9d0e11"),
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com",
		OwnerID:     "user-1",
	}
	suite.target = &entity.RedirectTarget{
		LinkID:      suite.link.ID,
		OriginalURL: suite.link.OriginalURL,
	}
	suite.visit = entity.Visit{Referrer: "https://ref.example", UserAgent: "test-agent", Country: "DE"}
}

func (suite *ResolverTestSuite) SetupSubTest() {
	suite.linksMock = usecase.NewMockLinkReader(suite.T())
	suite.cacheMock = usecase.NewMockLinkCache(suite.T())
	suite.clicksMock = usecase.NewMockClickSink(suite.T())
	suite.r = NewResolver(suite.linksMock, suite.cacheMock, suite.clicksMock, logger.Nop(), time.Second)
}

func (suite *ResolverTestSuite) TearDownSubTest() {
	suite.linksMock.AssertExpectations(suite.T())
	suite.cacheMock.AssertExpectations(suite.T())
	suite.clicksMock.AssertExpectations(suite.T())
}

func (suite *ResolverTestSuite) TestResolve() {
	suite.Run("malformed code", func() {
		target, err := suite.r.Resolve(context.Background(), "../bad", suite.visit)

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(target)
	})

	suite.Run("cache hit", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(suite.target, nil)
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Once().
			Return(true)

		target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.NoError(err)
		suite.Equal(suite.target, target)
	})

	suite.Run("cache miss", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(nil, nil)
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Once().
			Return(suite.link, nil)
		suite.cacheMock.
			On("Set", mock.Anything, "abc1234", suite.target).
			Once().
			Return(nil)
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Once().
			Return(true)

		target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.NoError(err)
		suite.Equal(suite.target, target)
	})

	suite.Run("unknown code", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "missing").
			Once().
			Return(nil, nil)
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "missing").
			Once().
			Return(nil, entity.ErrLinkNotFound)

		target, err := suite.r.Resolve(context.Background(), "missing", suite.visit)

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(target)
	})

	suite.Run("cache failure falls back to store", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(nil, suite.errUnknown)
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Once().
			Return(suite.link, nil)
		suite.cacheMock.
			On("Set", mock.Anything, "abc1234", suite.target).
			Once().
			Return(suite.errUnknown)
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Once().
			Return(true)

		target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.NoError(err)
		suite.Equal(suite.target, target)
	})

	suite.Run("storage unavailable", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(nil, nil)
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Once().
			Return(nil, entity.ErrStorageUnavailable)

		target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.ErrorIs(err, entity.ErrStorageUnavailable)
		suite.Nil(target)
	})

	suite.Run("full recorder does not fail the redirect", func() {
		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(suite.target, nil)
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Once().
			Return(false)

		target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.NoError(err)
		suite.Equal(suite.target, target)
	})

	suite.Run("slow store", func() {
		r := NewResolver(suite.linksMock, suite.cacheMock, suite.clicksMock, logger.Nop(), 20*time.Millisecond)

		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(nil, nil)
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Once().
			Return(func(ctx context.Context, _ string) (*entity.Link, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})

		target, err := r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.ErrorIs(err, entity.ErrResolveTimeout)
		suite.Nil(target)
	})

	suite.Run("hanging cache falls through to store", func() {
		r := NewResolver(suite.linksMock, suite.cacheMock, suite.clicksMock, logger.Nop(), 200*time.Millisecond)

		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Once().
			Return(func(ctx context.Context, _ string) (*entity.RedirectTarget, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Once().
			Return(suite.link, nil)
		suite.cacheMock.
			On("Set", mock.Anything, "abc1234", suite.target).
			Once().
			Return(func(ctx context.Context, _ string, _ *entity.RedirectTarget) error {
				<-ctx.Done()
				return ctx.Err()
			})
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Once().
			Return(true)

		start := time.Now()
		target, err := r.Resolve(context.Background(), "abc1234", suite.visit)

		suite.NoError(err)
		suite.Equal(suite.target, target)
		suite.Less(time.Since(start), 200*time.Millisecond)
	})

	suite.Run("concurrent misses share one lookup", func() {
		const callers = 20

		var (
			gets    atomic.Int64
			lookups atomic.Int64
			release = make(chan struct{})
		)

		suite.cacheMock.
			On("Get", mock.Anything, "abc1234").
			Return(func(context.Context, string) (*entity.RedirectTarget, error) {
				gets.Add(1)
				return nil, nil
			})
		suite.linksMock.
			On("RetrieveByShortCode", mock.Anything, "abc1234").
			Return(func(context.Context, string) (*entity.Link, error) {
				lookups.Add(1)
				<-release
				return suite.link, nil
			})
		suite.cacheMock.
			On("Set", mock.Anything, "abc1234", suite.target).
			Return(nil)
		suite.clicksMock.
			On("Record", suite.link.ID, suite.visit).
			Times(callers).
			Return(true)

		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				target, err := suite.r.Resolve(context.Background(), "abc1234", suite.visit)
				suite.NoError(err)
				suite.Equal(suite.target, target)
			}()
		}

		suite.Eventually(func() bool { return gets.Load() == callers }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		suite.Equal(int64(1), lookups.Load())
	})
}

func TestResolver(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}
