package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	httpMock "github.com/vadimbarashkov/shortlink/mocks/http"
)

const testSecret = "test-secret"

type HandlersTestSuite struct {
	suite.Suite
	logger          *httplog.Logger
	linkID          uuid.UUID
	createdAt       time.Time
	token           string
	linkUseCaseMock *httpMock.MockLinkUseCase
	resolverMock    *httpMock.MockResolver
	statsMock       *httpMock.MockStatsProvider
	server          *httptest.Server
	e               *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	suite.linkID = uuid.MustParse("5d1a8a2e-8d57-4a6e-9b1f-3f1b2c9d0e11")
	suite.createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	token, err := NewToken([]byte(testSecret), "user-1", time.Hour)
	suite.Require().NoError(err)
	suite.token = token
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.linkUseCaseMock = httpMock.NewMockLinkUseCase(suite.T())
	suite.resolverMock = httpMock.NewMockResolver(suite.T())
	suite.statsMock = httpMock.NewMockStatsProvider(suite.T())

	cfg := RouterConfig{
		JWTSecret: testSecret,
		RateLimit: RateLimitConfig{Enabled: true, Burst: 2, PerMinute: 1},
	}

	router := NewRouter(suite.logger, cfg, suite.linkUseCaseMock, suite.resolverMock, suite.statsMock)
	suite.server = httptest.NewServer(router)
	suite.T().Cleanup(func() {
		suite.server.Close()
	})

	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.linkUseCaseMock.AssertExpectations(suite.T())
	suite.resolverMock.AssertExpectations(suite.T())
	suite.statsMock.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) link() *entity.Link {
	return &entity.Link{
		ID:          suite.linkID,
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com",
		OwnerID:     "user-1",
		ClickCount:  42,
		CreatedAt:   suite.createdAt,
	}
}

func (suite *HandlersTestSuite) auth() string {
	return "Bearer " + suite.token
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong")
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("success", func() {
		suite.resolverMock.
			On("Resolve", mock.Anything, "abc1234", entity.Visit{
				Referrer:  "https://ref.example",
				UserAgent: "test-agent",
				Country:   "DE",
			}).
			Once().
			Return(&entity.RedirectTarget{LinkID: suite.linkID, OriginalURL: "https://example.com/landing"}, nil)

		suite.e.GET("/abc1234").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			WithHeader("Referer", "https://ref.example").
			WithHeader("User-Agent", "test-agent").
			WithHeader("CF-IPCountry", "de").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/landing")
	})

	suite.Run("not found", func() {
		suite.resolverMock.
			On("Resolve", mock.Anything, "missing", mock.Anything).
			Once().
			Return(nil, entity.ErrLinkNotFound)

		resp := suite.e.GET("/missing").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("message", "link not found")
	})

	suite.Run("timeout", func() {
		suite.resolverMock.
			On("Resolve", mock.Anything, "slow", mock.Anything).
			Once().
			Return(nil, entity.ErrResolveTimeout)

		suite.e.GET("/slow").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusGatewayTimeout)
	})

	suite.Run("storage unavailable", func() {
		suite.resolverMock.
			On("Resolve", mock.Anything, "abc1234", mock.Anything).
			Once().
			Return(nil, fmt.Errorf("wrapped: %w", entity.ErrStorageUnavailable))

		suite.e.GET("/abc1234").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusServiceUnavailable)
	})
}

func (suite *HandlersTestSuite) TestClickStats() {
	suite.Run("success", func() {
		suite.statsMock.
			On("Stats").
			Once().
			Return(entity.RecorderStats{Queued: 3, Recorded: 10, Dropped: 1, DroppedPostTombstone: 2})

		resp := suite.e.GET("/api/v1/stats/clicks").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("queued", 3)
		resp.HasValue("recorded", 10)
		resp.HasValue("dropped", 1)
		resp.HasValue("dropped_post_tombstone", 2)
		resp.HasValue("failed", 0)
	})
}

func (suite *HandlersTestSuite) TestAuth() {
	const path = "/api/v1/links"

	suite.Run("missing token", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusUnauthorized).
			Header("WWW-Authenticate").NotEmpty()
	})

	suite.Run("wrong secret", func() {
		token, err := NewToken([]byte("other-secret"), "user-1", time.Hour)
		suite.Require().NoError(err)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusUnauthorized)
	})

	suite.Run("expired token", func() {
		token, err := NewToken([]byte(testSecret), "user-1", -time.Minute)
		suite.Require().NoError(err)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusUnauthorized)
	})

	suite.Run("empty subject", func() {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).
			SignedString([]byte(testSecret))
		suite.Require().NoError(err)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusUnauthorized)
	})

	suite.Run("oversized subject", func() {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   strings.Repeat("u", entity.MaxOwnerLength+1),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		suite.Require().NoError(err)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusUnauthorized)
	})

	suite.Run("unsigned token", func() {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		suite.Require().NoError(err)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusUnauthorized)
	})
}

func (suite *HandlersTestSuite) TestCreateLink() {
	const path = "/api/v1/links"

	suite.Run("empty request body", func() {
		resp := suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("invalid request body", func() {
		resp := suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("validation error", func() {
		resp := suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "invalid url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "original_url").
			ContainsKey("message")
	})

	suite.Run("invalid input", func() {
		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-1", "https://example.com", "swagger").
			Once().
			Return(nil, entity.ErrInvalidInput)

		suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "https://example.com", "custom_code": "swagger"}).
			Expect().
			Status(http.StatusBadRequest)
	})

	suite.Run("short code exists", func() {
		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-1", "https://example.com", "promo").
			Once().
			Return(nil, entity.ErrShortCodeExists)

		suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "https://example.com", "custom_code": "promo"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object().
			HasValue("message", "short code already exists")
	})

	suite.Run("server error", func() {
		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-1", "https://example.com", "").
			Once().
			Return(nil, entity.ErrMaxRetriesExceeded)

		suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError)
	})

	suite.Run("success", func() {
		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-1", "https://example.com", "").
			Once().
			Return(suite.link(), nil)

		resp := suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.HasValue("id", suite.linkID.String())
		resp.HasValue("short_code", "abc1234")
		resp.HasValue("original_url", "https://example.com")
		resp.HasValue("click_count", 42)
		resp.ContainsKey("created_at")
		resp.NotContainsKey("owner_id")
	})

	suite.Run("rate limited", func() {
		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-1", "https://example.com", "").
			Times(2).
			Return(suite.link(), nil)

		for i := 0; i < 2; i++ {
			suite.e.POST(path).
				WithHeader("Authorization", suite.auth()).
				WithJSON(map[string]string{"original_url": "https://example.com"}).
				Expect().
				Status(http.StatusCreated)
		}

		suite.e.POST(path).
			WithHeader("Authorization", suite.auth()).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusTooManyRequests).
			Header("Retry-After").NotEmpty()

		token, err := NewToken([]byte(testSecret), "user-2", time.Hour)
		suite.Require().NoError(err)

		suite.linkUseCaseMock.
			On("CreateLink", mock.Anything, "user-2", "https://example.com", "").
			Once().
			Return(suite.link(), nil)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+token).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated)
	})
}

func (suite *HandlersTestSuite) TestListLinks() {
	const path = "/api/v1/links"

	suite.Run("invalid cursor", func() {
		suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("cursor", "!!!").
			Expect().
			Status(http.StatusBadRequest)
	})

	suite.Run("invalid limit", func() {
		suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("limit", "ten").
			Expect().
			Status(http.StatusBadRequest)
	})

	suite.Run("first page", func() {
		next := entity.CursorFor(*suite.link())

		suite.linkUseCaseMock.
			On("ListLinks", mock.Anything, "user-1", "", (*entity.Cursor)(nil), 1).
			Once().
			Return(&entity.LinkPage{Links: []entity.Link{*suite.link()}, Next: next}, nil)

		resp := suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("limit", 1).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.Value("links").Array().Length().IsEqual(1)
		resp.HasValue("next_cursor", next.Encode())
	})

	suite.Run("next page", func() {
		after := entity.CursorFor(*suite.link())

		suite.linkUseCaseMock.
			On("ListLinks", mock.Anything, "user-1", "", after, 0).
			Once().
			Return(&entity.LinkPage{}, nil)

		resp := suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("cursor", after.Encode()).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.Value("links").Array().IsEmpty()
		resp.NotContainsKey("next_cursor")
	})

	suite.Run("search with cursor", func() {
		after := entity.CursorFor(*suite.link())

		suite.linkUseCaseMock.
			On("ListLinks", mock.Anything, "user-1", "Docs", after, 5).
			Once().
			Return(&entity.LinkPage{Links: []entity.Link{*suite.link()}}, nil)

		resp := suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("q", "Docs").
			WithQuery("cursor", after.Encode()).
			WithQuery("limit", 5).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.Value("links").Array().Length().IsEqual(1)
	})

	suite.Run("search too long", func() {
		suite.linkUseCaseMock.
			On("ListLinks", mock.Anything, "user-1", mock.AnythingOfType("string"), (*entity.Cursor)(nil), 0).
			Once().
			Return(nil, fmt.Errorf("search too long: %w", entity.ErrInvalidInput))

		suite.e.GET(path).
			WithHeader("Authorization", suite.auth()).
			WithQuery("q", strings.Repeat("x", 300)).
			Expect().
			Status(http.StatusBadRequest)
	})
}

func (suite *HandlersTestSuite) TestGetLink() {
	path := "/api/v1/links/%s"

	suite.Run("malformed id", func() {
		suite.e.GET(fmt.Sprintf(path, "not-a-uuid")).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("not found", func() {
		suite.linkUseCaseMock.
			On("GetLink", mock.Anything, "user-1", suite.linkID).
			Once().
			Return(nil, entity.ErrLinkNotFound)

		suite.e.GET(fmt.Sprintf(path, suite.linkID)).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("success", func() {
		suite.linkUseCaseMock.
			On("GetLink", mock.Anything, "user-1", suite.linkID).
			Once().
			Return(suite.link(), nil)

		suite.e.GET(fmt.Sprintf(path, suite.linkID)).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("short_code", "abc1234")
	})
}

func (suite *HandlersTestSuite) TestDeleteLink() {
	path := "/api/v1/links/%s"

	suite.Run("not found", func() {
		suite.linkUseCaseMock.
			On("DeleteLink", mock.Anything, "user-1", suite.linkID).
			Once().
			Return(entity.ErrLinkNotFound)

		suite.e.DELETE(fmt.Sprintf(path, suite.linkID)).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("server error", func() {
		suite.linkUseCaseMock.
			On("DeleteLink", mock.Anything, "user-1", suite.linkID).
			Once().
			Return(errors.New("unknown error"))

		suite.e.DELETE(fmt.Sprintf(path, suite.linkID)).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusInternalServerError)
	})

	suite.Run("success", func() {
		suite.linkUseCaseMock.
			On("DeleteLink", mock.Anything, "user-1", suite.linkID).
			Once().
			Return(nil)

		suite.e.DELETE(fmt.Sprintf(path, suite.linkID)).
			WithHeader("Authorization", suite.auth()).
			Expect().
			Status(http.StatusNoContent)
	})
}

func TestHandlers(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
