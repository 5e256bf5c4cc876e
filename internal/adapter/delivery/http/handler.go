package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type linkUseCase interface {
	CreateLink(ctx context.Context, ownerID, originalURL, customCode string) (*entity.Link, error)
	GetLink(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error)
	ListLinks(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) (*entity.LinkPage, error)
	DeleteLink(ctx context.Context, ownerID string, id uuid.UUID) error
}

type resolver interface {
	Resolve(ctx context.Context, shortCode string, visit entity.Visit) (*entity.RedirectTarget, error)
}

type statsProvider interface {
	Stats() entity.RecorderStats
}

// renderError maps a usecase error to its status code. Server side failures
// are attached to the request log entry.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		resp   response.Response
	)

	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		status, resp = http.StatusBadRequest, response.InvalidInput
	case errors.Is(err, entity.ErrLinkNotFound):
		status, resp = http.StatusNotFound, response.LinkNotFound
	case errors.Is(err, entity.ErrShortCodeExists):
		status, resp = http.StatusConflict, response.ShortCodeExists
	case errors.Is(err, entity.ErrResolveTimeout):
		status, resp = http.StatusGatewayTimeout, response.ResolveTimeout
	case errors.Is(err, entity.ErrStorageUnavailable):
		status, resp = http.StatusServiceUnavailable, response.StorageUnavailable
	default:
		status, resp = http.StatusInternalServerError, response.ServerError
	}

	if status >= http.StatusInternalServerError {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}

	response.Render(w, r, status, resp)
}

type redirectHandler struct {
	resolver      resolver
	countryHeader string
}

func (h *redirectHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	visit := entity.Visit{
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
	}
	if h.countryHeader != "" {
		visit.Country = strings.ToUpper(strings.TrimSpace(r.Header.Get(h.countryHeader)))
	}

	target, err := h.resolver.Resolve(r.Context(), shortCode, visit)
	if err != nil {
		renderError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, target.OriginalURL, http.StatusFound)
}

type statsHandler struct {
	stats statsProvider
}

func (h *statsHandler) clicks(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.stats.Stats())
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *linkHandler) createLink(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var req createLinkRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			response.Render(w, r, http.StatusBadRequest, response.EmptyRequestBody)
			return
		}

		response.Render(w, r, http.StatusBadRequest, response.InvalidRequestBody)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Render(w, r, http.StatusBadRequest, response.Validation(err))
		return
	}

	link, err := h.useCase.CreateLink(r.Context(), owner, req.OriginalURL, req.CustomCode)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(link))
}

func (h *linkHandler) listLinks(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	query := r.URL.Query()

	var limit int
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.Render(w, r, http.StatusBadRequest, response.InvalidInput)
			return
		}
		limit = n
	}

	after, err := entity.ParseCursor(query.Get("cursor"))
	if err != nil {
		response.Render(w, r, http.StatusBadRequest, response.InvalidCursor)
		return
	}

	page, err := h.useCase.ListLinks(r.Context(), owner, query.Get("q"), after, limit)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toListLinksResponse(page))
}

func (h *linkHandler) linkID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Render(w, r, http.StatusNotFound, response.LinkNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *linkHandler) getLink(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	link, err := h.useCase.GetLink(r.Context(), owner, id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(link))
}

func (h *linkHandler) deleteLink(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	if err := h.useCase.DeleteLink(r.Context(), owner, id); err != nil {
		renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
