package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// createLinkRequest is the body of POST /api/v1/links.
type createLinkRequest struct {
	OriginalURL string `json:"original_url" validate:"required,http_url,max=2048"`
	CustomCode  string `json:"custom_code,omitempty" validate:"omitempty,max=32"`
}

// linkResponse is the public view of a link.
type linkResponse struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	ClickCount  int64     `json:"click_count"`
	Favicon     string    `json:"favicon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toLinkResponse(link *entity.Link) linkResponse {
	return linkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ClickCount:  link.ClickCount,
		Favicon:     link.Favicon,
		CreatedAt:   link.CreatedAt,
	}
}

// listLinksResponse is one page of GET /api/v1/links.
type listLinksResponse struct {
	Links      []linkResponse `json:"links"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func toListLinksResponse(page *entity.LinkPage) listLinksResponse {
	resp := listLinksResponse{
		Links: make([]linkResponse, 0, len(page.Links)),
	}

	for i := range page.Links {
		resp.Links = append(resp.Links, toLinkResponse(&page.Links[i]))
	}

	if page.Next != nil {
		resp.NextCursor = page.Next.Encode()
	}

	return resp
}
