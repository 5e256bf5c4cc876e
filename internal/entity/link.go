// Package entity defines the entities and errors used in the application.
// It includes the Link struct, which represents a shortened URL owned by a user,
// the ClickEvent recorded on every successful redirect, and the sentinel errors
// shared by all layers.
package entity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Link represents a shortened URL.
type Link struct {
	ID          uuid.UUID  // ID is the opaque identifier assigned at creation.
	ShortCode   string     // ShortCode is the token that resolves to OriginalURL.
	OriginalURL string     // OriginalURL is the absolute http(s) destination.
	OwnerID     string     // OwnerID identifies the user that created the link.
	Favicon     string     // Favicon is a best-effort icon URL of the destination site.
	ClickCount  int64      // ClickCount is the aggregate number of recorded clicks.
	CreatedAt   time.Time  // CreatedAt is the timestamp when the link was created.
	DeletedAt   *time.Time // DeletedAt is set once the link is tombstoned.
}

// IsActive reports whether the link has not been tombstoned.
func (l *Link) IsActive() bool {
	return l.DeletedAt == nil
}

// RedirectTarget is the result of resolving a short code.
type RedirectTarget struct {
	LinkID      uuid.UUID `json:"link_id"`
	OriginalURL string    `json:"original_url"`
}

// Cursor marks a position in an owner's link listing, which is ordered by
// CreatedAt and then ID, both descending.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorFor returns the cursor pointing right after the given link.
func CursorFor(l Link) *Cursor {
	return &Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
}

// Encode returns the opaque string form of the cursor.
func (c *Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a cursor produced by Cursor.Encode. An empty string
// yields a nil cursor, meaning the first page.
func ParseCursor(s string) (*Cursor, error) {
	const op = "entity.ParseCursor"

	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	ts, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	linkID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: linkID}, nil
}

// LinkPage is one page of an owner's links.
type LinkPage struct {
	Links []Link
	Next  *Cursor // Next is nil on the last page.
}

// MaxOwnerLength is the longest owner id, in characters, the stores accept.
const MaxOwnerLength = 255

var (
	errEmptyOwner = errors.New("owner id is empty")
	errLongOwner  = fmt.Errorf("owner id exceeds %d characters", MaxOwnerLength)
)

// ValidateOwner checks that a verified owner id was supplied and fits the
// owner_id column.
func ValidateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errEmptyOwner)
	}
	if utf8.RuneCountInString(ownerID) > MaxOwnerLength {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errLongOwner)
	}
	return nil
}
