package entity

import (
	"time"

	"github.com/google/uuid"
)

// ClickEvent is a single successful resolution of a short code. It is
// write-once.
type ClickEvent struct {
	ID        int64     // ID is a time-sortable snowflake id.
	LinkID    uuid.UUID // LinkID references the resolved link.
	Timestamp time.Time // Timestamp is when the redirect was served.
	Referrer  string    // Referrer is the Referer header, if any.
	UserAgent string    // UserAgent is the User-Agent header, if any.
	Country   string    // Country is a coarse ISO 3166-1 alpha-2 code, if known.
}

// Visit carries the request metadata attached to a click.
type Visit struct {
	Referrer  string
	UserAgent string
	Country   string
}

// RecorderStats is a snapshot of the click recorder counters.
type RecorderStats struct {
	Queued               int   `json:"queued"`
	Recorded             int64 `json:"recorded"`
	Dropped              int64 `json:"dropped"`
	DroppedPostTombstone int64 `json:"dropped_post_tombstone"`
	Failed               int64 `json:"failed"`
}
