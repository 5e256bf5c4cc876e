// Package sqlite implements the link store on an embedded SQLite database
// for single node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"modernc.org/sqlite"

	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var Schema string

const linkColumns = `id, short_code, original_url, owner_id, favicon, click_count, created_at, deleted_at`

func errCode(err error) (int, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

func isUniqueViolationError(err error) bool {
	code, ok := errCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func isUnavailableError(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	code, ok := errCode(err)
	if !ok {
		return false
	}

	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL:
		return true
	default:
		return false
	}
}

func isDataError(err error) bool {
	code, ok := errCode(err)
	if !ok {
		return false
	}

	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_RANGE:
		return true
	default:
		return false
	}
}

func wrapErr(op, msg string, err error) error {
	switch {
	case isUnavailableError(err):
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrStorageUnavailable, err)
	case isDataError(err):
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrInvalidData, err)
	default:
		return fmt.Errorf("%s: %s: %w", op, msg, err)
	}
}

// Timestamps are stored as unix microseconds so that they order numerically.
type linkDB struct {
	ID          uuid.UUID     `db:"id"`
	ShortCode   string        `db:"short_code"`
	OriginalURL string        `db:"original_url"`
	OwnerID     string        `db:"owner_id"`
	Favicon     string        `db:"favicon"`
	ClickCount  int64         `db:"click_count"`
	CreatedAt   int64         `db:"created_at"`
	DeletedAt   sql.NullInt64 `db:"deleted_at"`
}

func (l *linkDB) toEntity() *entity.Link {
	link := &entity.Link{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		OwnerID:     l.OwnerID,
		Favicon:     l.Favicon,
		ClickCount:  l.ClickCount,
		CreatedAt:   time.UnixMicro(l.CreatedAt).UTC(),
	}

	if l.DeletedAt.Valid {
		deletedAt := time.UnixMicro(l.DeletedAt.Int64).UTC()
		link.DeletedAt = &deletedAt
	}

	return link
}

// LinkRepository is the SQLite link store and click log.
type LinkRepository struct {
	db     *sqlx.DB
	reader *sqlx.DB // reader serves lookups that need no transaction.
	now    func() time.Time
}

type Option func(*LinkRepository)

// WithReader routes lookups to a separate query-only pool so they do not
// queue behind the single writer connection.
func WithReader(reader *sqlx.DB) Option {
	return func(r *LinkRepository) {
		if reader != nil {
			r.reader = reader
		}
	}
}

func NewLinkRepository(db *sqlx.DB, opts ...Option) *LinkRepository {
	r := &LinkRepository{db: db, reader: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LinkRepository) Save(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	const op = "adapter.repository.sqlite.LinkRepository.Save"
	const query = `INSERT INTO links(id, short_code, original_url, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + linkColumns

	var l linkDB

	err := r.db.GetContext(ctx, &l, query,
		link.ID, link.ShortCode, link.OriginalURL, link.OwnerID, link.CreatedAt.UnixMicro())
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, wrapErr(op, "failed to insert into links table", err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.sqlite.LinkRepository.RetrieveByShortCode"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE short_code = ? AND deleted_at IS NULL`

	var l linkDB

	if err := r.reader.GetContext(ctx, &l, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get row from links table", err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) RetrieveByID(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error) {
	const op = "adapter.repository.sqlite.LinkRepository.RetrieveByID"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`

	var l linkDB

	if err := r.reader.GetContext(ctx, &l, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get row from links table", err)
	}

	return l.toEntity(), nil
}

// ListByOwner pages the owner's active links newest first. SQLite LIKE
// ignores case for ASCII letters only.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) ([]entity.Link, error) {
	const op = "adapter.repository.sqlite.LinkRepository.ListByOwner"

	query := `SELECT ` + linkColumns + ` FROM links
		WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{ownerID}

	if search != "" {
		pattern := repository.ContainsPattern(search)
		query += ` AND (short_code LIKE ? ESCAPE '\' OR original_url LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	if after != nil {
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, after.CreatedAt.UnixMicro(), after.ID)
	}

	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	var rows []linkDB

	err := r.reader.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, wrapErr(op, "failed to select from links table", err)
	}

	links := make([]entity.Link, 0, len(rows))
	for i := range rows {
		links = append(links, *rows[i].toEntity())
	}

	return links, nil
}

func (r *LinkRepository) SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error) {
	const op = "adapter.repository.sqlite.LinkRepository.SoftDelete"
	const query = `UPDATE links SET deleted_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
		RETURNING ` + linkColumns
	const ownerQuery = `SELECT owner_id FROM links WHERE id = ? AND deleted_at IS NULL`

	var l linkDB

	err := r.db.GetContext(ctx, &l, query, r.now().UnixMicro(), id, ownerID)
	if err == nil {
		return l.toEntity(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapErr(op, "failed to update links table row", err)
	}

	var owner string
	if err := r.db.GetContext(ctx, &owner, ownerQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get owner from links table", err)
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrForbidden)
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error {
	const op = "adapter.repository.sqlite.LinkRepository.IncrementClicks"

	if delta < 0 {
		return fmt.Errorf("%s: negative delta: %w", op, entity.ErrInvalidInput)
	}

	if err := incrementClicks(ctx, r.db, id, delta); err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}

		return wrapErr(op, "failed to update links table row", err)
	}

	return nil
}

func incrementClicks(ctx context.Context, ext sqlx.ExecerContext, id uuid.UUID, delta int64) error {
	const query = `UPDATE links SET click_count = click_count + ? WHERE id = ? AND deleted_at IS NULL`

	res, err := ext.ExecContext(ctx, query, delta, id)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get number of affected rows: %w", err)
	}

	if rowsAffected != 1 {
		return entity.ErrLinkNotFound
	}

	return nil
}

func (r *LinkRepository) SaveClicks(ctx context.Context, events []entity.ClickEvent) (int64, error) {
	const op = "adapter.repository.sqlite.LinkRepository.SaveClicks"
	const liveQuery = `SELECT id FROM links WHERE id = ? AND deleted_at IS NULL`
	const insertQuery = `INSERT OR IGNORE INTO click_events(id, link_id, clicked_at, referrer, user_agent, country)
		VALUES (?, ?, ?, ?, ?, ?)`

	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrapErr(op, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var discarded int64

	for _, group := range repository.GroupClicks(events) {
		var id uuid.UUID
		if err := tx.GetContext(ctx, &id, liveQuery, group.LinkID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				discarded += int64(len(group.Events))
				continue
			}

			return 0, wrapErr(op, "failed to get links table row", err)
		}

		var inserted int64
		for _, ev := range group.Events {
			res, err := tx.ExecContext(ctx, insertQuery,
				ev.ID, ev.LinkID, ev.Timestamp.UnixMicro(), ev.Referrer, ev.UserAgent, ev.Country)
			if err != nil {
				return 0, wrapErr(op, "failed to insert into click_events table", err)
			}

			n, err := res.RowsAffected()
			if err != nil {
				return 0, wrapErr(op, "failed to get number of affected rows", err)
			}
			inserted += n
		}

		if inserted == 0 {
			continue
		}

		if err := incrementClicks(ctx, tx, group.LinkID, inserted); err != nil {
			return 0, wrapErr(op, "failed to update links table row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr(op, "failed to commit transaction", err)
	}

	return discarded, nil
}

func (r *LinkRepository) UpdateFavicon(ctx context.Context, id uuid.UUID, favicon string) error {
	const op = "adapter.repository.sqlite.LinkRepository.UpdateFavicon"
	const query = `UPDATE links SET favicon = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, favicon, id); err != nil {
		return wrapErr(op, "failed to update links table row", err)
	}

	return nil
}

// CountClicks returns the number of stored click events of a link.
func (r *LinkRepository) CountClicks(ctx context.Context, id uuid.UUID) (int64, error) {
	const op = "adapter.repository.sqlite.LinkRepository.CountClicks"
	const query = `SELECT COUNT(*) FROM click_events WHERE link_id = ?`

	var n int64
	if err := r.reader.GetContext(ctx, &n, query, id); err != nil {
		return 0, wrapErr(op, "failed to count click_events rows", err)
	}

	return n, nil
}
