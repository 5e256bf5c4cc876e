package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const uniqueViolationErrCode = "23505"

const linkColumns = `id, short_code, original_url, owner_id, favicon, click_count, created_at, deleted_at`

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

// isUnavailableError reports errors caused by an unreachable or restarting server.
func isUnavailableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P: operator intervention.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// isDataError reports errors caused by the submitted values: class 22 (data
// exception, e.g. invalid UTF-8 or a too long string) and class 23 (integrity
// constraint violation).
func isDataError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
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

type linkDB struct {
	ID          uuid.UUID    `db:"id"`
	ShortCode   string       `db:"short_code"`
	OriginalURL string       `db:"original_url"`
	OwnerID     string       `db:"owner_id"`
	Favicon     string       `db:"favicon"`
	ClickCount  int64        `db:"click_count"`
	CreatedAt   time.Time    `db:"created_at"`
	DeletedAt   sql.NullTime `db:"deleted_at"`
}

func (l *linkDB) toEntity() *entity.Link {
	link := &entity.Link{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		OwnerID:     l.OwnerID,
		Favicon:     l.Favicon,
		ClickCount:  l.ClickCount,
		CreatedAt:   l.CreatedAt.UTC(),
	}

	if l.DeletedAt.Valid {
		deletedAt := l.DeletedAt.Time.UTC()
		link.DeletedAt = &deletedAt
	}

	return link
}

// LinkRepository is the PostgreSQL link store and click log.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Save inserts the link. The unique constraint on short_code makes the
// uniqueness check and the insert a single operation.
func (r *LinkRepository) Save(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(id, short_code, original_url, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + linkColumns

	var l linkDB

	err := r.db.GetContext(ctx, &l, query, link.ID, link.ShortCode, link.OriginalURL, link.OwnerID, link.CreatedAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, wrapErr(op, "failed to insert into links table", err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveByShortCode"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1 AND deleted_at IS NULL`

	var l linkDB

	if err := r.db.GetContext(ctx, &l, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get row from links table", err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) RetrieveByID(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveByID"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	var l linkDB

	if err := r.db.GetContext(ctx, &l, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get row from links table", err)
	}

	return l.toEntity(), nil
}

// ListByOwner returns up to limit active links of the owner created strictly
// before the cursor, newest first. A non-empty search keeps only links whose
// short code or destination contains it, ignoring case.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) ([]entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.ListByOwner"

	query := `SELECT ` + linkColumns + ` FROM links
		WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{ownerID}

	if search != "" {
		pattern := repository.ContainsPattern(search)
		query += ` AND (short_code ILIKE ? ESCAPE '\' OR original_url ILIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	if after != nil {
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, after.CreatedAt, after.ID)
	}

	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	var rows []linkDB

	err := r.db.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, wrapErr(op, "failed to select from links table", err)
	}

	links := make([]entity.Link, 0, len(rows))
	for i := range rows {
		links = append(links, *rows[i].toEntity())
	}

	return links, nil
}

// SoftDelete tombstones the link. A link of another owner yields
// entity.ErrForbidden, a missing or already tombstoned one entity.ErrLinkNotFound.
func (r *LinkRepository) SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.SoftDelete"
	const query = `UPDATE links SET deleted_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING ` + linkColumns
	const ownerQuery = `SELECT owner_id FROM links WHERE id = $1 AND deleted_at IS NULL`

	var l linkDB

	err := r.db.GetContext(ctx, &l, query, id, ownerID)
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

// IncrementClicks atomically adds delta to the click counter of an active link.
func (r *LinkRepository) IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error {
	const op = "adapter.repository.postgres.LinkRepository.IncrementClicks"

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
	const query = `UPDATE links SET click_count = click_count + $2 WHERE id = $1 AND deleted_at IS NULL`

	res, err := ext.ExecContext(ctx, query, id, delta)
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

// SaveClicks appends the events of active links and bumps their counters in
// one transaction. Redelivered events are ignored by id, so retrying a batch
// whose commit outcome is unknown does not double count.
func (r *LinkRepository) SaveClicks(ctx context.Context, events []entity.ClickEvent) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.SaveClicks"
	const lockQuery = `SELECT id FROM links WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	const insertQuery = `INSERT INTO click_events(id, link_id, clicked_at, referrer, user_agent, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

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
		if err := tx.GetContext(ctx, &id, lockQuery, group.LinkID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				discarded += int64(len(group.Events))
				continue
			}

			return 0, wrapErr(op, "failed to lock links table row", err)
		}

		var inserted int64
		for _, ev := range group.Events {
			res, err := tx.ExecContext(ctx, insertQuery,
				ev.ID, ev.LinkID, ev.Timestamp, ev.Referrer, ev.UserAgent, ev.Country)
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
	const op = "adapter.repository.postgres.LinkRepository.UpdateFavicon"
	const query = `UPDATE links SET favicon = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, favicon); err != nil {
		return wrapErr(op, "failed to update links table row", err)
	}

	return nil
}
