package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
)

type linksRepo struct {
	db dbtx
}

const linkColumns = `id, original_url, short_code, owner_id, expires_at, active, click_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (domain.Link, error) {
	var (
		l         domain.Link
		ownerID   sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&l.ID,
		&l.OriginalURL,
		&l.ShortCode,
		&ownerID,
		&expiresAt,
		&l.Active,
		&l.ClickCount,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return domain.Link{}, mapNotFound(err)
	}
	l.OwnerID = mapNullStringPtr(ownerID)
	l.ExpiresAt = mapNullTimePtr(expiresAt)
	return l, nil
}

func (r *linksRepo) CreateLink(ctx context.Context, l domain.Link) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO links (id, original_url, short_code, owner_id, expires_at, active, click_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OriginalURL, l.ShortCode,
		mapOptionalString(l.OwnerID), mapOptionalTime(l.ExpiresAt),
		l.Active, l.ClickCount,
	)
	return mapConstraint(err)
}

func (r *linksRepo) GetLinkByID(ctx context.Context, id string) (domain.Link, error) {
	return scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ?`, id))
}

func (r *linksRepo) GetLinkByCode(ctx context.Context, code string) (domain.Link, error) {
	return scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = ?`, code))
}

func (r *linksRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM links WHERE short_code = ?`, code).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *linksRepo) CountOwnedLinks(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM links WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

func (r *linksRepo) IncrementClickCount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE links
		SET click_count = click_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *linksRepo) UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE links
		SET expires_at = ?, active = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		mapOptionalTime(expiresAt), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *linksRepo) UpdateShortCode(ctx context.Context, id string, code string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE links
		SET short_code = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		code, id,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *linksRepo) DeleteLink(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *linksRepo) DeleteOwnedLinks(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ownedLinksFilter builds the WHERE clause shared by the listing and its
// aggregates. instr is used over LIKE so filter text containing SQL
// wildcards matches literally.
func ownedLinksFilter(q store.ListOwnedLinksQuery) (string, []any) {
	where := ` WHERE owner_id = ?`
	args := []any{q.OwnerID}

	if q.TextFilter != "" {
		where += ` AND instr(LOWER(original_url), LOWER(?)) > 0`
		args = append(args, q.TextFilter)
	}

	switch q.State {
	case store.LinkStateActive:
		where += ` AND active = TRUE AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, q.Now)
	case store.LinkStateExpired:
		where += ` AND (active = FALSE OR (expires_at IS NOT NULL AND expires_at <= ?))`
		args = append(args, q.Now)
	}

	return where, args
}

func (r *linksRepo) ListOwnedLinks(ctx context.Context, q store.ListOwnedLinksQuery) ([]domain.Link, error) {
	// Sort column is chosen from a fixed set, never from raw input.
	orderCol := "created_at"
	switch q.SortBy {
	case "click_count", "expires_at":
		orderCol = q.SortBy
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	where, args := ownedLinksFilter(q)
	query := `SELECT ` + linkColumns + ` FROM links` + where +
		` ORDER BY ` + orderCol + ` ` + direction

	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *linksRepo) GetOwnedLinkStats(ctx context.Context, q store.ListOwnedLinksQuery) (store.OwnedLinkStats, error) {
	where, args := ownedLinksFilter(q)

	var s store.OwnedLinkStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(1),
			COALESCE(SUM(click_count), 0),
			COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0)
		FROM links`+where,
		args...,
	).Scan(&s.TotalLinks, &s.TotalClicks, &s.ActiveLinks)
	return s, err
}

func (r *linksRepo) DeleteExpiredAnonymousLinks(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM links WHERE id IN (
			SELECT id FROM links
			WHERE owner_id IS NULL AND expires_at IS NOT NULL AND expires_at <= ?
			LIMIT ?
		)`,
		now, limit,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *linksRepo) DeactivateExpiredOwnedLinks(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE links
		SET active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM links
			WHERE owner_id IS NOT NULL AND active = TRUE
			  AND expires_at IS NOT NULL AND expires_at <= ?
			LIMIT ?
		)`,
		now, limit,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
