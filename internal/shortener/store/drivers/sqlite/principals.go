package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
)

type principalsRepo struct {
	db dbtx
}

const principalColumns = `id, provider, external_id, email, display_name, refresh_hash, created_at, updated_at`

func scanPrincipal(row *sql.Row) (domain.Principal, error) {
	var (
		p           domain.Principal
		provider    string
		refreshHash sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&provider,
		&p.ExternalID,
		&p.Email,
		&p.DisplayName,
		&refreshHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.Provider = domain.Provider(provider)
	p.RefreshHash = mapNullStringPtr(refreshHash)
	return p, nil
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO principals (id, provider, external_id, email, display_name, refresh_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Provider), p.ExternalID, p.Email, p.DisplayName,
		mapOptionalString(p.RefreshHash),
	)
	return mapConstraint(err)
}

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	return scanPrincipal(r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id))
}

func (r *principalsRepo) GetPrincipalByExternalID(
	ctx context.Context,
	provider domain.Provider,
	externalID string,
) (domain.Principal, error) {
	return scanPrincipal(r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE provider = ? AND external_id = ?`,
		string(provider), externalID))
}

func (r *principalsRepo) GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error) {
	return scanPrincipal(r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = ?`, email))
}

func (r *principalsRepo) LinkIdentity(
	ctx context.Context,
	id string,
	provider domain.Provider,
	externalID string,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET provider = ?, external_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(provider), externalID, id,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *principalsRepo) UpdateDisplayName(ctx context.Context, id string, displayName string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET display_name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		displayName, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *principalsRepo) SetRefreshSecret(ctx context.Context, id string, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET refresh_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		hash, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SwapRefreshSecret only succeeds while the stored hash still equals oldHash.
// Two concurrent rotations race on this compare-and-swap and exactly one wins.
func (r *principalsRepo) SwapRefreshSecret(ctx context.Context, id string, oldHash, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET refresh_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND refresh_hash = ?`,
		newHash, id, oldHash,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *principalsRepo) ClearRefreshSecret(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE principals
		SET refresh_hash = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow maps a zero-row update to store.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
