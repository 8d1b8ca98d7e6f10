package database

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/registry"
)

// Registry keeps asset custody in the tokens table. It implements
// market.Registry and reports the same errors as registry.Memory.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry creates a registry on pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// Transfer moves custody of asset from src to dst.
func (r *Registry) Transfer(ctx context.Context, src, dst model.AccountID, asset model.AssetID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tokens SET owner = $4::uuid
		WHERE class_id = $1::numeric AND token_id = $2::numeric AND owner = $3::uuid`,
		numeric(asset.Class), numeric(asset.Token), src.String(), dst.String(),
	)
	if err != nil {
		return fmt.Errorf("transfer token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, found, err := r.OwnerOf(ctx, asset); err != nil {
		return err
	} else if !found {
		return registry.ErrTokenNotFound
	}
	return registry.ErrNoPermission
}

// IsOwnerOf reports whether account holds asset.
func (r *Registry) IsOwnerOf(ctx context.Context, account model.AccountID, asset model.AssetID) (bool, error) {
	owner, found, err := r.OwnerOf(ctx, asset)
	if err != nil {
		return false, err
	}
	return found && owner == account, nil
}

// OwnerOf returns the holder of asset.
func (r *Registry) OwnerOf(ctx context.Context, asset model.AssetID) (model.AccountID, bool, error) {
	var s string
	err := r.pool.QueryRow(ctx, `
		SELECT owner::text FROM tokens WHERE class_id = $1::numeric AND token_id = $2::numeric`,
		numeric(asset.Class), numeric(asset.Token),
	).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ZeroAccount, false, nil
	}
	if err != nil {
		return model.ZeroAccount, false, fmt.Errorf("query token owner: %w", err)
	}
	owner, err := parseAccount("owner", s)
	if err != nil {
		return model.ZeroAccount, false, err
	}
	return owner, true, nil
}

// TokensOf returns the assets held by owner ordered by class then token.
func (r *Registry) TokensOf(ctx context.Context, owner model.AccountID) ([]model.AssetID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT class_id::text, token_id::text FROM tokens
		WHERE owner = $1::uuid ORDER BY class_id, token_id`,
		owner.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	assets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AssetID, error) {
		var class, token string
		if err := row.Scan(&class, &token); err != nil {
			return model.AssetID{}, err
		}
		var a model.AssetID
		if a.Class, err = parseNumeric("class_id", class); err != nil {
			return a, err
		}
		a.Token, err = parseNumeric("token_id", token)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tokens: %w", err)
	}
	return assets, nil
}

// SeedToken places asset with owner at genesis, creating its class with
// owner as class owner if needed. Existing tokens are left alone, so
// restarts do not reassign custody or recount issuance.
func (r *Registry) SeedToken(ctx context.Context, owner model.AccountID, asset model.AssetID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed token: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO classes (class_id, owner) VALUES ($1::numeric, $2::uuid)
		ON CONFLICT (class_id) DO NOTHING`,
		numeric(asset.Class), owner.String(),
	); err != nil {
		return fmt.Errorf("seed class: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO tokens (class_id, token_id, owner) VALUES ($1::numeric, $2::numeric, $3::uuid)
		ON CONFLICT (class_id, token_id) DO NOTHING`,
		numeric(asset.Class), numeric(asset.Token), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("seed token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx, `
			UPDATE classes SET total_issuance = total_issuance + 1 WHERE class_id = $1::numeric`,
			numeric(asset.Class),
		); err != nil {
			return fmt.Errorf("count seeded token: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed token: %w", err)
	}
	return nil
}

// Class returns the class record for id.
func (r *Registry) Class(ctx context.Context, id model.ClassID) (registry.Class, bool, error) {
	var (
		owner, issuance string
		metadata        []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT owner::text, metadata, total_issuance::text FROM classes WHERE class_id = $1::numeric`,
		numeric(id),
	).Scan(&owner, &metadata, &issuance)
	if errors.Is(err, pgx.ErrNoRows) {
		return registry.Class{}, false, nil
	}
	if err != nil {
		return registry.Class{}, false, fmt.Errorf("query class: %w", err)
	}

	var c registry.Class
	if c.Owner, err = parseAccount("owner", owner); err != nil {
		return registry.Class{}, false, err
	}
	if c.TotalIssuance, err = parseNumeric("total_issuance", issuance); err != nil {
		return registry.Class{}, false, err
	}
	c.Metadata = metadata
	return c, true, nil
}

// CreateClass registers a class owned by owner under the next free id.
func (r *Registry) CreateClass(ctx context.Context, owner model.AccountID, metadata []byte) (model.ClassID, error) {
	if len(metadata) > registry.MaxMetadata {
		return 0, registry.ErrMetadataTooLarge
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create class: %w", err)
	}
	defer tx.Rollback(ctx)

	// Concurrent creators would otherwise pick the same id.
	if _, err := tx.Exec(ctx, `LOCK TABLE classes IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock classes: %w", err)
	}
	var s string
	err = tx.QueryRow(ctx, `
		INSERT INTO classes (class_id, owner, metadata)
		SELECT COALESCE(MAX(class_id) + 1, 0), $1::uuid, $2 FROM classes
		RETURNING class_id::text`,
		owner.String(), bytesOrEmpty(metadata),
	).Scan(&s)
	if isCheckViolation(err) {
		return 0, registry.ErrNoAvailableClassID
	}
	if err != nil {
		return 0, fmt.Errorf("create class: %w", err)
	}
	id, err := parseNumeric("class_id", s)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit create class: %w", err)
	}
	return id, nil
}

// Mint creates a token in class for owner. Only the class owner may mint.
func (r *Registry) Mint(ctx context.Context, caller, owner model.AccountID, class model.ClassID, metadata []byte) (model.TokenID, error) {
	if len(metadata) > registry.MaxMetadata {
		return 0, registry.ErrMetadataTooLarge
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin mint: %w", err)
	}
	defer tx.Rollback(ctx)

	var classOwner, next string
	err = tx.QueryRow(ctx, `
		SELECT owner::text, next_token::text FROM classes WHERE class_id = $1::numeric FOR UPDATE`,
		numeric(class),
	).Scan(&classOwner, &next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, registry.ErrClassNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query class: %w", err)
	}
	if co, err := parseAccount("owner", classOwner); err != nil {
		return 0, err
	} else if co != caller {
		return 0, registry.ErrNoPermission
	}
	id, err := parseNumeric("next_token", next)
	if err != nil {
		return 0, err
	}

	// Genesis seeding may have claimed ids ahead of the counter.
	for {
		if id == math.MaxUint64 {
			return 0, registry.ErrNoAvailableTokenID
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO tokens (class_id, token_id, owner, metadata)
			VALUES ($1::numeric, $2::numeric, $3::uuid, $4)
			ON CONFLICT (class_id, token_id) DO NOTHING`,
			numeric(class), numeric(id), owner.String(), bytesOrEmpty(metadata),
		)
		if err != nil {
			return 0, fmt.Errorf("insert token: %w", err)
		}
		if tag.RowsAffected() == 1 {
			break
		}
		id++
	}

	if _, err := tx.Exec(ctx, `
		UPDATE classes SET next_token = $2::numeric, total_issuance = total_issuance + 1
		WHERE class_id = $1::numeric`,
		numeric(class), numeric(id+1),
	); err != nil {
		return 0, fmt.Errorf("advance class: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit mint: %w", err)
	}
	return id, nil
}

// Burn destroys a token held by owner.
func (r *Registry) Burn(ctx context.Context, owner model.AccountID, asset model.AssetID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin burn: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM tokens WHERE class_id = $1::numeric AND token_id = $2::numeric AND owner = $3::uuid`,
		numeric(asset.Class), numeric(asset.Token), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("burn token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, found, err := r.OwnerOf(ctx, asset); err != nil {
			return err
		} else if !found {
			return registry.ErrTokenNotFound
		}
		return registry.ErrNoPermission
	}

	if _, err := tx.Exec(ctx, `
		UPDATE classes SET total_issuance = total_issuance - 1 WHERE class_id = $1::numeric`,
		numeric(asset.Class),
	); err != nil {
		return fmt.Errorf("count burned token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit burn: %w", err)
	}
	return nil
}

// DestroyClass removes a class owned by owner that has no tokens left.
func (r *Registry) DestroyClass(ctx context.Context, owner model.AccountID, class model.ClassID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM classes WHERE class_id = $1::numeric AND owner = $2::uuid AND total_issuance = 0`,
		numeric(class), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("destroy class: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, found, err := r.Class(ctx, class)
	switch {
	case err != nil:
		return err
	case !found:
		return registry.ErrClassNotFound
	case c.Owner != owner:
		return registry.ErrNoPermission
	}
	return registry.ErrCannotDestroyClass
}

// bytesOrEmpty keeps nil metadata from binding as NULL.
func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
