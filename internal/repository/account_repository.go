package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// AccountRepository defines persistence access for chat accounts.
type AccountRepository interface {
	// Save inserts or updates the account by id. A non-empty handle is
	// released from any other account that held it.
	Save(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const selectAccount = `
        SELECT id, COALESCE(handle, ''), COALESCE(full_name, ''), role, created_at, updated_at
        FROM accounts`

func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if account.Handle != "" {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET handle=NULL, updated_at=NOW() WHERE handle=$1 AND id<>$2`,
			account.Handle, account.ID); err != nil {
			return err
		}
	}

	const upsert = `
        INSERT INTO accounts (id, handle, full_name, role)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
        ON CONFLICT (id) DO UPDATE SET handle=EXCLUDED.handle, full_name=EXCLUDED.full_name,
            role=EXCLUDED.role, updated_at=NOW()
        RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, upsert,
		account.ID,
		account.Handle,
		account.Name,
		account.Role,
	).Scan(&account.CreatedAt, &account.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.fetchSingle(ctx, selectAccount+` WHERE id=$1`, id)
}

func (r *accountRepository) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return r.fetchSingle(ctx, selectAccount+` WHERE handle=$1`, handle)
}

func (r *accountRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Handle,
		&account.Name,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}
