package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	accountColumns = `id, email, name, password_hash, is_active, is_staff, is_superuser, last_login, created_at, updated_at`

	uniqueViolation       = "23505"
	emailUniqueConstraint = "accounts_email_key"
)

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *AccountsRepo) observe(op string, fn func() error) error {
	return repo.prom.ObserveDB(op, fn)
}

func (repo *AccountsRepo) Create(ctx context.Context, a account.Account) (account.Account, error) {
	var out account.Account

	err := repo.observe("accounts.create", func() error {
		return scanAccount(repo.pool.QueryRow(ctx,
			`INSERT INTO accounts (email, name, password_hash, is_active, is_staff, is_superuser)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING `+accountColumns,
			a.Email, a.Name, a.PasswordHash, a.IsActive, a.IsStaff, a.IsSuperuser,
		), &out)
	})

	if err != nil {
		return account.Account{}, mapWriteErr(err)
	}

	return out, nil
}

func (repo *AccountsRepo) GetByID(ctx context.Context, id int64) (account.Account, error) {
	var a account.Account

	err := repo.observe("accounts.get_by_id", func() error {
		return scanAccount(repo.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
		), &a)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}

	return a, nil
}

func (repo *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account

	err := repo.observe("accounts.get_by_email", func() error {
		return scanAccount(repo.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email,
		), &a)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}

	return a, nil
}

func (repo *AccountsRepo) List(ctx context.Context, limit, offset int) (items []account.Account, total int, err error) {
	var rows pgx.Rows

	err = repo.observe("accounts.list", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx,
			`SELECT `+accountColumns+`, COUNT(*) OVER() AS total
			FROM accounts
			ORDER BY id ASC
			LIMIT $1 OFFSET $2`,
			limit, offset,
		)
		return qerr
	})

	if err != nil {
		return
	}

	defer rows.Close()

	items = make([]account.Account, 0, limit)

	for rows.Next() {
		var a account.Account

		e := rows.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.IsStaff, &a.IsSuperuser, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt, &total)

		if e != nil {
			err = e
			return
		}
		items = append(items, a)
	}

	err = rows.Err()

	if err != nil {
		return
	}

	// COUNT(*) OVER() yields nothing once the offset runs past the end
	if len(items) == 0 && offset > 0 {
		err = repo.observe("accounts.count", func() error {
			return repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total)
		})
	}

	return
}

func (repo *AccountsRepo) Update(ctx context.Context, id int64, p account.Patch) (account.Account, error) {
	if p.Empty() {
		return repo.GetByID(ctx, id)
	}

	var sets []string
	var args []interface{}

	argsPosition := 1

	add := func(column string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argsPosition))
		args = append(args, v)
		argsPosition++
	}

	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.IsStaff != nil {
		add("is_staff", *p.IsStaff)
	}
	if p.IsSuperuser != nil {
		add("is_superuser", *p.IsSuperuser)
	}

	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()` +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, argsPosition) + accountColumns
	args = append(args, id)

	var out account.Account

	err := repo.observe("accounts.update", func() error {
		return scanAccount(repo.pool.QueryRow(ctx, query, args...), &out)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, mapWriteErr(err)
	}

	return out, nil
}

func (repo *AccountsRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	var tag pgconn.CommandTag

	err := repo.observe("accounts.touch_last_login", func() error {
		var e error
		tag, e = repo.pool.Exec(ctx, `UPDATE accounts SET last_login = $2 WHERE id = $1`, id, at)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row, a *account.Account) error {
	return row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.IsStaff, &a.IsSuperuser, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailUniqueConstraint {
		return account.ErrEmailTaken
	}

	return err
}
