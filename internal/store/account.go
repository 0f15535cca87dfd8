package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/lionswap/accounts/types"
)

const uniqueViolation = "23505"

const accountColumns = `user_id, uni, student_name, dept_name, email, phone, avatar_url, credibility_score, last_seen_at, google_id, version`

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByHandle(ctx context.Context, handle string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE uni = $1`
	return r.getOne(ctx, query, handle)
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1`
	return r.getOne(ctx, query, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1
		ORDER BY user_id
		LIMIT 1`
	return r.getOne(ctx, query, email)
}

func (r *AccountRepository) GetByGoogleID(ctx context.Context, googleID string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE google_id = $1`
	return r.getOne(ctx, query, googleID)
}

// List returns accounts ordered by id.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY user_id
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []types.Account{}
	for rows.Next() {
		var account types.Account
		err := rows.Scan(
			&account.ID,
			&account.Handle,
			&account.Name,
			&account.Department,
			&account.Email,
			&account.Phone,
			&account.AvatarURL,
			&account.CredibilityScore,
			&account.LastSeenAt,
			&account.GoogleID,
			&account.Version,
		)
		if err != nil {
			return nil, err
		}
		account.CredibilityScore = math.Round(account.CredibilityScore*100) / 100
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Create inserts a new account. A collision on the handle's unique
// constraint comes back as ErrHandleTaken so the caller can retry with
// a de-duplication suffix.
func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	const query = `
		INSERT INTO accounts (uni, student_name, dept_name, email, phone, avatar_url, credibility_score, last_seen_at, google_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING user_id`

	err := r.db.QueryRowContext(
		ctx,
		query,
		account.Handle,
		account.Name,
		account.Department,
		account.Email,
		account.Phone,
		account.AvatarURL,
		account.CredibilityScore,
		account.LastSeenAt,
		account.GoogleID,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err, "accounts_uni_key") {
			return types.Account{}, ErrHandleTaken
		}
		return types.Account{}, err
	}
	account.Version = 1
	return account, nil
}

// Update writes all mutable fields unconditionally and bumps the
// version. Used by internal flows (sign-in backfill) that already hold
// a fresh read.
func (r *AccountRepository) Update(ctx context.Context, account types.Account) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET student_name = $1,
			dept_name = $2,
			email = $3,
			phone = $4,
			avatar_url = $5,
			credibility_score = $6,
			last_seen_at = $7,
			google_id = $8,
			version = version + 1
		WHERE uni = $9
		RETURNING version`
	err := r.db.QueryRowContext(
		ctx,
		query,
		account.Name,
		account.Department,
		account.Email,
		account.Phone,
		account.AvatarURL,
		account.CredibilityScore,
		account.LastSeenAt,
		account.GoogleID,
		account.Handle,
	).Scan(&account.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

// UpdateFields applies a partial update guarded by the caller's version
// token. A stale token yields ErrVersionMismatch; nil fields keep their
// current values.
func (r *AccountRepository) UpdateFields(ctx context.Context, handle string, update types.AccountUpdate, version int64) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET student_name = COALESCE($1, student_name),
			dept_name = COALESCE($2, dept_name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			avatar_url = COALESCE($5, avatar_url),
			credibility_score = COALESCE($6, credibility_score),
			version = version + 1
		WHERE uni = $7 AND version = $8
		RETURNING ` + accountColumns
	account, err := r.getOne(ctx, query,
		update.Name,
		update.Department,
		update.Email,
		update.Phone,
		update.AvatarURL,
		update.CredibilityScore,
		handle,
		version,
	)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return types.Account{}, err
	}

	// Zero rows: distinguish a missing record from a stale token.
	if _, getErr := r.GetByHandle(ctx, handle); getErr != nil {
		return types.Account{}, getErr
	}
	return types.Account{}, ErrVersionMismatch
}

// TouchLastSeen bumps the last-seen timestamp and version.
func (r *AccountRepository) TouchLastSeen(ctx context.Context, handle string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET last_seen_at = $1, version = version + 1
		WHERE uni = $2`
	result, err := r.db.ExecContext(ctx, query, at, handle)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, handle string) error {
	const query = `DELETE FROM accounts WHERE uni = $1`
	result, err := r.db.ExecContext(ctx, query, handle)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, args ...any) (types.Account, error) {
	var account types.Account
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&account.ID,
		&account.Handle,
		&account.Name,
		&account.Department,
		&account.Email,
		&account.Phone,
		&account.AvatarURL,
		&account.CredibilityScore,
		&account.LastSeenAt,
		&account.GoogleID,
		&account.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	account.CredibilityScore = math.Round(account.CredibilityScore*100) / 100
	return account, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}
