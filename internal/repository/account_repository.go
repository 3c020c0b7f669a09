package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/blog-service/internal/domain"
)

// AccountRepository is the credential store. Lookups return
// domain.ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Save(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error)
	FindByResetToken(ctx context.Context, token string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)

	// SetCredentialToken overwrites the account's token slot of the given kind.
	SetCredentialToken(ctx context.Context, accountID string, kind domain.TokenKind, token domain.CredentialToken, at time.Time) error
	// ConsumeVerificationToken clears a live verification token and marks the
	// email verified in one step. It returns domain.ErrTokenNotFound when no
	// account holds the token with an expiry at or after now.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*domain.Account, error)
	// ConsumeResetToken clears a live reset token and stores passwordHash in one step.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*domain.Account, error)
	// UpdatePassword stores a new hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, accountID, passwordHash string, at time.Time) error
	// ChangeRole applies change only if the account still holds change.OldRole,
	// and records it in the role change log. Otherwise domain.ErrRoleConflict.
	ChangeRole(ctx context.Context, change domain.RoleChange) (*domain.Account, error)
	ListRoleChanges(ctx context.Context, accountID string) ([]domain.RoleChange, error)
}

// AccountFilter defines query params for account listing.
type AccountFilter struct {
	Role     *domain.Role
	Verified *bool
	Limit    int
	Offset   int
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountColumns = `id, username, email, password_hash, role, email_verified,
        verification_token, verification_token_expires_at,
        reset_password_token, reset_password_token_expires_at,
        created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (id, username, email, password_hash, role, email_verified,
            verification_token, verification_token_expires_at,
            reset_password_token, reset_password_token_expires_at,
            created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	verValue, verExp := tokenColumns(account.Verification)
	resetValue, resetExp := tokenColumns(account.Reset)
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Role.String(),
		account.EmailVerified,
		verValue, verExp,
		resetValue, resetExp,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET username=$1, email=$2, password_hash=$3, role=$4, email_verified=$5,
            verification_token=$6, verification_token_expires_at=$7,
            reset_password_token=$8, reset_password_token_expires_at=$9,
            updated_at=$10
        WHERE id=$11`

	verValue, verExp := tokenColumns(account.Verification)
	resetValue, resetExp := tokenColumns(account.Reset)
	cmd, err := r.pool.Exec(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Role.String(),
		account.EmailVerified,
		verValue, verExp,
		resetValue, resetExp,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username=$1`, username)
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email)=lower($1)`, email)
}

func (r *accountRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE verification_token=$1`, token)
}

func (r *accountRepository) FindByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_password_token=$1`, token)
}

func (r *accountRepository) List(ctx context.Context, filter AccountFilter) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}
	if filter.Role != nil {
		args = append(args, filter.Role.String())
		query += fmt.Sprintf(" AND role=$%d", len(args))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		query += fmt.Sprintf(" AND email_verified=$%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (r *accountRepository) SetCredentialToken(ctx context.Context, accountID string, kind domain.TokenKind, token domain.CredentialToken, at time.Time) error {
	var query string
	switch kind {
	case domain.TokenKindVerification:
		query = `UPDATE accounts SET verification_token=$1, verification_token_expires_at=$2, updated_at=$3 WHERE id=$4`
	case domain.TokenKindReset:
		query = `UPDATE accounts SET reset_password_token=$1, reset_password_token_expires_at=$2, updated_at=$3 WHERE id=$4`
	default:
		return fmt.Errorf("unknown token kind %q", kind)
	}

	cmd, err := r.pool.Exec(ctx, query, token.Value, token.ExpiresAt, at, accountID)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string, at time.Time) error {
	const query = `
        UPDATE accounts SET password_hash=$1,
            reset_password_token=NULL, reset_password_token_expires_at=NULL, updated_at=$2
        WHERE id=$3`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, at, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Row locking makes a second concurrent UPDATE re-check the WHERE clause
// after the first commits, so only one caller gets a row back.
func (r *accountRepository) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*domain.Account, error) {
	const query = `
        UPDATE accounts SET email_verified=TRUE,
            verification_token=NULL, verification_token_expires_at=NULL, updated_at=$2
        WHERE verification_token=$1 AND verification_token_expires_at >= $2
        RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, token, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	return account, err
}

func (r *accountRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*domain.Account, error) {
	const query = `
        UPDATE accounts SET password_hash=$2,
            reset_password_token=NULL, reset_password_token_expires_at=NULL, updated_at=$3
        WHERE reset_password_token=$1 AND reset_password_token_expires_at >= $3
        RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, token, passwordHash, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	return account, err
}

func (r *accountRepository) ChangeRole(ctx context.Context, change domain.RoleChange) (*domain.Account, error) {
	const update = `
        UPDATE accounts SET role=$1, updated_at=$2
        WHERE id=$3 AND role=$4
        RETURNING ` + accountColumns
	const audit = `
        INSERT INTO role_changes (id, account_id, old_role, new_role, actor, reason, changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	var account *domain.Account
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		account, err = scanAccount(tx.QueryRow(ctx, update,
			change.NewRole.String(), change.ChangedAt, change.AccountID, change.OldRole.String()))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRoleConflict
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, audit,
			change.ID,
			change.AccountID,
			change.OldRole.String(),
			change.NewRole.String(),
			change.Actor,
			change.Reason,
			change.ChangedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) ListRoleChanges(ctx context.Context, accountID string) ([]domain.RoleChange, error) {
	const query = `
        SELECT rc.id, rc.account_id, a.username, a.email, rc.old_role, rc.new_role, rc.actor, rc.reason, rc.changed_at
        FROM role_changes rc JOIN accounts a ON a.id = rc.account_id
        WHERE rc.account_id=$1
        ORDER BY rc.changed_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.RoleChange
	for rows.Next() {
		var (
			change           domain.RoleChange
			oldRole, newRole string
		)
		if err := rows.Scan(
			&change.ID,
			&change.AccountID,
			&change.Username,
			&change.Email,
			&oldRole,
			&newRole,
			&change.Actor,
			&change.Reason,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		if change.OldRole, err = domain.ParseRole(oldRole); err != nil {
			return nil, err
		}
		if change.NewRole, err = domain.ParseRole(newRole); err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func (r *accountRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return account, err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account                  domain.Account
		role                     string
		verValue, resetValue     *string
		verExpires, resetExpires *time.Time
	)
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&role,
		&account.EmailVerified,
		&verValue,
		&verExpires,
		&resetValue,
		&resetExpires,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	account.Role = parsed
	account.Verification = tokenFromColumns(verValue, verExpires)
	account.Reset = tokenFromColumns(resetValue, resetExpires)
	return &account, nil
}

func tokenColumns(token *domain.CredentialToken) (*string, *time.Time) {
	if token == nil {
		return nil, nil
	}
	value, expires := token.Value, token.ExpiresAt
	return &value, &expires
}

func tokenFromColumns(value *string, expires *time.Time) *domain.CredentialToken {
	if value == nil || expires == nil {
		return nil
	}
	return &domain.CredentialToken{Value: *value, ExpiresAt: *expires}
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAccountExists
	}
	return err
}
