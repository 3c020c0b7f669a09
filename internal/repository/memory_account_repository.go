package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/blog-service/internal/domain"
)

type memoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	changes  []domain.RoleChange
}

// NewMemoryAccountRepository returns an in-process store used when no
// database is configured and in tests. A single mutex serializes every
// read-modify-write, which gives the same single-record atomicity as the
// conditional UPDATEs of the Postgres store.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.ID == account.ID ||
			existing.Username == account.Username ||
			strings.EqualFold(existing.Email, account.Email) {
			return domain.ErrAccountExists
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *memoryAccountRepository) Save(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	for id, existing := range r.accounts {
		if id != account.ID && (existing.Username == account.Username || strings.EqualFold(existing.Email, account.Email)) {
			return domain.ErrAccountExists
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *memoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, id)
	kept := r.changes[:0]
	for _, change := range r.changes {
		if change.AccountID != id {
			kept = append(kept, change)
		}
	}
	r.changes = kept
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		return cloneAccount(account), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memoryAccountRepository) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Username == username })
}

func (r *memoryAccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *memoryAccountRepository) FindByVerificationToken(_ context.Context, token string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Verification != nil && a.Verification.Value == token })
}

func (r *memoryAccountRepository) FindByResetToken(_ context.Context, token string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Reset != nil && a.Reset.Value == token })
}

func (r *memoryAccountRepository) List(_ context.Context, filter AccountFilter) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		if filter.Role != nil && account.Role != *filter.Role {
			continue
		}
		if filter.Verified != nil && account.EmailVerified != *filter.Verified {
			continue
		}
		accounts = append(accounts, *cloneAccount(account))
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Username < accounts[j].Username
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(accounts) {
			return []domain.Account{}, nil
		}
		accounts = accounts[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(accounts) {
		accounts = accounts[:filter.Limit]
	}
	return accounts, nil
}

func (r *memoryAccountRepository) SetCredentialToken(_ context.Context, accountID string, kind domain.TokenKind, token domain.CredentialToken, at time.Time) error {
	if kind != domain.TokenKindVerification && kind != domain.TokenKindReset {
		return fmt.Errorf("unknown token kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.SetToken(kind, &token)
	account.UpdatedAt = at
	return nil
}

func (r *memoryAccountRepository) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (*domain.Account, error) {
	return r.consume(domain.TokenKindVerification, token, now, func(a *domain.Account) {
		a.EmailVerified = true
	})
}

func (r *memoryAccountRepository) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) (*domain.Account, error) {
	return r.consume(domain.TokenKindReset, token, now, func(a *domain.Account) {
		a.PasswordHash = passwordHash
	})
}

func (r *memoryAccountRepository) UpdatePassword(_ context.Context, accountID, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	account.Reset = nil
	account.UpdatedAt = at
	return nil
}

func (r *memoryAccountRepository) ChangeRole(_ context.Context, change domain.RoleChange) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[change.AccountID]
	if !ok || account.Role != change.OldRole {
		return nil, domain.ErrRoleConflict
	}
	account.Role = change.NewRole
	account.UpdatedAt = change.ChangedAt

	change.Username = account.Username
	change.Email = account.Email
	r.changes = append(r.changes, change)
	return cloneAccount(account), nil
}

func (r *memoryAccountRepository) ListRoleChanges(_ context.Context, accountID string) ([]domain.RoleChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []domain.RoleChange
	for i := len(r.changes) - 1; i >= 0; i-- {
		if r.changes[i].AccountID == accountID {
			changes = append(changes, r.changes[i])
		}
	}
	return changes, nil
}

func (r *memoryAccountRepository) consume(kind domain.TokenKind, value string, now time.Time, apply func(*domain.Account)) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		token := account.Token(kind)
		if token == nil || token.Value != value {
			continue
		}
		if token.Expired(now) {
			return nil, domain.ErrTokenNotFound
		}
		apply(account)
		account.SetToken(kind, nil)
		account.UpdatedAt = now
		return cloneAccount(account), nil
	}
	return nil, domain.ErrTokenNotFound
}

func (r *memoryAccountRepository) find(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if match(account) {
			return cloneAccount(account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.Verification != nil {
		v := *a.Verification
		c.Verification = &v
	}
	if a.Reset != nil {
		v := *a.Reset
		c.Reset = &v
	}
	return &c
}
