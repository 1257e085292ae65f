package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/domain/account"
)

// AccountsRepo keeps accounts in process memory. It enforces the same
// unique-email rule as the postgres table and is used by tests and local runs.
type AccountsRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]account.Account
	byEmail map[string]int64
}

func NewAccountsRepo() *AccountsRepo {
	return &AccountsRepo{
		nextID:  1,
		items:   make(map[int64]account.Account),
		byEmail: make(map[string]int64),
	}
}

func (r *AccountsRepo) Create(_ context.Context, a account.Account) (account.Account, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[a.Email]; taken {
		return account.Account{}, account.ErrEmailTaken
	}

	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	r.nextID++

	r.items[a.ID] = a
	r.byEmail[a.Email] = a.ID

	return a, nil
}

func (r *AccountsRepo) GetByID(_ context.Context, id int64) (account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (r *AccountsRepo) GetByEmail(_ context.Context, email string) (account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return r.items[id], nil
}

func (r *AccountsRepo) List(_ context.Context, limit, offset int) ([]account.Account, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]account.Account, 0, len(r.items))
	for _, a := range r.items {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := len(out)

	if offset >= total {
		return []account.Account{}, total, nil
	}

	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out, total, nil
}

func (r *AccountsRepo) Update(_ context.Context, id int64, p account.Patch) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	if p.Email != nil && *p.Email != a.Email {
		if _, taken := r.byEmail[*p.Email]; taken {
			return account.Account{}, account.ErrEmailTaken
		}
		delete(r.byEmail, a.Email)
		a.Email = *p.Email
		r.byEmail[a.Email] = a.ID
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.IsStaff != nil {
		a.IsStaff = *p.IsStaff
	}
	if p.IsSuperuser != nil {
		a.IsSuperuser = *p.IsSuperuser
	}

	a.UpdatedAt = time.Now().UTC()
	r.items[id] = a

	return a, nil
}

func (r *AccountsRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return account.ErrNotFound
	}

	a.LastLogin = &at
	r.items[id] = a
	return nil
}
