// Package accounts owns account lifecycle: creation with normalized email
// and hashed password, credential checks, and profile/admin updates.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/cache"
	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
)

// unusablePassword never matches a bcrypt comparison.
const unusablePassword = "!"

type Repository interface {
	Create(ctx context.Context, a account.Account) (account.Account, error)
	GetByID(ctx context.Context, id int64) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	List(ctx context.Context, limit, offset int) ([]account.Account, int, error)
	Update(ctx context.Context, id int64, p account.Patch) (account.Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Extra carries optional fields for CreateUser. IsActive nil means active.
type Extra struct {
	Name        string
	IsActive    *bool
	IsStaff     bool
	IsSuperuser bool
}

type ProfileUpdate struct {
	Name     *string
	Password *string
}

type AdminUpdate struct {
	Email       *string
	Name        *string
	Password    *string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

type Service struct {
	repo  Repository
	cache cache.Store
	prom  *observability.Prom
	now   func() time.Time

	dummyOnce sync.Once
	dummyHash string

	// bumped by invalidate; a read-through fill is dropped if its
	// generation moved while the row was being loaded
	genMu sync.Mutex
	gens  map[int64]uint64
}

// NewService wires the store. store and prom may be nil.
func NewService(repo Repository, store cache.Store, prom *observability.Prom) *Service {
	return &Service{
		repo:  repo,
		cache: store,
		prom:  prom,
		now:   func() time.Time { return time.Now().UTC() },
		gens:  make(map[int64]uint64),
	}
}

func (s *Service) CreateUser(ctx context.Context, email, password string, extra Extra) (account.Account, error) {
	email = account.NormalizeEmail(email)

	if email == "" {
		return account.Account{}, account.ErrEmailRequired
	}

	hash := unusablePassword

	if password != "" {
		h, err := security.HashPassword(password)
		if err != nil {
			return account.Account{}, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	active := true
	if extra.IsActive != nil {
		active = *extra.IsActive
	}

	return s.repo.Create(ctx, account.Account{
		Email:        email,
		Name:         extra.Name,
		PasswordHash: hash,
		IsActive:     active,
		IsStaff:      extra.IsStaff,
		IsSuperuser:  extra.IsSuperuser,
	})
}

func (s *Service) CreateSuperuser(ctx context.Context, email, password, name string) (account.Account, error) {
	return s.CreateUser(ctx, email, password, Extra{
		Name:        name,
		IsStaff:     true,
		IsSuperuser: true,
	})
}

// Login checks credentials and stamps last_login. Unknown email, wrong
// password and inactive account all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (account.Account, error) {
	a, err := s.repo.GetByEmail(ctx, account.NormalizeEmail(email))

	if errors.Is(err, account.ErrNotFound) {
		// keep the unknown-email path as slow as a real comparison
		_ = security.CheckPassword(s.dummy(), password)
		s.prom.IncAuth("login", "invalid")
		return account.Account{}, account.ErrInvalidCredentials
	}

	if err != nil {
		return account.Account{}, err
	}

	if err := security.CheckPassword(a.PasswordHash, password); err != nil {
		s.prom.IncAuth("login", "invalid")
		return account.Account{}, account.ErrInvalidCredentials
	}

	if !a.IsActive {
		s.prom.IncAuth("login", "inactive")
		return account.Account{}, account.ErrInvalidCredentials
	}

	at := s.now()

	if err := s.repo.TouchLastLogin(ctx, a.ID, at); err != nil {
		return account.Account{}, fmt.Errorf("record login: %w", err)
	}

	a.LastLogin = &at
	s.invalidate(ctx, a.ID)
	s.prom.IncAuth("login", "ok")

	return a, nil
}

// Get returns the account by id through the cache. The result never
// carries a password hash.
func (s *Service) Get(ctx context.Context, id int64) (account.Account, error) {
	if a, ok := s.cached(ctx, id); ok {
		return a, nil
	}

	gen := s.generation(id)
	a, err := s.repo.GetByID(ctx, id)

	if err != nil {
		return account.Account{}, err
	}

	a.PasswordHash = ""
	s.remember(ctx, a, gen)

	return a, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, u ProfileUpdate) (account.Account, error) {
	return s.AdminUpdate(ctx, id, AdminUpdate{Name: u.Name, Password: u.Password})
}

func (s *Service) AdminUpdate(ctx context.Context, id int64, u AdminUpdate) (account.Account, error) {
	var p account.Patch

	if u.Email != nil {
		email := account.NormalizeEmail(*u.Email)
		if email == "" {
			return account.Account{}, account.ErrEmailRequired
		}
		p.Email = &email
	}

	if u.Password != nil {
		hash, err := security.HashPassword(*u.Password)
		if err != nil {
			return account.Account{}, fmt.Errorf("hash password: %w", err)
		}
		p.PasswordHash = &hash
	}

	p.Name = u.Name
	p.IsActive = u.IsActive
	p.IsStaff = u.IsStaff
	p.IsSuperuser = u.IsSuperuser

	a, err := s.repo.Update(ctx, id, p)

	if err != nil {
		return account.Account{}, err
	}

	s.invalidate(ctx, id)
	a.PasswordHash = ""

	return a, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]account.Account, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)

	if err != nil {
		return nil, 0, err
	}

	for i := range items {
		items[i].PasswordHash = ""
	}

	return items, total, nil
}

// VerifyPassword reports whether password matches the stored hash for id.
func (s *Service) VerifyPassword(ctx context.Context, id int64, password string) (bool, error) {
	a, err := s.repo.GetByID(ctx, id)

	if err != nil {
		return false, err
	}

	return security.CheckPassword(a.PasswordHash, password) == nil, nil
}

// cache helpers

func cacheKey(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}

func (s *Service) cached(ctx context.Context, id int64) (account.Account, bool) {
	if s.cache == nil {
		return account.Account{}, false
	}

	raw, ok, err := s.cache.Get(ctx, cacheKey(id))

	if err != nil {
		s.prom.IncCache("error")
		slog.Default().WarnContext(ctx, "account cache get failed", "account_id", id, "err", err)
		return account.Account{}, false
	}

	if !ok {
		s.prom.IncCache("miss")
		return account.Account{}, false
	}

	var a account.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		s.prom.IncCache("error")
		return account.Account{}, false
	}

	s.prom.IncCache("hit")
	return a, true
}

func (s *Service) generation(id int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[id]
}

func (s *Service) remember(ctx context.Context, a account.Account, gen uint64) {
	if s.cache == nil {
		return
	}

	if s.generation(a.ID) != gen {
		return
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, cacheKey(a.ID), raw); err != nil {
		slog.Default().WarnContext(ctx, "account cache set failed", "account_id", a.ID, "err", err)
		return
	}

	// an invalidate that landed between the check and the Set may have
	// deleted before we wrote
	if s.generation(a.ID) != gen {
		_ = s.cache.Delete(ctx, cacheKey(a.ID))
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}

	s.genMu.Lock()
	s.gens[id]++
	s.genMu.Unlock()

	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		slog.Default().WarnContext(ctx, "account cache delete failed", "account_id", id, "err", err)
	}
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := security.HashPassword(strings.Repeat("x", 16))
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
