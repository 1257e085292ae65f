package account

import "time"

type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	IsActive     bool       `json:"is_active"`
	IsStaff      bool       `json:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Patch is a partial update. Nil fields are left untouched.
// PasswordHash must already be hashed when set.
type Patch struct {
	Email        *string
	Name         *string
	PasswordHash *string
	IsActive     *bool
	IsStaff      *bool
	IsSuperuser  *bool
}

func (p Patch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.PasswordHash == nil &&
		p.IsActive == nil && p.IsStaff == nil && p.IsSuperuser == nil
}

// Profile is the public shape of an account returned by the user endpoints.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a Account) Profile() Profile {
	return Profile{Email: a.Email, Name: a.Name}
}
