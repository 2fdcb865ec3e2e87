package entity

type UserRole string

const (
	RoleStandard UserRole = "standard"
	RoleAdmin    UserRole = "admin"
)

// User is an identity record. PasswordHash is nil for accounts created
// through federated sign-in only.
type User struct {
	Base
	Username         string   `db:"username"`
	Email            string   `db:"email"`
	PasswordHash     *string  `db:"password"`
	Role             UserRole `db:"role"`
	TwoFactorEnabled bool     `db:"two_factor_enabled"`
	TwoFactorSecret  *string  `db:"two_factor_secret"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserPatch lists the freely mutable identity fields. Nil fields are left
// untouched. Two-factor state only changes through EnableTwoFactor.
type UserPatch struct {
	PasswordHash *string
}
