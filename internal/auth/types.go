package auth

import (
	"context"
	"errors"
	"time"

	"github.com/5w1tchy/library-api/internal/api/middlewares"
)

const (
	RoleMember    = "member"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

var (
	ErrUserNotFound = errors.New("auth: user not found")
	ErrUserExists   = errors.New("auth: email or username already taken")
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest accepts the identifier under "login", "email" or "username".
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) identifier() string {
	for _, v := range []string{r.Login, r.Email, r.Username} {
		if v != "" {
			return v
		}
	}
	return ""
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	TokenVersion int       `db:"token_version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type NewUser struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
}

type UserStore interface {
	CreateUser(ctx context.Context, nu NewUser) (User, error)
	FindByLogin(ctx context.Context, login string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// ChangePassword stores hash and bumps the token version, returning the new version.
	ChangePassword(ctx context.Context, id, hash string) (int, error)
	BumpTokenVersion(ctx context.Context, id string) (int, error)
	SetRole(ctx context.Context, username, role string) (User, error)
	Principal(ctx context.Context, id string) (middlewares.Principal, error)
}
