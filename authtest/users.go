package authtest

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// User is a seeded account.
type User struct {
	ID        int64
	Username  string
	Password  string
	Role      string
	Email     string
	FirstName string
	LastName  string
}

// DefaultUsers are seeded when Options.Users is empty: one account per role.
func DefaultUsers() []User {
	return []User{
		{ID: 1, Username: "alice", Password: "alice-password", Role: "MEMBER", Email: "alice@example.com", FirstName: "Alice", LastName: "Member"},
		{ID: 2, Username: "morgan", Password: "morgan-password", Role: "MODERATOR", Email: "morgan@example.com", FirstName: "Morgan", LastName: "Moderator"},
		{ID: 3, Username: "ada", Password: "ada-password", Role: "ADMIN", Email: "ada@example.com", FirstName: "Ada", LastName: "Admin"},
	}
}

type account struct {
	User
	hash passwordHash
}

// profile is the backend's user representation.
type profile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Role            string `json:"role"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	FreedomScore    int    `json:"freedomScore"`
	SecurityScore   int    `json:"securityScore"`
	ReputationScore int    `json:"reputationScore"`
	IsActive        bool   `json:"isActive"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

func (a *account) profile() profile {
	return profile{
		ID:              a.ID,
		Username:        a.Username,
		Role:            a.Role,
		Email:           a.Email,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		FreedomScore:    50,
		SecurityScore:   50,
		ReputationScore: 0,
		IsActive:        true,
		CreatedAt:       "2024-01-01T00:00:00",
	}
}

type registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// validate mirrors the backend's bean validation messages.
func (r registration) validate() map[string]string {
	errs := make(map[string]string)
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Username)); n < 3 || n > 50 {
		errs["username"] = "Username must be between 3 and 50 characters"
	}
	if strings.TrimSpace(r.Email) == "" {
		errs["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errs["email"] = "Email must be valid"
	}
	if n := utf8.RuneCountInString(r.Password); n < 8 || n > 255 {
		errs["password"] = "Password must be between 8 and 255 characters"
	}
	if strings.TrimSpace(r.FirstName) == "" {
		errs["firstName"] = "First name is required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		errs["lastName"] = "Last name is required"
	}
	return errs
}
