package model

import "time"

// User is an account that owns documents and places ratings.
// Identity fields (username, email) are unique and immutable after creation.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Department   string    `json:"department,omitempty"`
	Group        string    `json:"group,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated actor issuing a request.
// Group is empty for users that belong to no group.
type Principal struct {
	ID    string
	Group string
}

// Principal derives the access-control identity from a user record.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Group: u.Group}
}
