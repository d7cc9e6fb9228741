package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. Donor records and messages refer to users
// by ID only.
type User struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"_id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	Email        string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"type:text;not null" json:"-"`
	Roles        pq.StringArray `gorm:"type:text[]" json:"roles"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// BeforeCreate generates a new UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// HasRole reports whether the user was granted role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// PrimaryRole is the role embedded in issued tokens.
func (u *User) PrimaryRole() string {
	if u.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Profile returns the public view of the user.
func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserProfile is what other users may see about an account.
type UserProfile struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
