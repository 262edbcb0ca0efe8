package domain

import "time"

type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string     // argon2id encoded (PHC format)
	Role            Role
	OrganizationID  *string    // primary organization (nullable)
	Active          bool
	LastLoginAt     *time.Time // nullable, set on successful login
	EmailVerifiedAt *time.Time // nullable
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
