package models

import "time"

type User struct {
	ID         string    `json:"id" db:"id" example:"3f1c2b9e-8d4a-4c47-9a57-2f7d0c1e5b11"` // Internal user ID
	ExternalID int64     `json:"externalId" db:"external_id" example:"123456789"`           // Chat platform user ID
	Username   *string   `json:"username,omitempty" db:"username" example:"jdoe"`
	FirstName  string    `json:"firstName" db:"first_name" example:"John"`
	LastName   *string   `json:"lastName,omitempty" db:"last_name" example:"Doe"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// DisplayName prefers the @username and falls back to the first name.
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return u.FirstName
}
