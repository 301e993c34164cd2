package domain

import "time"

// User represents a platform account.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     []byte    `json:"-"`
	Admin            bool      `json:"admin"`
	DigestOptIn      bool      `json:"digest_opt_in"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
