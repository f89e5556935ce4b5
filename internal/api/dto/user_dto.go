package dto

import "time"

// CreateUserRequest payload for POST /users.
type CreateUserRequest struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt"`
}

// UserResponse is the stored user projection.
type UserResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	TrustScore int       `json:"trustScore"`
	Badges     []string  `json:"badges"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
