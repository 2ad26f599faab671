// Package models defines the server-side persistence models.
package models

import "time"

// User is a registered identity. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"profilePic"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
}
