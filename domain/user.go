// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	// Token is the last session token issued at login. The core never
	// reads it; it is persisted so a client can be recognized across
	// restarts of the frontend.
	Token     string
	CreatedAt time.Time
}

// Profile is the public identity embedded in delivered message payloads,
// so a receiver sees who sent a message without a second round trip.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, FullName: u.FullName, Email: u.Email}
}
