package domain

import "time"

// User is the durable account. PasswordHash never leaves the service layer.
type User struct {
	ID           UserID
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Username: u.Username}
}
