package entity

import "strconv"

// User is an authenticated account. Email is set for accounts created through Google login.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
}

// Identity is the string form of the user id used as player identity in sessions.
func (that *User) Identity() string {
	return strconv.FormatInt(that.ID, 10)
}
