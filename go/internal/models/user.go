package models

// User is an authenticated caller.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
