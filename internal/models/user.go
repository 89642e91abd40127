package models

// User is the authenticated account as returned by GET /api/auth/me.
type User struct {
	ID       ID     `json:"id" msgpack:"id"`
	Username string `json:"username" msgpack:"username"`
	Email    string `json:"email" msgpack:"email"`
	Verified bool   `json:"is_verified" msgpack:"verified"`
}

// Credentials carries a login or registration request.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// PasswordReset carries the reset-password request.
type PasswordReset struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
