package auth

// LoginRequest represents the sign-in form and the JSON login body.
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,max=128"`
	Next     string `json:"-" form:"next"`
}

// TokenResponse represents the bearer token returned after login.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
