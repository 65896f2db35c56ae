package dto

type RegisterRequest struct {
	Login           string `json:"login"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthMeResponse struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type AuthResponse struct {
	Me           AuthMeResponse `json:"me"`
	ExpiresInSec int64          `json:"expires_in_sec"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}
