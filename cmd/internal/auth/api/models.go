package authapi

import "time"

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutAllRequest struct {
	Reason string `json:"reason"`
}

type roleResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type profileResponse struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

type registerResponse struct {
	User        userResponse `json:"user"`
	Roles       []string     `json:"roles"`
	AccessToken string       `json:"access_token"`
}

type loginResponse struct {
	User         userResponse    `json:"user"`
	Profile      profileResponse `json:"profile"`
	Roles        []roleResponse  `json:"roles"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
}

type refreshResponse struct {
	AccessToken string   `json:"access_token"`
	Roles       []string `json:"roles"`
}

type meResponse struct {
	User    userResponse    `json:"user"`
	Profile profileResponse `json:"profile"`
	Roles   []roleResponse  `json:"roles"`
}

type statusResponse struct {
	Status string `json:"status"`
}
