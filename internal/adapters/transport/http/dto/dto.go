package dto

import "time"

type SignInDTO struct {
	Username    string `json:"username"     validate:"required,min=3,max=40"`
	Password    string `json:"password"     validate:"required"`
	Platform    string `json:"platform"     validate:"required,oneof=WEB ANDROID IOS"`
	DeviceToken string `json:"deviceToken"  validate:"required"`
	Version     string `json:"version"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ValidateDTO struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordDTO struct {
	SecretKey string `json:"secretKey" validate:"required"`
}

// ChangePasswordDTO authorizes either via the confirmation token returned by
// reset-password, or via the caller's own user id plus the old password.
type ChangePasswordDTO struct {
	Confirmation string `json:"confirmation"`
	UserID       string `json:"userId"`
	OldPassword  string `json:"oldPassword"`
	NewPassword  string `json:"newPassword" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId,omitempty"`
}

type UserRequestDTO struct {
	Username    string     `json:"username"    validate:"required,min=3,max=40"`
	Email       string     `json:"email"       validate:"required,email"`
	Password    string     `json:"password"    validate:"omitempty"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       string     `json:"phone"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      string     `json:"gender"`
	Status      string     `json:"status"      validate:"omitempty,oneof=ACTIVE LOCKED DISABLED"`
	Type        string     `json:"type"        validate:"omitempty,oneof=USER ADMIN OWNER"`
}

type UserDetailResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       string     `json:"phone"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender"`
	Status      string     `json:"status"`
	Type        string     `json:"type"`
}

type PageResponse struct {
	Page       int                  `json:"page"`
	Size       int                  `json:"size"`
	TotalPages int                  `json:"totalPages"`
	TotalItems int64                `json:"totalItems"`
	Items      []UserDetailResponse `json:"items"`
}
