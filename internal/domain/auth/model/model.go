package model

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusLocked   UserStatus = "LOCKED"
	StatusDisabled UserStatus = "DISABLED"
)

type UserType string

const (
	TypeUser  UserType = "USER"
	TypeAdmin UserType = "ADMIN"
	TypeOwner UserType = "OWNER"
)

type Platform string

const (
	PlatformWeb     Platform = "WEB"
	PlatformAndroid Platform = "ANDROID"
	PlatformIOS     Platform = "IOS"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	FirstName    string
	LastName     string
	Phone        string
	DateOfBirth  *time.Time
	Gender       string
	Status       UserStatus `gorm:"not null;default:ACTIVE"`
	Type         UserType   `gorm:"not null;default:USER"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session identifies one logical login: the same (user, platform, device)
// triple always maps to the same session key, so a new login replaces the
// previous refresh token registered for that device.
type Session struct {
	UserID      uuid.UUID
	Platform    Platform
	DeviceToken string
}

// SessionTokens is the per-session registry record: the active refresh
// token plus the most recently minted access token, kept so revoking the
// session can also denylist the access token still in flight.
type SessionTokens struct {
	RefreshJTI       string
	AccessJTI        string
	RefreshExpiresAt time.Time
	AccessExpiresAt  time.Time
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserID          uuid.UUID
	RefreshTokenJTI string
	SessionKey      string
}

type Page[T any] struct {
	Items      []T
	PageNo     int
	PageSize   int
	TotalPages int
	TotalItems int64
}
