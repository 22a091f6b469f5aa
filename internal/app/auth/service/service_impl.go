package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/adapters/transport/http/dto"
	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	"github.com/accounthub/auth-service/internal/domain/auth/jwt"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/domain/auth/repo"
	"github.com/accounthub/auth-service/internal/infra/config"
)

var argonParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// confirmationMessage is returned for every forgot-password call, known
// account or not, so the endpoint leaks nothing about registered emails.
const confirmationMessage = "if the account exists, reset instructions have been sent"

const passwordChangedMessage = "password changed"

type Service interface {
	Authenticate(ctx context.Context, dto dto.SignInDTO) (model.TokenPair, error)
	Refresh(ctx context.Context, dto dto.RefreshDTO) (model.TokenPair, error)
	Logout(ctx context.Context, dto dto.LogoutDTO) error
	Validate(ctx context.Context, dto dto.ValidateDTO) (model.User, error)
	ForgotPassword(ctx context.Context, dto dto.ForgotPasswordDTO) (string, error)
	ResetPassword(ctx context.Context, dto dto.ResetPasswordDTO) (string, error)
	ChangePassword(ctx context.Context, dto dto.ChangePasswordDTO) (string, error)
}

type authService struct {
	userRepo   repo.UserRepo
	tokenRepo  repo.TokenRepo
	secretRepo repo.SecretRepo
	notifier   repo.Notifier
	jwtUtil    jwt.JWTUtil
	cfg        *config.Config
	v          *validator.Validate
	log        *zap.Logger
}

func New(
	ur repo.UserRepo,
	tr repo.TokenRepo,
	sr repo.SecretRepo,
	n repo.Notifier,
	jm jwt.JWTUtil,
	cfg *config.Config,
	v *validator.Validate,
	log *zap.Logger,
) Service {
	return &authService{
		userRepo: ur, tokenRepo: tr, secretRepo: sr, notifier: n,
		jwtUtil: jm, cfg: cfg, v: v, log: log,
	}
}

// sessionKeyFor derives the registry key for a login triple. The same
// (platform, device) pair always yields the same key, so re-login replaces
// the previous session instead of piling up tokens.
func sessionKeyFor(platform model.Platform, deviceToken string) string {
	sum := sha256.Sum256([]byte(string(platform) + "|" + deviceToken))
	return hex.EncodeToString(sum[:16])
}

func (a *authService) Authenticate(ctx context.Context, d dto.SignInDTO) (model.TokenPair, error) {
	if err := a.v.Struct(d); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByUsername(ctx, d.Username)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		// same error as a password mismatch, no username enumeration
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Authenticate")
	}

	ok, err := argon2id.ComparePasswordAndHash(d.Password+a.cfg.PasswordPepper, user.PasswordHash)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Authenticate")
	}
	if !ok {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	if user.Status != model.StatusActive {
		return model.TokenPair{}, customErrors.ErrAccountDisabled
	}

	platform := model.Platform(d.Platform)
	sessionKey := sessionKeyFor(platform, d.DeviceToken)

	at, atExp, atJTI, err := a.jwtUtil.GenerateAccessToken(user.ID, rolesFor(user))
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, jti, err := a.jwtUtil.GenerateRefreshToken(user.ID, sessionKey, platform)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	err = a.tokenRepo.Register(ctx, user.ID, sessionKey, model.SessionTokens{
		RefreshJTI:       jti,
		AccessJTI:        atJTI,
		RefreshExpiresAt: rtExp,
		AccessExpiresAt:  atExp,
	})
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "RegisterSession")
	}

	now := time.Now()

	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserID:          user.ID,
		RefreshTokenJTI: jti,
		SessionKey:      sessionKey,
	}, nil
}

// Refresh mints a new access token; the presented refresh token stays
// registered and usable until logout or rotation.
func (a *authService) Refresh(ctx context.Context, d dto.RefreshDTO) (model.TokenPair, error) {
	if err := a.v.Struct(d); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(d.RefreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrTokenInvalid
	}

	active, err := a.tokenRepo.IsActive(ctx, uid, claims.SessionKey, claims.ID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}
	if !active {
		return model.TokenPair{}, customErrors.ErrTokenRevoked
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrTokenInvalid
	}
	if user.Status != model.StatusActive {
		return model.TokenPair{}, customErrors.ErrAccountDisabled
	}

	at, atExp, atJTI, err := a.jwtUtil.GenerateAccessToken(user.ID, rolesFor(user))
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}

	// track the fresh access token on the session so a later revoke can
	// denylist it too
	err = a.tokenRepo.Register(ctx, user.ID, claims.SessionKey, model.SessionTokens{
		RefreshJTI:       claims.ID,
		AccessJTI:        atJTI,
		RefreshExpiresAt: claims.ExpiresAt.Time,
		AccessExpiresAt:  atExp,
	})
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "RegisterSession")
	}

	return model.TokenPair{
		AccessToken: at,
		AccessTTL:   time.Until(atExp),
		UserID:      user.ID,
		SessionKey:  claims.SessionKey,
	}, nil
}

// Logout is idempotent: a token whose session is already gone logs out
// without error.
func (a *authService) Logout(ctx context.Context, d dto.LogoutDTO) error {
	if err := a.v.Struct(d); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(d.RefreshToken)
	switch {
	case errors.Is(err, customErrors.ErrTokenExpired):
		// the registry entry never outlives the token, nothing to revoke
		return nil
	case err != nil:
		return err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return customErrors.ErrTokenInvalid
	}

	if err := a.tokenRepo.Revoke(ctx, uid, claims.SessionKey); err != nil {
		return customErrors.WrapInternal(err, "Logout")
	}

	return nil
}

func (a *authService) Validate(ctx context.Context, d dto.ValidateDTO) (model.User, error) {
	if err := a.v.Struct(d); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateAccessToken(d.AccessToken)
	if err != nil {
		return model.User{}, err
	}

	revoked, err := a.tokenRepo.IsAccessRevoked(ctx, claims.ID)
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Validate")
	}
	if revoked {
		return model.User{}, customErrors.ErrTokenRevoked
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.User{}, customErrors.ErrTokenInvalid
	}
	user, err := a.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		return model.User{}, customErrors.ErrTokenInvalid
	}
	return user, nil
}

func (a *authService) ForgotPassword(ctx context.Context, d dto.ForgotPasswordDTO) (string, error) {
	if err := a.v.Struct(d); err != nil {
		return "", customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByEmail(ctx, d.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		// identical response for unknown emails
		return confirmationMessage, nil
	case err != nil:
		return "", customErrors.WrapInternal(err, "ForgotPassword")
	}

	secret, err := a.secretRepo.Issue(ctx, user.ID, a.cfg.ResetSecretTTL)
	if err != nil {
		return "", customErrors.WrapInternal(err, "IssueResetSecret")
	}

	// delivery is best-effort: the secret stays issued even when dispatch
	// fails, and the caller never waits longer than the notifier timeout
	nctx, cancel := context.WithTimeout(ctx, a.cfg.NotifierTimeout)
	defer cancel()
	if err := a.notifier.SendResetSecret(nctx, user.Email, secret); err != nil {
		a.log.Warn("reset secret dispatch failed", zap.Error(err))
	}

	return confirmationMessage, nil
}

func (a *authService) ResetPassword(ctx context.Context, d dto.ResetPasswordDTO) (string, error) {
	if err := a.v.Struct(d); err != nil {
		return "", customErrors.NewInvalidArgument(err.Error())
	}

	uid, err := a.secretRepo.Consume(ctx, d.SecretKey)
	if err != nil {
		return "", err
	}

	confirmation, err := a.jwtUtil.GenerateResetConfirmation(uid)
	if err != nil {
		return "", customErrors.WrapInternal(err, "ResetPassword")
	}
	return confirmation, nil
}

func (a *authService) ChangePassword(ctx context.Context, d dto.ChangePasswordDTO) (string, error) {
	if err := a.v.Struct(d); err != nil {
		return "", customErrors.NewInvalidArgument(err.Error())
	}
	if err := a.v.Var(d.NewPassword, "strongpwd"); err != nil {
		return "", customErrors.ErrPasswordPolicy
	}

	uid, err := a.authorizePasswordChange(ctx, d)
	if err != nil {
		return "", err
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		return "", customErrors.ErrUnauthorized
	}

	hash, err := argon2id.CreateHash(d.NewPassword+a.cfg.PasswordPepper, argonParams)
	if err != nil {
		return "", customErrors.WrapInternal(err, "ChangePassword")
	}
	user.PasswordHash = hash
	if err := a.userRepo.UpdateUser(ctx, user); err != nil {
		return "", customErrors.WrapInternal(err, "ChangePassword")
	}

	// force re-login everywhere
	if err := a.tokenRepo.RevokeAll(ctx, user.ID); err != nil {
		return "", customErrors.WrapInternal(err, "RevokeAll")
	}

	return passwordChangedMessage, nil
}

func (a *authService) authorizePasswordChange(ctx context.Context, d dto.ChangePasswordDTO) (uuid.UUID, error) {
	if d.Confirmation != "" {
		claims, err := a.jwtUtil.ValidateResetConfirmation(d.Confirmation)
		if err != nil {
			return uuid.Nil, customErrors.ErrUnauthorized
		}
		uid, err := uuid.Parse(claims.Subject)
		if err != nil {
			return uuid.Nil, customErrors.ErrUnauthorized
		}
		return uid, nil
	}

	if d.UserID == "" || d.OldPassword == "" {
		return uuid.Nil, customErrors.ErrUnauthorized
	}
	uid, err := uuid.Parse(d.UserID)
	if err != nil {
		return uuid.Nil, customErrors.ErrUnauthorized
	}
	user, err := a.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		return uuid.Nil, customErrors.ErrUnauthorized
	}
	ok, err := argon2id.ComparePasswordAndHash(d.OldPassword+a.cfg.PasswordPepper, user.PasswordHash)
	if err != nil || !ok {
		return uuid.Nil, customErrors.ErrUnauthorized
	}
	return uid, nil
}

func rolesFor(user model.User) []string {
	return []string{strings.ToLower(string(user.Type))}
}
