package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/adapters/transport/http/dto"
	appjwt "github.com/accounthub/auth-service/internal/app/auth/jwt"
	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	"github.com/accounthub/auth-service/internal/domain/auth/jwt"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/domain/auth/sort"
	"github.com/accounthub/auth-service/internal/infra/config"
	"github.com/accounthub/auth-service/internal/infra/validate"
)

type userRepoStub struct{ users map[uuid.UUID]model.User }

func (u *userRepoStub) CreateUser(ctx context.Context, m model.User) (uuid.UUID, error) {
	u.users[m.ID] = m
	return m.ID, nil
}

func (u *userRepoStub) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	for _, v := range u.users {
		if v.Email == email {
			return v, nil
		}
	}
	return model.User{}, customErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	for _, v := range u.users {
		if v.Username == username {
			return v, nil
		}
	}
	return model.User{}, customErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	v, ok := u.users[id]
	if !ok {
		return model.User{}, customErrors.ErrNotFound
	}
	return v, nil
}

func (u *userRepoStub) UpdateUser(ctx context.Context, m model.User) error {
	u.users[m.ID] = m
	return nil
}

func (u *userRepoStub) DeleteUser(ctx context.Context, id uuid.UUID) error {
	delete(u.users, id)
	return nil
}

func (u *userRepoStub) ListUsers(ctx context.Context, pageNo, pageSize int, orders []sort.Directive) (model.Page[model.User], error) {
	return model.Page[model.User]{}, nil
}

type tokenRepoStub struct {
	sessions map[string]model.SessionTokens // "uid:sessionKey"
	denied   map[string]bool
}

func newTokenRepoStub() *tokenRepoStub {
	return &tokenRepoStub{
		sessions: make(map[string]model.SessionTokens),
		denied:   make(map[string]bool),
	}
}

func sessKey(uid uuid.UUID, sessionKey string) string { return uid.String() + ":" + sessionKey }

func (t *tokenRepoStub) Register(ctx context.Context, userID uuid.UUID, sessionKey string, tokens model.SessionTokens) error {
	t.sessions[sessKey(userID, sessionKey)] = tokens
	return nil
}

func (t *tokenRepoStub) IsActive(ctx context.Context, userID uuid.UUID, sessionKey, jti string) (bool, error) {
	return t.sessions[sessKey(userID, sessionKey)].RefreshJTI == jti, nil
}

func (t *tokenRepoStub) Revoke(ctx context.Context, userID uuid.UUID, sessionKey string) error {
	k := sessKey(userID, sessionKey)
	if tokens, ok := t.sessions[k]; ok && tokens.AccessJTI != "" {
		t.denied[tokens.AccessJTI] = true
	}
	delete(t.sessions, k)
	return nil
}

func (t *tokenRepoStub) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	for k, tokens := range t.sessions {
		if len(k) > 36 && k[:36] == userID.String() {
			if tokens.AccessJTI != "" {
				t.denied[tokens.AccessJTI] = true
			}
			delete(t.sessions, k)
		}
	}
	return nil
}

func (t *tokenRepoStub) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	return t.denied[jti], nil
}

type secretRepoStub struct {
	secrets map[string]uuid.UUID
	used    map[string]bool
	next    int
}

func newSecretRepoStub() *secretRepoStub {
	return &secretRepoStub{secrets: make(map[string]uuid.UUID), used: make(map[string]bool)}
}

func (s *secretRepoStub) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	s.next++
	key := fmt.Sprintf("secret-%d", s.next)
	s.secrets[key] = userID
	return key, nil
}

func (s *secretRepoStub) Consume(ctx context.Context, secretKey string) (uuid.UUID, error) {
	if s.used[secretKey] {
		return uuid.Nil, customErrors.ErrSecretAlreadyUsed
	}
	uid, ok := s.secrets[secretKey]
	if !ok {
		return uuid.Nil, customErrors.ErrSecretInvalid
	}
	delete(s.secrets, secretKey)
	s.used[secretKey] = true
	return uid, nil
}

type notifierStub struct {
	sent []string
	fail bool
}

func (n *notifierStub) SendResetSecret(ctx context.Context, email, secretKey string) error {
	if n.fail {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, email+"/"+secretKey)
	return nil
}

func writeTestKeys(t *testing.T) (privPath, pubPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPem := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDer})

	dir := t.TempDir()
	privPath = filepath.Join(dir, "priv.pem")
	pubPath = filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(privPath, privPem, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPem, 0o600))
	return privPath, pubPath
}

type fixture struct {
	svc      Service
	users    *userRepoStub
	tokens   *tokenRepoStub
	secrets  *secretRepoStub
	notifier *notifierStub
	jwtUtil  jwt.JWTUtil
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	priv, pub := writeTestKeys(t)
	cfg := &config.Config{
		JWTPrivateKeyPath: priv,
		JWTPublicKeyPath:  pub,
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
		TokenLeeway:       time.Second,
		Issuer:            "test",
		Audience:          "test",
		PasswordPepper:    "pepper",
		ResetSecretTTL:    15 * time.Minute,
		NotifierTimeout:   time.Second,
	}
	util, err := appjwt.NewJWTUtil(cfg)
	require.NoError(t, err)

	f := &fixture{
		users:    &userRepoStub{users: make(map[uuid.UUID]model.User)},
		tokens:   newTokenRepoStub(),
		secrets:  newSecretRepoStub(),
		notifier: &notifierStub{},
		jwtUtil:  util,
		cfg:      cfg,
	}
	f.svc = New(f.users, f.tokens, f.secrets, f.notifier, util, cfg, validate.New(), zap.NewNop())
	return f
}

func (f *fixture) addUser(t *testing.T, username, email, password string, status model.UserStatus) model.User {
	t.Helper()
	hash, err := argon2id.CreateHash(password+f.cfg.PasswordPepper, argonParams)
	require.NoError(t, err)
	u := model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Status:       status,
		Type:         model.TypeUser,
	}
	f.users.users[u.ID] = u
	return u
}

func signIn(username, password string) dto.SignInDTO {
	return dto.SignInDTO{
		Username:    username,
		Password:    password,
		Platform:    "WEB",
		DeviceToken: "device-1",
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)

	pair, err := f.svc.Authenticate(context.Background(), signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, u.ID, pair.UserID)

	active, err := f.tokens.IsActive(context.Background(), u.ID, pair.SessionKey, pair.RefreshTokenJTI)
	require.NoError(t, err)
	require.True(t, active)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)

	_, err := f.svc.Authenticate(context.Background(), signIn("alice", "wrong-pass"))
	require.True(t, customErrors.IsInvalidCredentials(err))

	// unknown username reports the same failure
	_, err = f.svc.Authenticate(context.Background(), signIn("nobody", "Aa1aaaaa"))
	require.True(t, customErrors.IsInvalidCredentials(err))
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "bob", "bob@example.com", "Aa1aaaaa", model.StatusDisabled)

	_, err := f.svc.Authenticate(context.Background(), signIn("bob", "Aa1aaaaa"))
	require.True(t, customErrors.IsAccountDisabled(err))
}

func TestAuthenticate_SameDeviceReplacesSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	first, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)
	second, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)
	require.Equal(t, first.SessionKey, second.SessionKey)

	// the superseded refresh token no longer refreshes
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: first.RefreshToken})
	require.True(t, customErrors.IsTokenRevoked(err))

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Empty(t, refreshed.RefreshToken)

	// the refresh token survives and can be used again
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
}

func TestRefresh_InvalidToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: "garbage"})
	require.True(t, customErrors.IsTokenInvalid(err))
}

func TestLogoutThenRefresh(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, dto.LogoutDTO{RefreshToken: pair.RefreshToken}))

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, customErrors.IsTokenRevoked(err))

	// logging out again is a no-op
	require.NoError(t, f.svc.Logout(ctx, dto.LogoutDTO{RefreshToken: pair.RefreshToken}))
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	got, err := f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: "garbage"})
	require.True(t, customErrors.IsTokenInvalid(err))
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	// logging out kills the outstanding access token too, not just the session
	require.NoError(t, f.svc.Logout(ctx, dto.LogoutDTO{RefreshToken: pair.RefreshToken}))

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.True(t, customErrors.IsTokenRevoked(err))
}

func TestChangePassword_RevokesAccessTokens(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	_, err = f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		UserID:      u.ID.String(),
		OldPassword: "Aa1aaaaa",
		NewPassword: "Bb2bbbbb",
	})
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.True(t, customErrors.IsTokenRevoked(err))
}

func TestValidate_RejectsNonAccessTokens(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	pair, err := f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.NoError(t, err)

	// a refresh token must not introspect as an access token
	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.RefreshToken})
	require.True(t, customErrors.IsTokenInvalid(err))

	// nor must a reset confirmation, which only proves mailbox access
	_, err = f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "alice@example.com"})
	require.NoError(t, err)
	secret := fmt.Sprintf("secret-%d", f.secrets.next)
	confirmation, err := f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{SecretKey: secret})
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, dto.ValidateDTO{AccessToken: confirmation})
	require.True(t, customErrors.IsTokenInvalid(err))
}

func TestForgotPassword(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	known, err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "alice@example.com"})
	require.NoError(t, err)
	unknown, err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "nobody@example.com"})
	require.NoError(t, err)

	// known and unknown accounts get the same confirmation
	require.Equal(t, known, unknown)

	// but only the known one produced a secret and a dispatch
	require.Len(t, f.notifier.sent, 1)
	require.Len(t, f.secrets.secrets, 1)
}

func TestForgotPassword_NotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	f.notifier.fail = true

	msg, err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordDTO{Email: "alice@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, msg)
	require.Len(t, f.secrets.secrets, 1)
}

func TestResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	// a session on another device that the password change must kill
	other := signIn("alice", "Aa1aaaaa")
	other.DeviceToken = "device-2"
	otherPair, err := f.svc.Authenticate(ctx, other)
	require.NoError(t, err)

	_, err = f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "alice@example.com"})
	require.NoError(t, err)
	secret := fmt.Sprintf("secret-%d", f.secrets.next)

	confirmation, err := f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{SecretKey: secret})
	require.NoError(t, err)
	require.NotEmpty(t, confirmation)

	claims, err := f.jwtUtil.ValidateResetConfirmation(confirmation)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.Subject)

	// the secret is single use
	_, err = f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{SecretKey: secret})
	require.True(t, customErrors.IsSecretAlreadyUsed(err))

	_, err = f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		Confirmation: confirmation,
		NewPassword:  "Bb2bbbbb",
	})
	require.NoError(t, err)

	// every session is gone
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: otherPair.RefreshToken})
	require.True(t, customErrors.IsTokenRevoked(err))

	// old password out, new password in
	_, err = f.svc.Authenticate(ctx, signIn("alice", "Aa1aaaaa"))
	require.True(t, customErrors.IsInvalidCredentials(err))
	_, err = f.svc.Authenticate(ctx, signIn("alice", "Bb2bbbbb"))
	require.NoError(t, err)
}

func TestResetPassword_UnknownSecret(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResetPassword(context.Background(), dto.ResetPasswordDTO{SecretKey: "nope"})
	require.True(t, customErrors.IsSecretInvalid(err))
}

func TestChangePassword_WithOldPassword(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	_, err := f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		UserID:      u.ID.String(),
		OldPassword: "Aa1aaaaa",
		NewPassword: "Cc3ccccc",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, signIn("alice", "Cc3ccccc"))
	require.NoError(t, err)
}

func TestChangePassword_Unauthorized(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)
	ctx := context.Background()

	_, err := f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		UserID:      u.ID.String(),
		OldPassword: "wrong-pass",
		NewPassword: "Cc3ccccc",
	})
	require.True(t, customErrors.IsUnauthorized(err))

	_, err = f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{
		Confirmation: "garbage",
		NewPassword:  "Cc3ccccc",
	})
	require.True(t, customErrors.IsUnauthorized(err))

	// no credential at all
	_, err = f.svc.ChangePassword(ctx, dto.ChangePasswordDTO{NewPassword: "Cc3ccccc"})
	require.True(t, customErrors.IsUnauthorized(err))
}

func TestChangePassword_WeakPassword(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", "alice@example.com", "Aa1aaaaa", model.StatusActive)

	_, err := f.svc.ChangePassword(context.Background(), dto.ChangePasswordDTO{
		UserID:      u.ID.String(),
		OldPassword: "Aa1aaaaa",
		NewPassword: "weak",
	})
	require.True(t, customErrors.IsPasswordPolicy(err))
}
