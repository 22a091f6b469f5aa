package jwt

import (
	"crypto/rsa"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	jwt2 "github.com/accounthub/auth-service/internal/domain/auth/jwt"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/infra/config"
)

const resetPurpose = "password_reset"

// resetConfirmationTTL bounds the window between reset-password and the
// follow-up change-password call.
const resetConfirmationTTL = 5 * time.Minute

type JwtUtilImpl struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	issuer     string
	audience   string
}

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	privPem, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse public key")
	}

	return &JwtUtilImpl{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.TokenLeeway,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}, nil
}

func (j *JwtUtilImpl) GenerateAccessToken(userID uuid.UUID, roles []string) (token string, exp time.Time, jti string, err error) {
	jti = uuid.NewString()
	now := time.Now()

	claims := jwt2.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
			ID:        jti,
		},
		TokenType: jwt2.TypeAccess,
		Roles:     roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *JwtUtilImpl) GenerateRefreshToken(userID uuid.UUID, sessionKey string, platform model.Platform) (token string, exp time.Time, jti string, err error) {
	jti = uuid.NewString()
	now := time.Now()

	claims := jwt2.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshTTL)),
			ID:        jti,
		},
		TokenType:  jwt2.TypeRefresh,
		SessionKey: sessionKey,
		Platform:   string(platform),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign refresh token")
	}

	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *JwtUtilImpl) GenerateResetConfirmation(userID uuid.UUID) (string, error) {
	now := time.Now()

	claims := jwt2.ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetConfirmationTTL)),
			ID:        uuid.NewString(),
		},
		TokenType: jwt2.TypeReset,
		Purpose:   resetPurpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", customErrors.WrapInternal(err, "sign reset confirmation")
	}

	return signed, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (jwt2.AccessClaims, error) {
	claims := &jwt2.AccessClaims{}
	if err := j.parse(raw, claims, &claims.RegisteredClaims); err != nil {
		return jwt2.AccessClaims{}, err
	}
	if claims.TokenType != jwt2.TypeAccess {
		return jwt2.AccessClaims{}, customErrors.ErrTokenInvalid
	}
	return *claims, nil
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (jwt2.RefreshClaims, error) {
	claims := &jwt2.RefreshClaims{}
	if err := j.parse(raw, claims, &claims.RegisteredClaims); err != nil {
		return jwt2.RefreshClaims{}, err
	}
	if claims.TokenType != jwt2.TypeRefresh || claims.SessionKey == "" {
		return jwt2.RefreshClaims{}, customErrors.ErrTokenInvalid
	}
	return *claims, nil
}

func (j *JwtUtilImpl) ValidateResetConfirmation(raw string) (jwt2.ResetClaims, error) {
	claims := &jwt2.ResetClaims{}
	if err := j.parse(raw, claims, &claims.RegisteredClaims); err != nil {
		return jwt2.ResetClaims{}, err
	}
	if claims.TokenType != jwt2.TypeReset || claims.Purpose != resetPurpose {
		return jwt2.ResetClaims{}, customErrors.ErrTokenInvalid
	}
	return *claims, nil
}

func (j *JwtUtilImpl) parse(raw string, claims jwt.Claims, reg *jwt.RegisteredClaims) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, customErrors.ErrTokenInvalid
		}
		return j.publicKey, nil
	}, jwt.WithIssuedAt(), jwt.WithLeeway(j.leeway))

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return customErrors.ErrTokenExpired
	case err != nil, !token.Valid:
		return customErrors.ErrTokenInvalid
	}

	if j.issuer != "" && reg.Issuer != j.issuer {
		return customErrors.ErrTokenInvalid
	}

	if j.audience != "" {
		okAudi := false
		for _, a := range reg.Audience {
			if a == j.audience {
				okAudi = true
				break
			}
		}
		if !okAudi {
			return customErrors.ErrTokenInvalid
		}
	}

	return nil
}
