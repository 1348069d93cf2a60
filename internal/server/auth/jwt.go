// Package auth holds the security primitives the auth service is built on:
// JWT issuing and parsing, password hashing, and credential verification.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims are the JWT claims used for both token kinds. Access tokens carry
// the user id as subject and the authority; refresh tokens carry neither.
type Claims struct {
	jwt.RegisteredClaims
	Type      string `json:"typ"`
	Authority string `json:"auth,omitempty"`
}

// JWTProvider issues and parses HS256 tokens.
type JWTProvider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewJWTProvider(secret []byte, accessTTL, refreshTTL time.Duration) *JWTProvider {
	return &JWTProvider{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// GenerateTokenPair mints an access token for p and a fresh refresh token.
// Every token gets a random jti, so two pairs are never equal.
func (j *JWTProvider) GenerateTokenPair(p *models.Principal) (*models.TokenPair, error) {
	now := j.now()
	accessExp := now.Add(j.accessTTL)
	refreshExp := now.Add(j.refreshTTL)

	access, err := j.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
		Type:      tokenTypeAccess,
		Authority: string(p.Authority),
	})
	if err != nil {
		return nil, err
	}

	refresh, err := j.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
		Type: tokenTypeRefresh,
	})
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		GrantType:            common.GrantTypeBearer,
		AccessToken:          access,
		RefreshToken:         refresh,
		AccessTokenExpiresAt: jwt.NewNumericDate(accessExp).Time,
		RefreshTokenExpires:  jwt.NewNumericDate(refreshExp).Time,
	}, nil
}

// ValidateRefreshToken checks signature, expiry and kind of a refresh token.
// Expiry yields common.ErrRefreshTokenExpired; anything else wrong yields
// common.ErrInvalidToken.
func (j *JWTProvider) ValidateRefreshToken(token string) error {
	claims, err := j.parse(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return common.ErrRefreshTokenExpired
		}
		return err
	}
	if claims.Type != tokenTypeRefresh {
		return common.ErrInvalidToken
	}
	return nil
}

// ValidateAccessToken fully validates an access token and returns its
// principal. Expiry yields common.ErrTokenExpired.
func (j *JWTProvider) ValidateAccessToken(token string) (*models.Principal, error) {
	claims, err := j.parse(token)
	if err != nil {
		return nil, err
	}
	return principalFromClaims(claims)
}

// PrincipalFromAccessToken reads the identity out of an access token whose
// signature is valid, whether or not it has expired.
func (j *JWTProvider) PrincipalFromAccessToken(token string) (*models.Principal, error) {
	claims, err := j.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	return principalFromClaims(claims)
}

func principalFromClaims(c *Claims) (*models.Principal, error) {
	if c.Type != tokenTypeAccess || c.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return &models.Principal{UserID: c.Subject, Authority: models.Authority(c.Authority)}, nil
}

func (j *JWTProvider) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
}

func (j *JWTProvider) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
