package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the account a session token was issued to. The account id is the subject.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// AccountID returns the account the token was issued to
func (c *Claims) AccountID() string {
	return c.Subject
}

// Authenticator signs and validates session tokens
type Authenticator struct {
	secretKey []byte
	issuer    string
	validity  time.Duration
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(secretKey, issuer string, validity time.Duration) *Authenticator {
	return &Authenticator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		validity:  validity,
	}
}

// Validity is how long issued tokens stay valid
func (a *Authenticator) Validity() time.Duration {
	return a.validity
}

// GenerateToken creates a signed token for an account
func (a *Authenticator) GenerateToken(accountID, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.validity)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    a.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// ValidateToken parses and validates a token string
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(a.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
