package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"directory-chat/contract"
	cerrors "directory-chat/errors"
)

// CustomClaims defines the data stored inside a session token.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenValidator validates session tokens issued by the directory's
// authentication service. It implements contract.SessionValidator.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validate parses and checks the signature and expiration of a token,
// mapping jwt failures onto the error taxonomy.
func (v *TokenValidator) Validate(tokenString string) (contract.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return contract.Session{}, cerrors.ErrTokenExpired
		}
		return contract.Session{}, fmt.Errorf("%w: %v", cerrors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return contract.Session{}, cerrors.ErrInvalidToken
	}

	session := contract.Session{UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// GenerateToken creates a signed session token for a user. The server
// never issues tokens in production (that is the auth collaborator's
// job); this exists for tests and local tooling.
func GenerateToken(secret, userID string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "directory-chat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
