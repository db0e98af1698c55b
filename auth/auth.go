package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("missing access token")
	ErrTokenInvalid = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// Authenticator resolves a bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// Claims are the access token claims issued by the auth provider.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 access tokens whose subject is the user id.
type JWTAuthenticator struct {
	secret   []byte
	audience string
}

func NewJWTAuthenticator(secret, audience string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), audience: audience}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, tokenString string) (Principal, error) {
	if tokenString == "" {
		return Principal{}, ErrTokenMissing
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Issue signs an access token for userID. Used by tests and local tooling;
// production tokens come from the auth provider.
func (a *JWTAuthenticator) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
