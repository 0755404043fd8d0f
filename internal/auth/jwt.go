package auth

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Claims accepts the user id under any of the keys issued by the login
// service: userId, id or sub.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) SubjectID() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.ID != "":
		return c.ID
	default:
		return c.RegisteredClaims.Subject
	}
}

type JWTValidator struct {
	method string
	hsKey  []byte
	rsaKey *rsa.PublicKey
}

func NewJWTValidatorHS256(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTValidator{method: "HS256", hsKey: []byte(secret)}, nil
}

func NewJWTValidatorRS256(path string) (*JWTValidator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &JWTValidator{method: "RS256", rsaKey: pub}, nil
}

func (j *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if j.rsaKey != nil {
			return j.rsaKey, nil
		}
		return j.hsKey, nil
	}, jwt.WithValidMethods([]string{j.method}))
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	if !tok.Valid || claims.SubjectID() == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// BearerToken strips the scheme from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
