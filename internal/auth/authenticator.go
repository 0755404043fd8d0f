package auth

import (
	"context"
	"errors"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Identity struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

type UserLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// Authenticator turns a bearer token into an Identity. When a user lookup
// is configured the stored role wins over the token claim.
type Authenticator struct {
	jwt   *JWTValidator
	users UserLookup
}

func NewAuthenticator(jv *JWTValidator, users UserLookup) *Authenticator {
	return &Authenticator{jwt: jv, users: users}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := a.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	uid, err := primitive.ObjectIDFromHex(claims.SubjectID())
	if err != nil {
		return nil, ErrUnauthorized
	}
	id := &Identity{UserID: uid, Role: domain.Role(claims.Role)}
	if a.users == nil {
		return id, nil
	}
	u, err := a.users.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	id.Role = u.Role
	return id, nil
}
