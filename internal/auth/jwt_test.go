package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestValidateClaimFallbacks(t *testing.T) {
	jv, err := NewJWTValidatorHS256(secret)
	if err != nil {
		t.Fatal(err)
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	cases := map[string]Claims{
		"userId": {UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}},
		"id":     {ID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}},
		"sub":    {RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}},
	}
	for name, c := range cases {
		got, err := jv.Validate(sign(t, c))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got.SubjectID() != "u1" {
			t.Errorf("%s: subject %q", name, got.SubjectID())
		}
	}
}

func TestValidateRejects(t *testing.T) {
	jv, _ := NewJWTValidatorHS256(secret)

	expired := sign(t, Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if _, err := jv.Validate(expired); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expired token accepted: %v", err)
	}

	other, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).SignedString([]byte("nope"))
	if _, err := jv.Validate(other); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("foreign signature accepted: %v", err)
	}

	if _, err := jv.Validate(sign(t, Claims{Role: "ADMIN"})); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("token without subject accepted: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if BearerToken("Bearer abc") != "abc" || BearerToken("bearer  abc ") != "abc" {
		t.Fatal("bearer not stripped")
	}
	if BearerToken("Basic abc") != "" || BearerToken("abc") != "" {
		t.Fatal("non-bearer accepted")
	}
}

type lookup map[primitive.ObjectID]*domain.User

func (l lookup) FindByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	if u, ok := l[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	jv, _ := NewJWTValidatorHS256(secret)
	uid := primitive.NewObjectID()
	users := lookup{uid: {ID: uid, Role: domain.RoleSuperAdmin}}
	a := NewAuthenticator(jv, users)

	tok := sign(t, Claims{UserID: uid.Hex(), Role: "EMPLOYEE"})
	id, err := a.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != uid || !id.Role.IsPrivileged() {
		t.Fatalf("identity %+v", id)
	}

	ghost := sign(t, Claims{UserID: primitive.NewObjectID().Hex()})
	if _, err := a.Authenticate(context.Background(), ghost); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown user accepted: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), sign(t, Claims{UserID: "not-hex"})); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("malformed id accepted: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatal("empty token accepted")
	}
}
