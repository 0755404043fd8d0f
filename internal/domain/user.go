package domain

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleTeamMember Role = "TEAM_MEMBER"
	RoleClient     Role = "CLIENT"
)

// IsPrivileged reports whether the role may read every inbox and
// delete messages it does not own.
func (r Role) IsPrivileged() bool {
	return Role(strings.ToUpper(string(r))) == RoleSuperAdmin
}

type User struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	FullName     string             `bson:"fullName" json:"fullName"`
	AvatarURL    string             `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Role         Role               `bson:"role" json:"role"`
	DeviceTokens []string           `bson:"deviceTokens,omitempty" json:"-"`
}

// SenderSummary is the public projection of a user embedded in emitted messages.
type SenderSummary struct {
	ID          primitive.ObjectID `json:"id"`
	DisplayName string             `json:"displayName"`
	AvatarURL   string             `json:"avatarUrl,omitempty"`
	Role        Role               `json:"role"`
}

func (u *User) Summary() SenderSummary {
	return SenderSummary{ID: u.ID, DisplayName: u.FullName, AvatarURL: u.AvatarURL, Role: u.Role}
}

// ParseID converts a hex user or message id, reporting ErrValidation on bad input.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", ErrValidation, s)
	}
	return id, nil
}
