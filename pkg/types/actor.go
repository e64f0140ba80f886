package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// Actor is the caller identity handed in by the auth layer.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func (a Actor) IsBuyer() bool    { return a.Role == enums.ActorRoleBuyer }
func (a Actor) IsMerchant() bool { return a.Role == enums.ActorRoleMerchant }
func (a Actor) IsAdmin() bool    { return a.Role == enums.ActorRoleAdmin || a.Role == enums.ActorRoleSystem }

// Valid reports whether the actor carries an identity and a known role.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}
