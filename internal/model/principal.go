package model

import "github.com/google/uuid"

type Role string

const (
	RoleBeneficiary   Role = "BENEFICIARY"
	RoleEstablishment Role = "ESTABLISHMENT"
	RoleAdmin         Role = "ADMIN"
)

// Principal is the authenticated caller. A beneficiary acts as UserID, an
// establishment acts as OrgID.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   Role
}

func (p Principal) IsBeneficiary() bool {
	return p.Role == RoleBeneficiary
}

func (p Principal) IsEstablishment() bool {
	return p.Role == RoleEstablishment
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleBeneficiary, RoleEstablishment, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}
