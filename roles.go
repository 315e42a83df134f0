package access

// IsValid checks if the role is one of the predefined tiers
func IsValidRole(r AccountRole) bool {
	switch r {
	case RoleBase, RoleExaminer, RoleEnterprise, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, IsValidRole(role)
}

// IsElevated reports whether the role is above the base tier
func IsElevated(r AccountRole) bool {
	return IsValidRole(r) && r != RoleBase
}

// CanIssueKeys reports whether the role may create invitation keys
func CanIssueKeys(r AccountRole) bool {
	return r == RoleAdmin
}

// EscalationTarget maps a key type to the role it grants. The second return
// is false for key types with no implemented escalation effect (teacher) and
// for unknown types.
func EscalationTarget(kt KeyType) (AccountRole, bool) {
	switch kt {
	case KeyTypePromotion:
		return RoleExaminer, true
	case KeyTypeInvitation:
		return RoleEnterprise, true
	default:
		return "", false
	}
}

// IsValidKeyType checks if the key type exists in the data model. Note that
// teacher keys are valid data but not redeemable, see EscalationTarget.
func IsValidKeyType(kt KeyType) bool {
	switch kt {
	case KeyTypeInvitation, KeyTypePromotion, KeyTypeTeacher:
		return true
	default:
		return false
	}
}

// IssuableKeyTypes returns the key types an admin can mint in bulk
func IssuableKeyTypes() []KeyType {
	return []KeyType{KeyTypeInvitation, KeyTypePromotion, KeyTypeTeacher}
}
