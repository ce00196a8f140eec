package entity

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Identity is the authenticated actor behind a screen or request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

func (i *Identity) IsStaff() bool {
	return i != nil && i.Role == RoleStaff
}

// ClaimField is the conversation field this actor claims on first open.
func (i *Identity) ClaimField() ClaimField {
	if i.IsStaff() {
		return ClaimFieldAssignedStaff
	}
	return ClaimFieldOwner
}
