package models

// Actor is the caller identity supplied by the upstream gateway. This core never
// authenticates; it only authorizes the supplied role against business rules.
type Actor struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	BranchID string   `json:"branch_id"`
}

func (a Actor) IsHQ() bool {
	return a.Role == RoleHQAdmin
}

// ActsForBranch reports whether the actor may operate on behalf of the given
// branch: its own branch for branch users, any branch for HQ admins.
func (a Actor) ActsForBranch(branchID string) bool {
	if a.IsHQ() {
		return true
	}
	return a.Role == RoleBranchUser && a.BranchID == branchID
}
