package auth

// RequireRole passes id through when it holds exactly role. Roles are flat:
// admin does not imply user or any other role.
func RequireRole(id Identity, role Role) (Identity, error) {
	if id.Role != role {
		return Identity{}, ErrForbidden
	}
	return id, nil
}

// RequireAdmin is RequireRole(id, RoleAdmin).
func RequireAdmin(id Identity) (Identity, error) {
	return RequireRole(id, RoleAdmin)
}
