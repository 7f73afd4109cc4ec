package rules

// WorkspaceAllowed reports whether a workspace passes the allowlist. An
// empty allowlist admits every workspace. Otherwise the name must equal one
// entry exactly, case-sensitive, in the literal form the window manager
// reports (entries may contain spaces or be numeric indices as strings).
func WorkspaceAllowed(name string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, entry := range allowlist {
		if entry == name {
			return true
		}
	}
	return false
}
