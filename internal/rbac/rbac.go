// Package rbac maps user profiles to the actions they may perform.
package rbac

import (
	"strings"

	"doccontrol/api/internal/lifecycle"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionSubmit  Action = "submit"
	ActionAnalyze Action = "analyze"
	ActionApprove Action = "approve"
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(profile lifecycle.Profile, action Action) bool {
	switch profile {
	case lifecycle.ProfileAdmin:
		return true
	case lifecycle.ProfileProcessos:
		return action != ActionAdmin
	case lifecycle.ProfileAutor:
		return action == ActionRead || action == ActionSubmit
	default:
		return false
	}
}

// Normalize parses a profile header value. Unknown or empty values fall back
// to autor, the least privileged profile.
func Normalize(profile string) lifecycle.Profile {
	switch p := lifecycle.Profile(strings.ToLower(strings.TrimSpace(profile))); p {
	case lifecycle.ProfileAutor, lifecycle.ProfileProcessos, lifecycle.ProfileAdmin:
		return p
	default:
		return lifecycle.ProfileAutor
	}
}
