package rbac

import (
	"testing"

	"doccontrol/api/internal/lifecycle"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name    string
		profile lifecycle.Profile
		action  Action
		allow   bool
	}{
		{name: "autor read", profile: lifecycle.ProfileAutor, action: ActionRead, allow: true},
		{name: "autor submit", profile: lifecycle.ProfileAutor, action: ActionSubmit, allow: true},
		{name: "autor analyze", profile: lifecycle.ProfileAutor, action: ActionAnalyze, allow: false},
		{name: "autor approve", profile: lifecycle.ProfileAutor, action: ActionApprove, allow: false},
		{name: "processos publish", profile: lifecycle.ProfileProcessos, action: ActionPublish, allow: true},
		{name: "processos approve", profile: lifecycle.ProfileProcessos, action: ActionApprove, allow: true},
		{name: "processos admin", profile: lifecycle.ProfileProcessos, action: ActionAdmin, allow: false},
		{name: "admin admin", profile: lifecycle.ProfileAdmin, action: ActionAdmin, allow: true},
		{name: "unknown read", profile: lifecycle.Profile("guest"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.profile, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.profile, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(" Processos "); got != lifecycle.ProfileProcessos {
		t.Fatalf("expected processos, got %q", got)
	}
	if got := Normalize(""); got != lifecycle.ProfileAutor {
		t.Fatalf("expected autor default, got %q", got)
	}
	if got := Normalize("root"); got != lifecycle.ProfileAutor {
		t.Fatalf("expected autor for unknown profile, got %q", got)
	}
}
