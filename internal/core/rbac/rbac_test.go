package rbac

import (
	"encoding/json"
	"testing"

	"github.com/typeapproval/portal/internal/core/domain"
)

func user(roles ...domain.Role) *domain.User {
	return &domain.User{ID: 1, Email: "u@example.com", Roles: roles}
}

func TestPredicates_NilUser(t *testing.T) {
	preds := map[string]Predicate{
		"IsGuest":                   IsGuest,
		"IsDirector":                IsDirector,
		"CanViewTasksAndContracts":  CanViewTasksAndContracts,
		"CanModifyTasks":            CanModifyTasks,
		"CanManageContracts":        CanManageContracts,
		"CanUseSupportingEndpoints": CanUseSupportingEndpoints,
		"RequireRoles":              RequireRoles(domain.RoleDirector),
	}
	for name, p := range preds {
		if p(nil) {
			t.Errorf("%s(nil) = true", name)
		}
		if p(&domain.User{}) {
			t.Errorf("%s(user without roles) = true", name)
		}
	}
	if HasRole(nil, domain.RoleEmpty) || HasAnyRole(nil, domain.KnownRoles...) {
		t.Error("HasRole/HasAnyRole must be false for nil user")
	}
}

func TestCanViewTasksAndContracts(t *testing.T) {
	tests := []struct {
		name  string
		roles []domain.Role
		want  bool
	}{
		{"no roles", nil, false},
		{"only EMPTY", []domain.Role{domain.RoleEmpty}, false},
		{"EMPTY twice", []domain.Role{domain.RoleEmpty, domain.RoleEmpty}, false},
		{"expert", []domain.Role{domain.RoleExpert}, true},
		{"registrar", []domain.Role{domain.RoleRegistrar}, true},
		{"EMPTY plus accountant", []domain.Role{domain.RoleEmpty, domain.RoleAccountant}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanViewTasksAndContracts(user(tc.roles...)); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role                         domain.Role
		guest, director              bool
		modify, contracts, reference bool
	}{
		{domain.RoleEmpty, true, false, false, false, false},
		{domain.RoleExpert, false, false, true, false, true},
		{domain.RoleDirector, false, true, true, false, true},
		{domain.RoleAccountant, false, false, false, true, true},
		{domain.RoleRegistrar, false, false, false, false, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			u := user(tc.role)
			if got := IsGuest(u); got != tc.guest {
				t.Errorf("IsGuest = %v", got)
			}
			if got := IsDirector(u); got != tc.director {
				t.Errorf("IsDirector = %v", got)
			}
			if got := CanModifyTasks(u); got != tc.modify {
				t.Errorf("CanModifyTasks = %v", got)
			}
			if got := CanManageContracts(u); got != tc.contracts {
				t.Errorf("CanManageContracts = %v", got)
			}
			if got := CanUseSupportingEndpoints(u); got != tc.reference {
				t.Errorf("CanUseSupportingEndpoints = %v", got)
			}
		})
	}
}

func TestExpertCannotManageContracts(t *testing.T) {
	u := user(domain.RoleExpert)
	if CanManageContracts(u) {
		t.Fatal("expert must not manage contracts")
	}
	if !CanModifyTasks(u) {
		t.Fatal("expert must modify tasks")
	}
}

func TestHasRole_RoleRepresentation(t *testing.T) {
	var fromStrings, fromObjects domain.User
	if err := json.Unmarshal([]byte(`{"id":1,"roles":["DIRECTOR"]}`), &fromStrings); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"id":1,"roles":[{"name":"DIRECTOR"}]}`), &fromObjects); err != nil {
		t.Fatal(err)
	}
	for _, r := range domain.KnownRoles {
		if HasRole(&fromStrings, r) != HasRole(&fromObjects, r) {
			t.Errorf("HasRole differs for %s", r)
		}
	}
	if !HasRole(&fromObjects, domain.RoleDirector) {
		t.Fatal("expected DIRECTOR")
	}
}

func TestRequireRoles_CopiesInput(t *testing.T) {
	roles := []domain.Role{domain.RoleAccountant}
	p := RequireRoles(roles...)
	roles[0] = domain.RoleExpert

	if !p(user(domain.RoleAccountant)) {
		t.Fatal("predicate should still require ACCOUNTANT")
	}
	if p(user(domain.RoleExpert)) {
		t.Fatal("predicate must not follow caller mutations")
	}
	if RequireRoles()(user(domain.RoleDirector)) {
		t.Fatal("empty requirement must deny")
	}
}
