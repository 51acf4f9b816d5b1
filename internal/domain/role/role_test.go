package role_test

import (
	"testing"

	"github.com/lachgar03/crm-project/internal/domain/role"
)

func TestPermissionMatchesCaseInsensitive(t *testing.T) {
	p := role.Permission{Resource: "Customers", Action: "READ"}

	if !p.Matches("customers", "read") {
		t.Error("expected case-insensitive match")
	}
	if !p.Matches("CUSTOMERS", "Read") {
		t.Error("expected case-insensitive match")
	}
	if p.Matches("customers", "write") {
		t.Error("action mismatch must not match")
	}
	if p.Matches("tickets", "read") {
		t.Error("resource mismatch must not match")
	}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	roles := []role.Role{
		{Name: "SALES", Permissions: []role.Permission{
			{Resource: "customers", Action: "read"},
			{Resource: "customers", Action: "create"},
		}},
		{Name: "SUPPORT", Permissions: []role.Permission{
			{Resource: "Customers", Action: "Read"}, // duplicate, different case
			{Resource: "tickets", Action: "read"},
		}},
	}

	perms := role.EffectivePermissions(roles)
	if len(perms) != 3 {
		t.Fatalf("expected 3 distinct permissions, got %d", len(perms))
	}

	var hasTickets bool
	for _, p := range perms {
		if p.Matches("tickets", "read") {
			hasTickets = true
		}
	}
	if !hasTickets {
		t.Error("union lost tickets:read")
	}
}

func TestCreateRequestValidate(t *testing.T) {
	req := role.CreateRequest{Name: "  "}
	if err := req.Validate(); err == nil {
		t.Error("blank name accepted")
	}

	req.Name = "SALES_MANAGER"
	if err := req.Validate(); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
}
