package identity

import "testing"

func TestAnonymous(t *testing.T) {
	ctx := Anonymous()

	if ctx.UserID != AnonUserID {
		t.Fatalf("expected user id %q got %q", AnonUserID, ctx.UserID)
	}
	if !ctx.IsAnon() || ctx.IsInternal() || ctx.IsClient() {
		t.Fatalf("unexpected classification: %+v", ctx)
	}
	if err := ctx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestInternal(t *testing.T) {
	ctx := Internal("account-1", RoleSupportAgent, 42)

	if !ctx.IsInternal() {
		t.Fatalf("expected internal, got %+v", ctx)
	}
	if ctx.IsClient() || ctx.IsAnon() {
		t.Fatalf("unexpected classification: %+v", ctx)
	}
	if *ctx.TeamMemberID != 42 {
		t.Fatalf("expected team member 42, got %d", *ctx.TeamMemberID)
	}
	if err := ctx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestClient(t *testing.T) {
	ctx := Client("account-2", 7)

	if !ctx.IsClient() {
		t.Fatalf("expected client, got %+v", ctx)
	}
	if *ctx.ClientID != 7 {
		t.Fatalf("expected client id 7, got %d", *ctx.ClientID)
	}
	if err := ctx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// A context claiming a type without its scoping id must classify as
// neither internal nor client, so builders fall through to deny.
func TestMalformedContextsClassifyAsUnauthorized(t *testing.T) {
	internalNoStaff := Context{UserID: "a", UserType: TypeInternal, InternalRole: RoleAdmin}
	if internalNoStaff.IsInternal() {
		t.Fatal("internal without team member id must not classify as internal")
	}
	if err := internalNoStaff.Validate(); err == nil {
		t.Fatal("expected validation error for internal without team member id")
	}

	tm := int64(1)
	internalBadRole := Context{UserID: "a", UserType: TypeInternal, InternalRole: "root", TeamMemberID: &tm}
	if internalBadRole.IsInternal() {
		t.Fatal("internal with unknown role must not classify as internal")
	}

	clientNoOrg := Context{UserID: "b", UserType: TypeClient}
	if clientNoOrg.IsClient() {
		t.Fatal("client without client id must not classify as client")
	}
	if err := clientNoOrg.Validate(); err == nil {
		t.Fatal("expected validation error for client without client id")
	}

	cid := int64(3)
	anonWithScope := Context{UserID: AnonUserID, UserType: TypeAnon, ClientID: &cid}
	if err := anonWithScope.Validate(); err == nil {
		t.Fatal("expected validation error for anon carrying scoping id")
	}
}

func TestHasRole(t *testing.T) {
	admin := Internal("a", RoleAdmin, 1)
	if !admin.HasRole(RoleAdmin) {
		t.Fatal("admin should have admin role")
	}
	if admin.HasRole(RoleManager) {
		t.Fatal("admin should not match manager-only check")
	}
	if !admin.HasRole(RoleManager, RoleAdmin) {
		t.Fatal("admin should match manager-or-admin check")
	}

	client := Client("c", 5)
	if client.HasRole(RoleAdmin) {
		t.Fatal("client must never satisfy a role check")
	}
}
