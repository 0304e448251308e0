package facilitymemberstore_test

import (
	"testing"

	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Grant_BadRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Grant(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "owner", false)
	if err != facilitymemberstore.ErrBadRole {
		t.Errorf("expected ErrBadRole, got %v", err)
	}
}

func TestStore_Grant_Upserts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	f := fx.CreateFacility(ctx, "WLK", "Walker")

	if _, err := store.Grant(ctx, u.ID, f.ID, "viewer", false); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	m, err := store.Grant(ctx, u.ID, f.ID, "Editor", true)
	if err != nil {
		t.Fatalf("second Grant failed: %v", err)
	}
	if m.Role != "editor" || !m.IsPrimary {
		t.Errorf("got role %q primary %v, want editor/true", m.Role, m.IsPrimary)
	}

	n, err := store.CountForUser(ctx, u.ID)
	if err != nil || n != 1 {
		t.Errorf("CountForUser: got (%d, %v), want (1, nil)", n, err)
	}
}

func TestStore_Grant_PrimaryClearsOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	f1 := fx.CreateFacility(ctx, "WLK", "Walker")
	f2 := fx.CreateFacility(ctx, "JAX", "Jacksonville")

	if _, err := store.Grant(ctx, u.ID, f1.ID, "editor", true); err != nil {
		t.Fatalf("Grant f1 failed: %v", err)
	}
	if _, err := store.Grant(ctx, u.ID, f2.ID, "viewer", true); err != nil {
		t.Fatalf("Grant f2 failed: %v", err)
	}

	m1, err := store.Get(ctx, u.ID, f1.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m1.IsPrimary {
		t.Error("expected f1 membership to lose primary")
	}
}

func TestStore_ListForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	f1 := fx.CreateFacility(ctx, "WLK", "Walker")
	f2 := fx.CreateFacility(ctx, "JAX", "Jacksonville")
	fx.Grant(ctx, u.ID, f1.ID, "editor", false)
	fx.Grant(ctx, u.ID, f2.ID, "viewer", true)

	ms, err := store.ListForUser(ctx, u.ID.Hex())
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d memberships, want 2", len(ms))
	}
	if ms[0].Facility.Code != "WLK" || ms[0].Role != facility.RoleEditor {
		t.Errorf("first: got %+v, want WLK editor", ms[0])
	}
	if ms[1].Facility.ID != f2.ID.Hex() || !ms[1].IsPrimary {
		t.Errorf("second: got %+v, want JAX primary", ms[1])
	}
}

func TestStore_ListForUser_None(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ms, err := store.ListForUser(ctx, primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if ms == nil || len(ms) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", ms)
	}

	if _, err := store.ListForUser(ctx, "not-hex"); err == nil {
		t.Error("expected error for malformed user id")
	}
}

func TestStore_RevokeAndListByFacility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := facilitymemberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "Ada", "ada@example.com")
	b := fx.CreateUser(ctx, "Bo", "bo@example.com")
	f := fx.CreateFacility(ctx, "WLK", "Walker")
	fx.Grant(ctx, a.ID, f.ID, "facility_admin", true)
	fx.Grant(ctx, b.ID, f.ID, "viewer", false)

	rows, err := store.ListByFacility(ctx, f.ID)
	if err != nil {
		t.Fatalf("ListByFacility failed: %v", err)
	}
	if len(rows) != 2 || rows[0].FullName != "Ada" || rows[0].Role != "facility_admin" {
		t.Fatalf("got %+v", rows)
	}

	n, err := store.Revoke(ctx, b.ID, f.ID)
	if err != nil || n != 1 {
		t.Errorf("Revoke: got (%d, %v), want (1, nil)", n, err)
	}
	if _, err := store.Get(ctx, b.ID, f.ID); err != facilitymemberstore.ErrNotFound {
		t.Errorf("after revoke: got %v, want ErrNotFound", err)
	}
}
