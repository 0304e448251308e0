package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	"github.com/dalemusser/vpcroadmap/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log_FillsIDAndTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.0.2.1",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestStore_ForFacility_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fid := primitive.NewObjectID()
	other := primitive.NewObjectID()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, et := range []string{audit.EventFacilityCreated, audit.EventMembershipGranted, audit.EventFacilityUpdated} {
		if err := store.Log(ctx, audit.Event{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			FacilityID: &fid,
			Category:   audit.CategoryAdmin,
			EventType:  et,
			Success:    true,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := store.Log(ctx, audit.Event{FacilityID: &other, Category: audit.CategoryAdmin, EventType: audit.EventFacilityCreated, Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.ForFacility(ctx, fid, 10)
	if err != nil {
		t.Fatalf("ForFacility failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].EventType != audit.EventFacilityUpdated || events[2].EventType != audit.EventFacilityCreated {
		t.Errorf("order: got %s..%s", events[0].EventType, events[2].EventType)
	}
}

func TestStore_QueryAndCount_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		et := audit.EventLoginFailed
		if i%2 == 0 {
			et = audit.EventLoginSuccess
		}
		if err := store.Log(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Category:  audit.CategoryAuth,
			EventType: et,
			Success:   et == audit.EventLoginSuccess,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.Count(ctx, audit.QueryFilter{EventType: audit.EventLoginSuccess})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("successes: got %d, want 3", n)
	}

	start := base.Add(24 * time.Hour)
	end := base.Add(3 * 24 * time.Hour)
	events, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth, StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("window: got %d events, want 3", len(events))
	}

	page, err := store.Query(ctx, audit.QueryFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("last page: got %d events, want 1", len(page))
	}
}

func TestStore_Query_EmptyIsNotNil(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := store.ForFacility(ctx, primitive.NewObjectID(), 0)
	if err != nil {
		t.Fatalf("ForFacility failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", events)
	}
}
