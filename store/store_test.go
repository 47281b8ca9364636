package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/buildboard/dbopen"
	"github.com/hazyhaar/buildboard/idgen"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithMigrations(Migrations...))
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	return New(db, WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}))
}

func ptr(s string) *string { return &s }

func TestCreateWaitlist(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	e, err := s.CreateWaitlist(ctx, WaitlistEntry{
		Name: "Test User", Email: "test@example.com", Role: "Enthusiast",
		Attribution: Attribution{SourceURL: ptr("https://x/?utm_source=ig"), UTMSource: ptr("ig")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !idgen.IsObjectID(e.ID) {
		t.Fatalf("id %q is not a 24-char object id", e.ID)
	}
	if e.CreatedAt != "2026-10-15T09:00:00.001Z" {
		t.Fatalf("created_at = %q", e.CreatedAt)
	}

	list, err := s.ListWaitlist(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d entries", len(list))
	}
	got := list[0]
	if got.UTMSource == nil || *got.UTMSource != "ig" {
		t.Fatalf("utm_source = %v", got.UTMSource)
	}
	if got.UTMCampaign != nil || got.UTMMedium != nil {
		t.Fatal("unset utm fields must stay nil")
	}
}

func TestWaitlist_DuplicatesKept(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for range 3 {
		if _, err := s.CreateWaitlist(ctx, WaitlistEntry{Name: "a", Email: "a@b.co", Role: "Subscriber"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateWaitlist(ctx, WaitlistEntry{Name: "b", Email: "b@b.co", Role: "Shop"}); err != nil {
		t.Fatal(err)
	}

	counts, err := s.CountWaitlistByRole(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["Subscriber"] != 3 || counts["Shop"] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	list, _ := s.ListWaitlist(ctx, 2, 0)
	if len(list) != 2 || list[0].Name != "b" {
		t.Fatalf("want newest first, got %+v", list)
	}
}

func TestCreateReferral(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	r, err := s.CreateReferral(ctx, Referral{
		ReferrerName: "Ann", ReferrerEmail: "ann@b.co", ReferralType: "Shop",
		ReferralName: "Speed Shop", Notes: ptr("ask for Bob"),
	})
	if err != nil {
		t.Fatal(err)
	}
	list, err := s.ListReferrals(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[0].ReferralContact != nil {
		t.Fatal("referral_contact should be nil")
	}
	if list[0].Notes == nil || *list[0].Notes != "ask for Bob" {
		t.Fatalf("notes = %v", list[0].Notes)
	}
}

func TestCreateReferral_TypeConstraint(t *testing.T) {
	s := openTest(t)
	_, err := s.CreateReferral(context.Background(), Referral{
		ReferrerName: "Ann", ReferrerEmail: "ann@b.co", ReferralType: "Other", ReferralName: "X",
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure")
	}
}

func TestStatusChecks(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	a, err := s.CreateStatusCheck(ctx, "web")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.ID) != 36 {
		t.Fatalf("status id %q should be a uuid", a.ID)
	}
	if _, err := s.CreateStatusCheck(ctx, "ios"); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListStatusChecks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ClientName != "web" {
		t.Fatalf("list = %+v", list)
	}
}

func TestResources_CRUD(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	builds, err := s.Resources("builds")
	if err != nil {
		t.Fatal(err)
	}

	d, err := builds.Create(ctx, json.RawMessage(`{"title":"E30 M3","id":"spoofed","year":1988}`))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == "spoofed" {
		t.Fatal("client id must be ignored")
	}

	got, err := builds.Get(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	json.Unmarshal(out, &flat)
	if flat["title"] != "E30 M3" || flat["id"] != d.ID || flat["year"] != 1988.0 {
		t.Fatalf("flat = %v", flat)
	}

	upd, err := builds.Update(ctx, d.ID, json.RawMessage(`{"title":"E30 M3 Evo"}`))
	if err != nil {
		t.Fatal(err)
	}
	if upd.CreatedAt != d.CreatedAt || upd.UpdatedAt == d.UpdatedAt {
		t.Fatalf("timestamps: created %s/%s updated %s/%s", d.CreatedAt, upd.CreatedAt, d.UpdatedAt, upd.UpdatedAt)
	}

	list, _ := builds.List(ctx, 10, 0)
	if len(list) != 1 {
		t.Fatalf("list len %d", len(list))
	}

	if err := builds.Delete(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := builds.Get(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if err := builds.Delete(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := builds.Update(ctx, d.ID, json.RawMessage(`{}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
}

func TestResources_Rejects(t *testing.T) {
	s := openTest(t)
	if _, err := s.Resources("users"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind: %v", err)
	}
	parts, _ := s.Resources("parts")
	for _, body := range []string{`[]`, `"x"`, `null`, ``, `{bad`} {
		if _, err := parts.Create(context.Background(), json.RawMessage(body)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("body %q: %v", body, err)
		}
	}
}

func TestResources_KindsAreIsolated(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	shops, _ := s.Resources("shops")
	leads, _ := s.Resources("leads")
	d, err := shops.Create(ctx, json.RawMessage(`{"name":"Garage"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := leads.Get(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("leads.Get = %v", err)
	}
}
