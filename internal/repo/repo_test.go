package repo_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/migrate"
	"postline/internal/repo"
)

const agencyID = "agency-1"

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn)
	r.Now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func sampleDraft(id, updatedAt string) domain.Draft {
	d := domain.Draft{ID: id, Kind: domain.FlowSingle, IsPartial: true, StepHint: 2}
	d.Posting.Title = "Workers Wanted"
	d.Posting.Country = "UAE"
	d.CreatedAt = "2026-08-01T10:00:00Z"
	d.UpdatedAt = updatedAt
	return d
}

func TestDraftRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	d := sampleDraft("d-1", "2026-08-01T10:00:00Z")
	if err := r.InsertDraft(ctx, agencyID, "tester", d); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := r.GetDraft(ctx, "d-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Posting.Country != "UAE" || got.StepHint != 2 || !got.IsPartial {
		t.Fatalf("round trip lost data: %+v", got)
	}

	got.Posting.City = "Dubai"
	got.UpdatedAt = "2026-08-01T11:00:00Z"
	if err := r.UpdateDraft(ctx, agencyID, "tester", got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got2, err := r.GetDraft(ctx, "d-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got2.Posting.City != "Dubai" {
		t.Fatalf("update not persisted: %+v", got2.Posting)
	}

	if _, err := r.GetDraft(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPublishedDraftIsImmutable(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	d := sampleDraft("d-1", "2026-08-01T10:00:00Z")
	if err := r.InsertDraft(ctx, agencyID, "tester", d); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishDraft(ctx, agencyID, "tester", "p-1", "d-1", "Workers Wanted", "single", map[string]any{"title": "Workers Wanted"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := r.UpdateDraft(ctx, agencyID, "tester", d); !errors.Is(err, repo.ErrPublished) {
		t.Fatalf("update after publish = %v, want ErrPublished", err)
	}
	if err := r.PublishDraft(ctx, agencyID, "tester", "p-2", "d-1", "Again", "single", nil); !errors.Is(err, repo.ErrPublished) {
		t.Fatalf("second publish = %v, want ErrPublished", err)
	}
	if err := r.UpdateDraft(ctx, agencyID, "tester", sampleDraft("missing", "x")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}
}

func TestPublishStoresPosting(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InsertDraft(ctx, agencyID, "tester", sampleDraft("d-1", "2026-08-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	payload := map[string]any{"title": "Workers Wanted", "kind": "single"}
	if err := r.PublishDraft(ctx, agencyID, "tester", "p-1", "d-1", "Workers Wanted", "single", payload); err != nil {
		t.Fatal(err)
	}

	p, err := r.GetPostingByDraft(ctx, "d-1")
	if err != nil {
		t.Fatalf("get posting: %v", err)
	}
	if p.ID != "p-1" || p.AgencyID != agencyID || p.Title != "Workers Wanted" {
		t.Fatalf("posting = %+v", p)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(p.PayloadJSON), &decoded); err != nil {
		t.Fatalf("payload json: %v", err)
	}
	if decoded["title"] != "Workers Wanted" {
		t.Fatalf("payload = %v", decoded)
	}

	if _, err := r.GetPostingByDraft(ctx, "other"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InsertDraft(ctx, agencyID, "tester", sampleDraft("d-1", "2026-08-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteDraft(ctx, agencyID, "tester", "d-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetDraft(ctx, "d-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := r.DeleteDraft(ctx, agencyID, "tester", "d-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestListDraftsFiltersAndOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	bulk := sampleDraft("d-bulk", "2026-08-01T09:00:00Z")
	bulk.Kind = domain.FlowBulk
	done := sampleDraft("d-done", "2026-08-01T11:00:00Z")
	done.IsPartial = false
	for _, d := range []domain.Draft{
		sampleDraft("d-old", "2026-08-01T08:00:00Z"),
		bulk,
		done,
	} {
		if err := r.InsertDraft(ctx, agencyID, "tester", d); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.ListDrafts(ctx, repo.DraftFilters{AgencyID: agencyID})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].ID != "d-done" || all[2].ID != "d-old" {
		t.Fatalf("order = %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}

	bulks, err := r.ListDrafts(ctx, repo.DraftFilters{AgencyID: agencyID, Kind: "bulk"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bulks) != 1 || bulks[0].ID != "d-bulk" {
		t.Fatalf("bulk filter = %+v", bulks)
	}

	partial := true
	partials, err := r.ListDrafts(ctx, repo.DraftFilters{AgencyID: agencyID, Partial: &partial})
	if err != nil {
		t.Fatal(err)
	}
	if len(partials) != 2 {
		t.Fatalf("partial filter len = %d", len(partials))
	}

	limited, err := r.ListDrafts(ctx, repo.DraftFilters{AgencyID: agencyID, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "d-done" {
		t.Fatalf("limit = %+v", limited)
	}

	page2, err := r.ListDrafts(ctx, repo.DraftFilters{
		AgencyID:        agencyID,
		Limit:           1,
		CursorUpdatedAt: limited[0].UpdatedAt,
		CursorID:        limited[0].ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 || page2[0].ID != "d-bulk" {
		t.Fatalf("page2 = %+v", page2)
	}

	other, err := r.ListDrafts(ctx, repo.DraftFilters{AgencyID: "other-agency"})
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("agency scoping leaked %d drafts", len(other))
	}
}

func TestAgencyConfigUpsert(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetAgencyConfig(ctx, agencyID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cfg := config.Default(agencyID)
	if err := r.UpsertAgencyConfig(ctx, agencyID, cfg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := r.GetAgencyConfig(ctx, agencyID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Agency.ID != agencyID {
		t.Fatalf("agency id = %q", got.Agency.ID)
	}
	if len(got.Catalog.Countries) == 0 {
		t.Fatal("default country catalog missing")
	}

	got.Agency.Name = "Everest Overseas"
	if err := r.UpsertAgencyConfig(ctx, agencyID, got); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	got2, err := r.GetAgencyConfig(ctx, agencyID)
	if err != nil {
		t.Fatal(err)
	}
	if got2.Agency.Name != "Everest Overseas" {
		t.Fatalf("name = %q", got2.Agency.Name)
	}
}

func TestEventLog(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InsertDraft(ctx, agencyID, "tester", sampleDraft("d-1", "2026-08-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}
	d, _ := r.GetDraft(ctx, "d-1")
	if err := r.UpdateDraft(ctx, agencyID, "tester", d); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishDraft(ctx, agencyID, "tester", "p-1", "d-1", "Workers Wanted", "single", nil); err != nil {
		t.Fatal(err)
	}

	events, err := r.LatestEvents(ctx, 10, agencyID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("event count = %d", len(events))
	}
	if events[0].Type != "draft.published" || events[2].Type != "draft.created" {
		t.Fatalf("order = %s,%s,%s", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[0].ActorID != "tester" || events[0].EntityID != "d-1" {
		t.Fatalf("event = %+v", events[0])
	}

	published, err := r.LatestEvents(ctx, 10, agencyID, "draft.published", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 1 {
		t.Fatalf("type filter = %+v", published)
	}

	latest, err := r.LatestEventID(ctx, agencyID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == 0 {
		t.Fatal("latest event id must be set")
	}

	after, err := r.EventsAfter(ctx, 10, 0, agencyID)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 3 || after[0].Type != "draft.created" {
		t.Fatalf("events after = %+v", after)
	}
	none, err := r.EventsAfter(ctx, 10, latest, agencyID)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected drained cursor, got %d", len(none))
	}
}

func TestCountDraftsByKind(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	bulk := sampleDraft("d-3", "2026-08-01T10:00:00Z")
	bulk.Kind = domain.FlowBulk
	for _, d := range []domain.Draft{
		sampleDraft("d-1", "2026-08-01T10:00:00Z"),
		sampleDraft("d-2", "2026-08-01T10:00:00Z"),
		bulk,
	} {
		if err := r.InsertDraft(ctx, agencyID, "tester", d); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := r.CountDraftsByKind(ctx, agencyID)
	if err != nil {
		t.Fatal(err)
	}
	if counts["single"] != 2 || counts["bulk"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
