package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// newTestRecord creates a summary with default values for testing.
func newTestRecord(id string, createdAt int64) *summary.Record {
	return &summary.Record{
		ID:           id,
		Title:        "Video " + id,
		Channel:      "Channel",
		URL:          "https://www.youtube.com/watch?v=" + id,
		VideoID:      id,
		SummaryType:  summary.BulletPoints,
		Content:      "- point",
		Transcript:   "hello world",
		WordCount:    2,
		Tags:         []string{},
		CreatedAt:    createdAt,
		LastAccessed: createdAt,
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustInsert(t *testing.T, db *sql.DB, r *summary.Record) {
	t.Helper()
	if err := Insert(context.Background(), db, r); err != nil {
		t.Fatalf("Insert(%s) failed: %v", r.ID, err)
	}
}

func TestInsertAndGetByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRecord("01ABC", 1000)
	r.Duration = "12:34"
	r.Tags = []string{"go", "talks"}
	r.IsFavorite = true
	mustInsert(t, db, r)

	got, err := GetByID(ctx, db, "01ABC")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != r.Title || got.Channel != r.Channel || got.URL != r.URL {
		t.Errorf("metadata = %q/%q/%q, want %q/%q/%q", got.Title, got.Channel, got.URL, r.Title, r.Channel, r.URL)
	}
	if got.Duration != "12:34" {
		t.Errorf("Duration = %q, want 12:34", got.Duration)
	}
	if got.SummaryType != summary.BulletPoints {
		t.Errorf("SummaryType = %q, want bullet-points", got.SummaryType)
	}
	if got.Transcript != "hello world" || got.WordCount != 2 {
		t.Errorf("transcript = %q (%d words)", got.Transcript, got.WordCount)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "talks" {
		t.Errorf("Tags = %v, want [go talks]", got.Tags)
	}
	if !got.IsFavorite {
		t.Error("IsFavorite = false, want true")
	}
	if got.CreatedAt != 1000 || got.LastAccessed != 1000 {
		t.Errorf("timestamps = %d/%d, want 1000/1000", got.CreatedAt, got.LastAccessed)
	}
}

func TestInsert_EmptyOptionalFields(t *testing.T) {
	db := openTestDB(t)

	r := newTestRecord("01EMPTY", 1000)
	r.Duration = ""
	r.VideoID = ""
	r.Transcript = ""
	r.Tags = nil
	mustInsert(t, db, r)

	got, err := GetByID(context.Background(), db, "01EMPTY")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Duration != "" || got.VideoID != "" || got.Transcript != "" {
		t.Errorf("optional fields = %q/%q/%q, want empty", got.Duration, got.VideoID, got.Transcript)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil slice", got.Tags)
	}
}

func TestInsert_UniqueConstraint(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, newTestRecord("01DUP", 1000))

	err := Insert(context.Background(), db, newTestRecord("01DUP", 2000))
	if err != ErrUniqueConstraint {
		t.Errorf("Insert duplicate error = %v, want ErrUniqueConstraint", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetByID(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID error = %v, want NOT_FOUND", err)
	}
}

func TestUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRecord("01UP", 1000)
	if err := Upsert(ctx, db, r); err != nil {
		t.Fatalf("Upsert (insert) failed: %v", err)
	}

	r.Title = "Replaced"
	r.Content = "new content"
	if err := Upsert(ctx, db, r); err != nil {
		t.Fatalf("Upsert (update) failed: %v", err)
	}

	got, err := GetByID(ctx, db, "01UP")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Replaced" || got.Content != "new content" {
		t.Errorf("after upsert = %q/%q", got.Title, got.Content)
	}
	if n, _ := Count(ctx, db); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestTouch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustInsert(t, db, newTestRecord("01T", 1000))

	if err := Touch(ctx, db, "01T", 5000); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	got, _ := GetByID(ctx, db, "01T")
	if got.LastAccessed != 5000 {
		t.Errorf("LastAccessed = %d, want 5000", got.LastAccessed)
	}

	if err := Touch(ctx, db, "missing", 1); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Touch missing error = %v, want NOT_FOUND", err)
	}
}

func TestUpdateByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustInsert(t, db, newTestRecord("01U", 1000))

	r, _ := GetByID(ctx, db, "01U")
	r.Title = "Edited"
	r.Channel = "Other"
	r.Content = "edited content"
	r.Tags = []string{"x"}
	r.IsFavorite = true
	r.Transcript = "ignored"
	if err := UpdateByID(ctx, db, r); err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}

	got, _ := GetByID(ctx, db, "01U")
	if got.Title != "Edited" || got.Channel != "Other" || got.Content != "edited content" {
		t.Errorf("after update = %q/%q/%q", got.Title, got.Channel, got.Content)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "x" || !got.IsFavorite {
		t.Errorf("tags/favorite = %v/%v", got.Tags, got.IsFavorite)
	}
	if got.Transcript != "hello world" {
		t.Errorf("Transcript = %q, want unchanged", got.Transcript)
	}

	missing := newTestRecord("missing", 1)
	if err := UpdateByID(ctx, db, missing); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("UpdateByID missing error = %v, want NOT_FOUND", err)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustInsert(t, db, newTestRecord("01D", 1000))

	if err := Delete(ctx, db, "01D"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := GetByID(ctx, db, "01D"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want NOT_FOUND", err)
	}
	if err := Delete(ctx, db, "01D"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete error = %v, want NOT_FOUND", err)
	}
}

func TestList_NewestFirstWithPagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		mustInsert(t, db, newTestRecord(fmt.Sprintf("01R%d", i), int64(i*1000)))
	}

	items, total, err := List(ctx, db, Filters{}, 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 || items[0].ID != "01R5" || items[1].ID != "01R4" {
		t.Fatalf("page 1 = %v", ids(items))
	}
	if items[0].Icon != summary.BulletPoints.Icon() {
		t.Errorf("Icon = %q", items[0].Icon)
	}
	if items[0].ContentChars != len("- point") {
		t.Errorf("ContentChars = %d, want %d", items[0].ContentChars, len("- point"))
	}

	items, _, err = List(ctx, db, Filters{}, 2, 4)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "01R1" {
		t.Errorf("last page = %v, want [01R1]", ids(items))
	}
}

func TestList_Empty(t *testing.T) {
	db := openTestDB(t)

	items, total, err := List(context.Background(), db, Filters{}, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if items == nil || len(items) != 0 || total != 0 {
		t.Errorf("List = %#v (%d), want empty non-nil", items, total)
	}
}

func TestList_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := newTestRecord("01A", 1000)
	a.Title = "Learning Go Concurrency"
	b := newTestRecord("01B", 2000)
	b.Channel = "GopherCon"
	b.SummaryType = summary.QA
	b.IsFavorite = true
	c := newTestRecord("01C", 3000)
	c.Content = "A talk about 100% coverage_and more"
	for _, r := range []*summary.Record{a, b, c} {
		mustInsert(t, db, r)
	}

	since := int64(2000)
	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"query title case-insensitive", Filters{Query: "concurrency"}, []string{"01A"}},
		{"query channel", Filters{Query: "GOPHER"}, []string{"01B"}},
		{"query content literal percent", Filters{Query: "100%"}, []string{"01C"}},
		{"query content literal underscore", Filters{Query: "e_a"}, []string{"01C"}},
		{"query trimmed", Filters{Query: "  concurrency  "}, []string{"01A"}},
		{"type", Filters{Type: summary.QA}, []string{"01B"}},
		{"since", Filters{Since: &since}, []string{"01C", "01B"}},
		{"favorites", Filters{FavoritesOnly: true}, []string{"01B"}},
		{"combined no match", Filters{Query: "concurrency", FavoritesOnly: true}, []string{}},
		{"no filters", Filters{}, []string{"01C", "01B", "01A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := List(ctx, db, tt.filters, 10, 0)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			got := ids(items)
			if total != len(tt.want) || fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("List = %v (total %d), want %v", got, total, tt.want)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		mustInsert(t, db, newTestRecord(fmt.Sprintf("01P%d", i), int64(i*1000)))
	}

	n, err := Prune(ctx, db, 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	items, _, _ := List(ctx, db, Filters{}, 10, 0)
	if fmt.Sprint(ids(items)) != "[01P4 01P3]" {
		t.Errorf("kept = %v, want [01P4 01P3]", ids(items))
	}

	if n, _ := Prune(ctx, db, 10); n != 0 {
		t.Errorf("Prune under limit removed %d", n)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stats, err := GetStats(ctx, db)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 0 || stats.Favorites != 0 || stats.StorageBytes != 0 || len(stats.TypeBreakdown) != 0 {
		t.Errorf("empty stats = %+v", stats)
	}

	a := newTestRecord("01S1", 1000)
	a.IsFavorite = true
	b := newTestRecord("01S2", 2000)
	c := newTestRecord("01S3", 3000)
	c.SummaryType = summary.Timeline
	for _, r := range []*summary.Record{a, b, c} {
		mustInsert(t, db, r)
	}

	stats, err = GetStats(ctx, db)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 3 || stats.Favorites != 1 {
		t.Errorf("total/favorites = %d/%d, want 3/1", stats.Total, stats.Favorites)
	}
	if stats.TypeBreakdown["bullet-points"] != 2 || stats.TypeBreakdown["timeline"] != 1 {
		t.Errorf("TypeBreakdown = %v", stats.TypeBreakdown)
	}
	if stats.StorageBytes <= 0 {
		t.Errorf("StorageBytes = %d, want > 0", stats.StorageBytes)
	}
}

func TestStreamAllAndDeleteAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustInsert(t, db, newTestRecord("01Z2", 2000))
	mustInsert(t, db, newTestRecord("01Z1", 1000))

	rows, err := StreamAll(ctx, db)
	if err != nil {
		t.Fatalf("StreamAll failed: %v", err)
	}
	var got []string
	for rows.Next() {
		r, err := ScanRecordFromRows(rows)
		if err != nil {
			t.Fatalf("ScanRecordFromRows failed: %v", err)
		}
		got = append(got, r.ID)
	}
	rows.Close()
	if fmt.Sprint(got) != "[01Z1 01Z2]" {
		t.Errorf("stream order = %v, want oldest first", got)
	}

	n, err := DeleteAll(ctx, db)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v; want 2", n, err)
	}
	if c, _ := Count(ctx, db); c != 0 {
		t.Errorf("Count after DeleteAll = %d", c)
	}
}

func ids(items []summary.ListItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
